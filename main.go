package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/fachebot/discord-digest-bot/internal/collector"
	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/digest"
	"github.com/fachebot/discord-digest-bot/internal/discordapp"
	"github.com/fachebot/discord-digest-bot/internal/logger"
	"github.com/fachebot/discord-digest-bot/internal/newsletter"
	"github.com/fachebot/discord-digest-bot/internal/orchestrator"
	"github.com/fachebot/discord-digest-bot/internal/summarizer"
	"github.com/fachebot/discord-digest-bot/internal/svc"
)

var (
	configFile = flag.String("f", "etc/config.yaml", "the config file")
	windowDays = flag.Int("days", 7, "number of days to look back")
)

func main() {
	flag.Parse()

	if *windowDays <= 0 {
		logger.Fatalf("回溯天数必须大于 0, days: %d", *windowDays)
	}

	// 读取配置文件
	c, err := config.LoadFromFile(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}

	// 读取凭据并构建频道注册表
	if err := c.LoadSecrets(); err != nil {
		logger.Fatalf("读取环境变量失败, %s", err)
	}
	registry, err := c.BuildRegistry()
	if err != nil {
		logger.Fatalf("构建频道注册表失败, %s", err)
	}
	logger.Infof("已加载 %d 个频道", len(registry))

	// 创建服务上下文
	svcCtx, err := svc.NewServiceContext(c)
	if err != nil {
		logger.Fatalf("创建服务上下文失败, %s", err)
	}

	// 创建Discord App
	app, err := discordapp.NewApp(c.DiscordToken, svcCtx.TransportProxy)
	if err != nil {
		svcCtx.Close()
		logger.Fatalf("[DiscordApp] 创建会话失败, %s", err)
	}

	o := orchestrator.NewOrchestrator(orchestrator.Deps{
		Session:    app,
		Collector:  collector.NewCollector(app),
		Summarizer: summarizer.NewSummarizer(svcCtx.LLMClient, c.LLM.SummaryModel, c.LLM.MaxTokens),
		Digest:     digest.NewWriter(c.Output.SummariesDir),
		Newsletter: newsletter.NewGenerator(svcCtx.LLMClient, newsletter.Options{
			Model:          c.LLM.NewsletterModel,
			MaxTokens:      c.LLM.MaxTokens,
			Title:          c.LLM.NewsletterTitle,
			Author:         c.LLM.NewsletterAuthor,
			SummariesDir:   c.Output.SummariesDir,
			NewslettersDir: c.Output.NewslettersDir,
		}),
		Runs:    svcCtx.RunModel,
		Metrics: svcCtx.Metrics,
	}, registry, *windowDays, c.Metrics.TextfilePath)

	// 收到退出信号时停止处理剩余频道
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	result, err := o.Run(ctx)
	stop()
	svcCtx.Close()
	if err != nil {
		logger.Fatalf("运行失败, %s", err)
	}

	if result.DigestPath == "" {
		logger.Infof("本次运行没有生成摘要")
		return
	}
	logger.Infof("运行完成, 摘要: %s, newsletter: %s", result.DigestPath, result.NewsletterPath)
}
