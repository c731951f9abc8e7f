package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fachebot/discord-digest-bot/internal/collector"
	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/logger"
	"github.com/fachebot/discord-digest-bot/internal/metrics"
	"github.com/fachebot/discord-digest-bot/internal/model"

	"github.com/bwmarrin/discordgo"
)

type State string

const (
	StateIdle            State = "Idle"
	StateConnecting      State = "Connecting"
	StatePerChannelLoop  State = "PerChannelLoop"
	StateDigestPhase     State = "DigestPhase"
	StateNewsletterPhase State = "NewsletterPhase"
	StateTerminated      State = "Terminated"
)

type chatSession interface {
	Login(ctx context.Context) (*discordgo.User, error)
	Close() error
}

type messageCollector interface {
	Collect(ctx context.Context, ch config.ChannelConfig, targetUserID string, windowDays int) (*collector.Collected, error)
}

type sectionSummarizer interface {
	Summarize(ctx context.Context, collected *collector.Collected, ch config.ChannelConfig) (string, error)
}

type digestWriter interface {
	Write(sections []string) (string, error)
}

type newsletterGenerator interface {
	Generate(ctx context.Context, digestPath string) (string, error)
}

type runRecorder interface {
	Create(ctx context.Context, windowDays int) (*model.Run, error)
	MarkCompleted(ctx context.Context, id string, outcome model.RunOutcome) error
	MarkFailed(ctx context.Context, id string, outcome model.RunOutcome, errorMsg string) error
}

// Deps 编排器依赖，Runs 与 Metrics 可为空
type Deps struct {
	Session    chatSession
	Collector  messageCollector
	Summarizer sectionSummarizer
	Digest     digestWriter
	Newsletter newsletterGenerator
	Runs       runRecorder
	Metrics    *metrics.Metrics
}

// Result 一次运行的产出
type Result struct {
	RunID          string
	Sections       int
	DigestPath     string
	NewsletterPath string
}

type Orchestrator struct {
	deps        Deps
	registry    []config.ChannelConfig
	windowDays  int
	metricsPath string
	state       State
}

func NewOrchestrator(deps Deps, registry []config.ChannelConfig, windowDays int, metricsPath string) *Orchestrator {
	return &Orchestrator{
		deps:        deps,
		registry:    registry,
		windowDays:  windowDays,
		metricsPath: metricsPath,
		state:       StateIdle,
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) enter(state State) {
	logger.Debugf("[Orchestrator] %s -> %s", o.state, state)
	o.state = state
}

// Run 执行一次完整流程：登录、逐频道总结、写摘要、生成 newsletter。
// 任何退出路径（包括 panic）都会关闭会话且只关闭一次。
func (o *Orchestrator) Run(ctx context.Context) (result *Result, err error) {
	result = &Result{}
	run := o.startRun(ctx)
	if run != nil {
		result.RunID = run.ID
	}

	defer func() {
		recovered := recover()

		o.enter(StateTerminated)
		logger.Infof("[Orchestrator] 关闭 Discord 会话")
		if closeErr := o.deps.Session.Close(); closeErr != nil {
			logger.Warnf("[Orchestrator] 关闭会话失败: %v", closeErr)
		}

		runErr := err
		if recovered != nil {
			runErr = fmt.Errorf("panic: %v", recovered)
		}
		o.finishRun(run, result, runErr)

		if recovered != nil {
			panic(recovered)
		}
	}()

	o.enter(StateConnecting)
	user, err := o.deps.Session.Login(ctx)
	if err != nil {
		return result, fmt.Errorf("登录 Discord 失败: %w", err)
	}
	logger.Infof("[Orchestrator] 已登录: %s", user.Username)

	o.enter(StatePerChannelLoop)
	sections := o.collectSections(ctx)
	result.Sections = len(sections)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("运行已取消: %w", err)
	}

	if len(sections) == 0 {
		logger.Infof("[Orchestrator] 没有生成任何总结，跳过摘要与 newsletter")
		return result, nil
	}

	o.enter(StateDigestPhase)
	digestPath, err := o.deps.Digest.Write(sections)
	if err != nil {
		return result, err
	}
	result.DigestPath = digestPath
	logger.Infof("[Orchestrator] 所有总结已保存到 %s", digestPath)
	if o.deps.Metrics != nil {
		o.deps.Metrics.LastRunSuccess.SetToCurrentTime()
	}

	o.enter(StateNewsletterPhase)
	newsletterPath, err := o.deps.Newsletter.Generate(ctx, digestPath)
	if err != nil {
		logger.Errorf("[Orchestrator] 生成 newsletter 失败: %v", err)
		return result, nil
	}
	result.NewsletterPath = newsletterPath
	logger.Infof("[Orchestrator] newsletter 生成成功: %s", newsletterPath)

	return result, nil
}

// collectSections 按注册表顺序处理每个 (频道, 用户)，单元失败不影响其他单元
func (o *Orchestrator) collectSections(ctx context.Context) []string {
	sections := make([]string, 0)
	successCount := 0
	skipCount := 0

	for _, ch := range o.registry {
		for _, userID := range ch.Users {
			if ctx.Err() != nil {
				logger.Warnf("[Orchestrator] 运行已取消，停止处理剩余频道")
				return sections
			}

			section, ok := o.processUnit(ctx, ch, userID)
			if !ok {
				skipCount++
				continue
			}
			sections = append(sections, section)
			successCount++
		}
	}

	logger.Infof("[Orchestrator] 频道处理完成: 成功 %d 个，跳过 %d 个", successCount, skipCount)
	return sections
}

func (o *Orchestrator) processUnit(ctx context.Context, ch config.ChannelConfig, userID string) (string, bool) {
	collected, err := o.deps.Collector.Collect(ctx, ch, userID, o.windowDays)
	if err != nil {
		switch {
		case errors.Is(err, collector.ErrChannelNotFound):
			logger.Warnf("[Orchestrator] 频道未找到，跳过: %v", err)
			o.observeUnit(ch.Name, metrics.ResultNotFound)
		case errors.Is(err, collector.ErrNoMessagesInWindow):
			logger.Infof("[Orchestrator] 窗口期内无消息，跳过: %v", err)
			o.observeUnit(ch.Name, metrics.ResultNoMessages)
		default:
			logger.Errorf("[Orchestrator] 收集 %s 消息失败: %v", ch.Name, err)
			o.observeUnit(ch.Name, metrics.ResultFailed)
		}
		return "", false
	}

	section, err := o.deps.Summarizer.Summarize(ctx, collected, ch)
	if err != nil || section == "" {
		logger.Errorf("[Orchestrator] 总结 %s 失败: %v", ch.Name, err)
		o.observeUnit(ch.Name, metrics.ResultFailed)
		return "", false
	}

	o.observeUnit(ch.Name, metrics.ResultSummarized)
	return section, true
}

func (o *Orchestrator) observeUnit(channel, result string) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveUnit(channel, result)
	}
}

func (o *Orchestrator) startRun(ctx context.Context) *model.Run {
	if o.deps.Runs == nil {
		return nil
	}
	run, err := o.deps.Runs.Create(ctx, o.windowDays)
	if err != nil {
		logger.Warnf("[Orchestrator] 创建运行记录失败: %v", err)
		return nil
	}
	logger.Infof("[Orchestrator] 开始运行 %s，回溯 %d 天", run.ID, o.windowDays)
	return run
}

// finishRun 回写运行记录并导出指标，失败只记录日志
func (o *Orchestrator) finishRun(run *model.Run, result *Result, runErr error) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.Sections.Set(float64(result.Sections))
		if err := o.deps.Metrics.WriteTextfile(o.metricsPath); err != nil {
			logger.Warnf("[Orchestrator] 导出指标失败: %v", err)
		}
	}

	if run == nil {
		return
	}

	// 调用方 ctx 可能已取消，回写使用独立的短超时
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outcome := model.RunOutcome{
		Sections:       result.Sections,
		DigestPath:     result.DigestPath,
		NewsletterPath: result.NewsletterPath,
	}
	var err error
	if runErr != nil {
		err = o.deps.Runs.MarkFailed(ctx, run.ID, outcome, runErr.Error())
	} else {
		err = o.deps.Runs.MarkCompleted(ctx, run.ID, outcome)
	}
	if err != nil {
		logger.Warnf("[Orchestrator] 更新运行记录失败: %v", err)
	}
}
