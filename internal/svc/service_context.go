package svc

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/llm"
	"github.com/fachebot/discord-digest-bot/internal/logger"
	"github.com/fachebot/discord-digest-bot/internal/metrics"
	"github.com/fachebot/discord-digest-bot/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	DB             *sql.DB
	TransportProxy *http.Transport
	RunModel       *model.RunModel
	LLMClient      *llm.Client
	Metrics        *metrics.Metrics
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	// 创建数据目录
	if err := os.MkdirAll(c.Output.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	// 创建数据库连接
	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL", filepath.Join(c.Output.DataDir, "digest.db"))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	runModel := model.NewRunModel(db)
	if err := runModel.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("创建数据库Schema失败: %w", err)
	}

	// 创建SOCKS5代理
	transportProxy, err := newTransportProxy(c.Sock5Proxy)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	m := metrics.New()
	llmClient := llm.NewClient(&c.LLM, transportProxy)
	llmClient.SetObserver(m.ObserveLLM)

	svcCtx := &ServiceContext{
		Config:         c,
		DB:             db,
		TransportProxy: transportProxy,
		RunModel:       runModel,
		LLMClient:      llmClient,
		Metrics:        m,
	}
	return svcCtx, nil
}

func newTransportProxy(c config.Sock5Proxy) (*http.Transport, error) {
	if !c.Enable {
		return nil, nil
	}

	socks5Proxy := fmt.Sprintf("%s:%d", c.Host, c.Port)
	dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("创建SOCKS5代理失败: %w", err)
	}

	return &http.Transport{
		Dial:            dialer.Dial,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}, nil
}

func (svcCtx *ServiceContext) Close() {
	if err := svcCtx.DB.Close(); err != nil {
		logger.Errorf("关闭数据库失败, %v", err)
	}
}
