package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Observer 记录每次调用的耗时与结果
type Observer func(model string, elapsed time.Duration, err error)

type Client struct {
	config        *config.LLM
	openaiClient  openAIClientInterface
	contextWindow int
	observe       Observer
	timeout       time.Duration
}

func NewClient(cfg *config.LLM, transport *http.Transport) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	client := &Client{
		config:        cfg,
		openaiClient:  openai.NewClientWithConfig(openaiConfig),
		contextWindow: cfg.ContextWindow,
		timeout:       5 * time.Minute,
	}

	return client
}

// SetObserver 设置调用观察者（如指标采集）
func (c *Client) SetObserver(observe Observer) {
	c.observe = observe
}

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	// 简单估算：中文约 1.5 token/字，英文约 1.3 token/词
	chineseChars := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			chineseChars++
		}
	}
	englishWords := len(strings.Fields(text))

	tokens := int(float64(chineseChars)*1.5 + float64(englishWords)*1.3)
	if tokens < len(text)/4 {
		// 如果估算值太小，使用字符数的 1/4 作为下限
		tokens = len(text) / 4
	}

	return tokens
}

// Complete 单轮调用：仅一条 user 消息，无历史
func (c *Client) Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	tokens := estimateTokens(prompt)
	if c.contextWindow > 0 && tokens+maxTokens > c.contextWindow {
		logger.Warnf("[LLM] prompt 估算 %d tokens，加上输出上限 %d 超出上下文窗口 %d", tokens, maxTokens, c.contextWindow)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	start := time.Now()
	content, err := c.createCompletion(ctx, req)
	if c.observe != nil {
		c.observe(model, time.Since(start), err)
	}
	return content, err
}

func (c *Client) createCompletion(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("调用 LLM API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM API 返回空结果")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("LLM API 返回空内容 (finish_reason=%s)", resp.Choices[0].FinishReason)
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		logger.Warnf("[LLM] 输出达到 max_tokens 上限 (%d)，内容可能被截断", req.MaxTokens)
	}
	return content, nil
}
