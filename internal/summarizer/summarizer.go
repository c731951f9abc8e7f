package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fachebot/discord-digest-bot/internal/collector"
	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/logger"
)

var ErrSummarizationFailed = errors.New("summarization failed")

// completer 调用 LLM 生成文本（便于测试注入 mock）
type completer interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

type Summarizer struct {
	llmClient completer
	model     string
	maxTokens int
}

func NewSummarizer(llmClient completer, model string, maxTokens int) *Summarizer {
	return &Summarizer{
		llmClient: llmClient,
		model:     model,
		maxTokens: maxTokens,
	}
}

// Summarize 将收集到的消息总结为一个 Markdown 二级标题小节
func (s *Summarizer) Summarize(ctx context.Context, collected *collector.Collected, ch config.ChannelConfig) (string, error) {
	if collected == nil || len(collected.Messages) == 0 {
		return "", fmt.Errorf("%w: %s 无可总结的消息", ErrSummarizationFailed, ch.Name)
	}

	messagesText := strings.Join(collected.Messages, "\n")
	threadsText := strings.Join(collected.Threads, "\n")
	prompt := buildPrompt(ch.Name, ch.AdmitAllAuthors, messagesText, threadsText)

	logger.Infof("[Summarizer] 开始总结 %s: %d 条消息, %d 条子区消息", ch.Name, len(collected.Messages), len(collected.Threads))
	text, err := s.llmClient.Complete(ctx, s.model, prompt, s.maxTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSummarizationFailed, ch.Name, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s 返回内容为空", ErrSummarizationFailed, ch.Name)
	}

	return FormatSection(ch.Name, text), nil
}

// FormatSection 生成 "## {频道名}\n\n{正文}"
func FormatSection(channelName, body string) string {
	return fmt.Sprintf("## %s\n\n%s", channelName, body)
}
