package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/discordapp"
	"github.com/fachebot/discord-digest-bot/internal/logger"

	"github.com/bwmarrin/discordgo"
)

// HistoryLimit 频道及每个子区最多读取的消息数
const HistoryLimit = 100

var (
	ErrChannelNotFound    = errors.New("channel not found")
	ErrNoMessagesInWindow = errors.New("no messages in window")
)

// chatService 聊天服务的只读接口（便于测试注入 mock）
type chatService interface {
	ResolveChannel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	FetchUser(ctx context.Context, userID string) (*discordgo.User, error)
	ChannelHistory(ctx context.Context, channelID string, limit int, after time.Time) ([]discordapp.Message, error)
	ActiveThreads(ctx context.Context, channel *discordgo.Channel) ([]*discordgo.Channel, error)
	ThreadHistory(ctx context.Context, threadID string, limit int) ([]discordapp.Message, error)
}

// Collected 一个 (频道, 用户) 组合收集到的纯文本消息
type Collected struct {
	Messages []string
	Threads  []string
}

type Collector struct {
	chat chatService
	now  func() time.Time
}

func NewCollector(chat chatService) *Collector {
	return &Collector{chat: chat, now: time.Now}
}

// Collect 收集窗口期内的频道消息与全部活跃子区消息
func (c *Collector) Collect(ctx context.Context, ch config.ChannelConfig, targetUserID string, windowDays int) (*Collected, error) {
	logger.Infof("[Collector] 频道: %s", ch.Name)

	channel, err := c.chat.ResolveChannel(ctx, ch.ID)
	if err != nil || channel == nil {
		return nil, fmt.Errorf("%w: %s(%s): %v", ErrChannelNotFound, ch.Name, ch.ID, err)
	}

	if user, err := c.chat.FetchUser(ctx, targetUserID); err != nil {
		logger.Warnf("[Collector] 获取用户信息失败, id: %s, %v", targetUserID, err)
	} else {
		logger.Infof("[Collector] 用户: %s", user.Username)
	}

	cutoff := c.now().UTC().AddDate(0, 0, -windowDays)
	history, err := c.chat.ChannelHistory(ctx, channel.ID, HistoryLimit, cutoff)
	if err != nil {
		return nil, err
	}

	messages := make([]string, 0, len(history))
	for _, m := range history {
		if !ch.AdmitAllAuthors && m.AuthorID != targetUserID {
			continue
		}
		if line := formatLine(m, ch.AdmitAllAuthors); line != "" {
			messages = append(messages, line)
		}
	}

	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: %s 最近 %d 天", ErrNoMessagesInWindow, ch.Name, windowDays)
	}

	threads, err := c.collectThreads(ctx, channel)
	if err != nil {
		// 子区内容只是补充，获取失败不影响频道总结
		logger.Warnf("[Collector] %s: %v", ch.Name, err)
	}

	logger.Infof("[Collector] %s: 频道消息 %d 条，子区消息 %d 条", ch.Name, len(messages), len(threads))
	for _, line := range messages {
		logger.Debugf("[Collector] 消息: %s", logger.Preview(line, logger.PreviewWidth))
	}

	return &Collected{Messages: messages, Threads: threads}, nil
}

// collectThreads 子区消息不做作者过滤，也不做时间截断
func (c *Collector) collectThreads(ctx context.Context, channel *discordgo.Channel) ([]string, error) {
	threads, err := c.chat.ActiveThreads(ctx, channel)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0)
	for _, thread := range threads {
		history, err := c.chat.ThreadHistory(ctx, thread.ID, HistoryLimit)
		if err != nil {
			logger.Warnf("[Collector] 获取子区 %s(%s) 消息失败: %v", thread.Name, thread.ID, err)
			continue
		}
		for _, m := range history {
			if line := formatLine(m, true); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// formatLine 多作者场景下带上作者名，便于模型标注来源
func formatLine(m discordapp.Message, attribute bool) string {
	content := strings.TrimSpace(m.Content)
	if content == "" {
		return ""
	}
	if attribute && m.AuthorName != "" {
		return m.AuthorName + ": " + content
	}
	return content
}
