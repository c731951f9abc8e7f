package discordapp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fachebot/discord-digest-bot/internal/logger"

	"github.com/bwmarrin/discordgo"
)

// Message 频道或子区中的一条消息
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	Timestamp  time.Time
}

type DiscordApp struct {
	session    *discordgo.Session
	user       *discordgo.User
	usersMu    sync.RWMutex
	usersCache map[string]*discordgo.User
	closeOnce  sync.Once
}

func NewApp(token string, transport *http.Transport) (*DiscordApp, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	// 读取消息正文需要 MessageContent 特权 intent
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	session.ShouldReconnectOnError = false

	if transport != nil {
		session.Client = &http.Client{Timeout: 30 * time.Second, Transport: transport}
		if transport.Dial != nil {
			// 复制一份，避免修改 websocket 包的全局 DefaultDialer
			dialer := *session.Dialer
			dialer.NetDial = transport.Dial
			session.Dialer = &dialer
		}
	}

	app := &DiscordApp{
		session:    session,
		usersCache: make(map[string]*discordgo.User),
	}
	return app, nil
}

// Login 建立网关连接，并打印已连接的服务器（仅作信息输出）
func (app *DiscordApp) Login(ctx context.Context) (*discordgo.User, error) {
	if app.user != nil {
		return app.user, nil
	}

	if err := app.session.Open(); err != nil {
		return nil, err
	}

	me := app.session.State.User
	if me == nil {
		var err error
		me, err = app.session.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return nil, err
		}
	}
	app.user = me

	for _, guild := range app.session.State.Guilds {
		name := guild.Name
		if name == "" {
			full, err := app.session.Guild(guild.ID, discordgo.WithContext(ctx))
			if err != nil {
				logger.Warnf("[DiscordApp] 获取服务器信息失败, id: %s, %v", guild.ID, err)
				continue
			}
			name = full.Name
		}
		logger.Infof("[DiscordApp] 已连接服务器: %s (id: %s)", name, guild.ID)
	}

	return me, nil
}

// Close 关闭会话，可重复调用，仅第一次生效
func (app *DiscordApp) Close() error {
	var err error
	app.closeOnce.Do(func() {
		err = app.session.Close()
	})
	return err
}

// ResolveChannel 优先读取网关状态缓存，未命中时走 REST
func (app *DiscordApp) ResolveChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if app.session.State != nil {
		if channel, err := app.session.State.Channel(channelID); err == nil {
			return channel, nil
		}
	}
	return app.session.Channel(channelID, discordgo.WithContext(ctx))
}

func (app *DiscordApp) FetchUser(ctx context.Context, userID string) (*discordgo.User, error) {
	// 先尝试读锁读取缓存
	app.usersMu.RLock()
	user, ok := app.usersCache[userID]
	app.usersMu.RUnlock()
	if ok {
		return user, nil
	}

	// 缓存未命中，获取数据
	user, err := app.session.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	// 写锁更新缓存
	app.usersMu.Lock()
	app.usersCache[userID] = user
	app.usersMu.Unlock()
	return user, nil
}

// ChannelHistory 获取 after 之后的频道消息，最多 limit 条，按时间升序返回
func (app *DiscordApp) ChannelHistory(ctx context.Context, channelID string, limit int, after time.Time) ([]Message, error) {
	raw, err := app.session.ChannelMessages(channelID, limit, "", SnowflakeFromTime(after), "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("获取频道 %s 消息失败: %w", channelID, err)
	}

	messages := convertMessages(raw)
	filtered := messages[:0]
	for _, m := range messages {
		if m.Timestamp.After(after) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// ActiveThreads 列出频道下所有活跃子区
func (app *DiscordApp) ActiveThreads(ctx context.Context, channel *discordgo.Channel) ([]*discordgo.Channel, error) {
	if channel.GuildID == "" {
		return nil, nil
	}

	list, err := app.session.GuildThreadsActive(channel.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("获取服务器 %s 活跃子区失败: %w", channel.GuildID, err)
	}

	threads := make([]*discordgo.Channel, 0)
	for _, thread := range list.Threads {
		if thread.ParentID == channel.ID {
			threads = append(threads, thread)
		}
	}
	return threads, nil
}

// ThreadHistory 获取子区最近 limit 条消息，按时间升序返回
func (app *DiscordApp) ThreadHistory(ctx context.Context, threadID string, limit int) ([]Message, error) {
	raw, err := app.session.ChannelMessages(threadID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("获取子区 %s 消息失败: %w", threadID, err)
	}
	return convertMessages(raw), nil
}

func convertMessages(raw []*discordgo.Message) []Message {
	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		msg := Message{
			ID:        m.ID,
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
		if m.Author != nil {
			msg.AuthorID = m.Author.ID
			msg.AuthorName = m.Author.Username
		}
		messages = append(messages, msg)
	}

	// REST 接口按时间倒序返回
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages
}
