package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fachebot/discord-digest-bot/internal/config"
	"github.com/fachebot/discord-digest-bot/internal/discordapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockChat 用于测试的 chatService mock
type mockChat struct {
	mock.Mock
}

func (m *mockChat) ResolveChannel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	args := m.Called(ctx, channelID)
	ch, _ := args.Get(0).(*discordgo.Channel)
	return ch, args.Error(1)
}

func (m *mockChat) FetchUser(ctx context.Context, userID string) (*discordgo.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*discordgo.User)
	return u, args.Error(1)
}

func (m *mockChat) ChannelHistory(ctx context.Context, channelID string, limit int, after time.Time) ([]discordapp.Message, error) {
	args := m.Called(ctx, channelID, limit, after)
	msgs, _ := args.Get(0).([]discordapp.Message)
	return msgs, args.Error(1)
}

func (m *mockChat) ActiveThreads(ctx context.Context, channel *discordgo.Channel) ([]*discordgo.Channel, error) {
	args := m.Called(ctx, channel)
	threads, _ := args.Get(0).([]*discordgo.Channel)
	return threads, args.Error(1)
}

func (m *mockChat) ThreadHistory(ctx context.Context, threadID string, limit int) ([]discordapp.Message, error) {
	args := m.Called(ctx, threadID, limit)
	msgs, _ := args.Get(0).([]discordapp.Message)
	return msgs, args.Error(1)
}

var fixedNow = time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)

func newTestCollector(chat chatService) *Collector {
	c := NewCollector(chat)
	c.now = func() time.Time { return fixedNow }
	return c
}

func msg(authorID, authorName, content string) discordapp.Message {
	return discordapp.Message{AuthorID: authorID, AuthorName: authorName, Content: content, Timestamp: fixedNow.Add(-time.Hour)}
}

func setupChannel(chat *mockChat, history []discordapp.Message) *discordgo.Channel {
	channel := &discordgo.Channel{ID: "100", GuildID: "1", Name: "ai-coding"}
	chat.On("ResolveChannel", mock.Anything, "100").Return(channel, nil)
	chat.On("FetchUser", mock.Anything, mock.Anything).Return(&discordgo.User{ID: "900", Username: "sam"}, nil)
	chat.On("ChannelHistory", mock.Anything, "100", HistoryLimit, fixedNow.AddDate(0, 0, -7)).Return(history, nil)
	return channel
}

func TestCollect_FiltersByTargetUser(t *testing.T) {
	chat := new(mockChat)
	channel := setupChannel(chat, []discordapp.Message{
		msg("900", "sam", "my post"),
		msg("901", "alex", "someone else"),
		msg("900", "sam", "  "),
		msg("900", "sam", "second post"),
	})
	chat.On("ActiveThreads", mock.Anything, channel).Return([]*discordgo.Channel(nil), nil)

	ch := config.ChannelConfig{ID: "100", Name: "AI Coding", Users: []string{"900"}}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"my post", "second post"}, got.Messages)
	assert.Empty(t, got.Threads)
	chat.AssertExpectations(t)
}

func TestCollect_OpenChannelAdmitsAllAuthors(t *testing.T) {
	chat := new(mockChat)
	channel := setupChannel(chat, []discordapp.Message{
		msg("901", "alex", "check https://x.dev"),
		msg("902", "kim", "my demo"),
	})
	chat.On("ActiveThreads", mock.Anything, channel).Return([]*discordgo.Channel(nil), nil)

	ch := config.ChannelConfig{ID: "100", Name: "Share Your Work", Users: []string{"900"}, AdmitAllAuthors: true}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"alex: check https://x.dev", "kim: my demo"}, got.Messages)
}

func TestCollect_ThreadsUnfiltered(t *testing.T) {
	chat := new(mockChat)
	channel := setupChannel(chat, []discordapp.Message{msg("900", "sam", "hi")})
	chat.On("ActiveThreads", mock.Anything, channel).Return([]*discordgo.Channel{
		{ID: "t1", Name: "thread-1"},
		{ID: "t2", Name: "thread-2"},
	}, nil)
	old := discordapp.Message{AuthorID: "901", AuthorName: "alex", Content: "old reply", Timestamp: fixedNow.AddDate(0, 0, -30)}
	chat.On("ThreadHistory", mock.Anything, "t1", HistoryLimit).Return([]discordapp.Message{old, msg("902", "kim", "reply")}, nil)
	chat.On("ThreadHistory", mock.Anything, "t2", HistoryLimit).Return([]discordapp.Message(nil), errors.New("forbidden"))

	ch := config.ChannelConfig{ID: "100", Name: "AI Coding", Users: []string{"900"}}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, got.Messages)
	assert.Equal(t, []string{"alex: old reply", "kim: reply"}, got.Threads)
}

func TestCollect_ChannelNotFound(t *testing.T) {
	chat := new(mockChat)
	chat.On("ResolveChannel", mock.Anything, "100").Return(nil, errors.New("404 Unknown Channel"))

	ch := config.ChannelConfig{ID: "100", Name: "AI Coding"}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, ErrChannelNotFound))
	chat.AssertNotCalled(t, "ChannelHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCollect_NoMessagesInWindow(t *testing.T) {
	tests := []struct {
		name    string
		history []discordapp.Message
	}{
		{"无消息", nil},
		{"仅其他作者", []discordapp.Message{msg("901", "alex", "not mine")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := new(mockChat)
			setupChannel(chat, tt.history)

			ch := config.ChannelConfig{ID: "100", Name: "AI Coding", Users: []string{"900"}}
			got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrNoMessagesInWindow))
			// 仅有子区内容不会触发总结，因此不再请求子区
			chat.AssertNotCalled(t, "ActiveThreads", mock.Anything, mock.Anything)
		})
	}
}

func TestCollect_UserLookupFailureIsNotFatal(t *testing.T) {
	chat := new(mockChat)
	channel := &discordgo.Channel{ID: "100"}
	chat.On("ResolveChannel", mock.Anything, "100").Return(channel, nil)
	chat.On("FetchUser", mock.Anything, "900").Return(nil, errors.New("unknown user"))
	chat.On("ChannelHistory", mock.Anything, "100", HistoryLimit, mock.Anything).Return([]discordapp.Message{msg("900", "sam", "hi")}, nil)
	chat.On("ActiveThreads", mock.Anything, channel).Return([]*discordgo.Channel(nil), errors.New("missing access"))

	ch := config.ChannelConfig{ID: "100", Name: "AI Coding"}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, got.Messages)
	assert.Empty(t, got.Threads)
}

func TestCollect_HistoryErrorPropagates(t *testing.T) {
	chat := new(mockChat)
	chat.On("ResolveChannel", mock.Anything, "100").Return(&discordgo.Channel{ID: "100"}, nil)
	chat.On("FetchUser", mock.Anything, "900").Return(&discordgo.User{Username: "sam"}, nil)
	chat.On("ChannelHistory", mock.Anything, "100", HistoryLimit, mock.Anything).Return(nil, errors.New("rate limited"))

	ch := config.ChannelConfig{ID: "100", Name: "AI Coding"}
	got, err := newTestCollector(chat).Collect(context.Background(), ch, "900", 7)
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
