package discordapp

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeFromTime(t *testing.T) {
	ts := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	id := SnowflakeFromTime(ts)

	got, err := discordgo.SnowflakeTimestamp(id)
	require.NoError(t, err)
	assert.True(t, got.Equal(ts), "got %s", got)
}

func TestSnowflakeFromTime_BeforeEpoch(t *testing.T) {
	assert.Equal(t, "0", SnowflakeFromTime(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestConvertMessages_OldestFirst(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	raw := []*discordgo.Message{
		{ID: "3", Content: "third", Timestamp: base.Add(2 * time.Hour), Author: &discordgo.User{ID: "u1", Username: "sam"}},
		{ID: "2", Content: "second", Timestamp: base.Add(time.Hour), Author: &discordgo.User{ID: "u2", Username: "alex"}},
		{ID: "1", Content: "first", Timestamp: base},
	}

	got := convertMessages(raw)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].Content, got[1].Content, got[2].Content})
	assert.Empty(t, got[0].AuthorID)
	assert.Equal(t, "alex", got[1].AuthorName)
	assert.Equal(t, "u1", got[2].AuthorID)
}

func TestNewApp_CloseIdempotent(t *testing.T) {
	app, err := NewApp("token", nil)
	require.NoError(t, err)
	assert.NoError(t, app.Close())
	assert.NoError(t, app.Close())
}
