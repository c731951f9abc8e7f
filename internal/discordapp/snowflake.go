package discordapp

import (
	"strconv"
	"time"
)

// discordEpochMillis Discord snowflake 纪元 2015-01-01T00:00:00Z
const discordEpochMillis = 1420070400000

// SnowflakeFromTime 构造给定时间对应的最小 snowflake，用于 before/after 分页参数
func SnowflakeFromTime(t time.Time) string {
	millis := t.UnixMilli() - discordEpochMillis
	if millis < 0 {
		millis = 0
	}
	return strconv.FormatInt(millis<<22, 10)
}
