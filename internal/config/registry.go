package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ChannelConfig 频道注册表中的一项，启动后不可变
type ChannelConfig struct {
	Key             string
	ID              string
	Users           []string
	Name            string
	AdmitAllAuthors bool
}

// LookupFunc 环境变量查询函数，便于测试注入
type LookupFunc func(key string) (string, bool)

// BuildRegistry 按配置顺序解析所有频道与用户 ID
func (c *Config) BuildRegistry() ([]ChannelConfig, error) {
	return c.BuildRegistryWith(os.LookupEnv)
}

func (c *Config) BuildRegistryWith(lookup LookupFunc) ([]ChannelConfig, error) {
	registry := make([]ChannelConfig, 0, len(c.Channels))
	for _, spec := range c.Channels {
		channelID, err := lookupID(lookup, spec.ChannelIdEnv)
		if err != nil {
			return nil, err
		}

		users := make([]string, 0, len(spec.UserIdEnvs))
		for _, env := range spec.UserIdEnvs {
			userID, err := lookupID(lookup, env)
			if err != nil {
				return nil, err
			}
			users = append(users, userID)
		}

		registry = append(registry, ChannelConfig{
			Key:             spec.Key,
			ID:              channelID,
			Users:           users,
			Name:            spec.Name,
			AdmitAllAuthors: spec.AdmitAllAuthors,
		})
	}
	return registry, nil
}

// lookupID 读取并校验数字 ID（Discord snowflake）
func lookupID(lookup LookupFunc, env string) (string, error) {
	raw, ok := lookup(env)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", fmt.Errorf("%w: 环境变量 %s 未设置", ErrConfigurationMissing, env)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: 环境变量 %s 不是合法数字: %v", ErrConfigurationMissing, env, err)
	}
	return strconv.FormatUint(id, 10), nil
}
