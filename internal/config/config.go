package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrConfigurationMissing 启动时缺少必需配置（致命）
var ErrConfigurationMissing = errors.New("configuration missing")

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type LLM struct {
	BaseURL          string `yaml:"BaseURL"`          // 兼容 OpenAI API 的端点
	SummaryModel     string `yaml:"SummaryModel"`     // 频道总结所用模型
	NewsletterModel  string `yaml:"NewsletterModel"`  // 生成 newsletter 所用模型
	MaxTokens        int    `yaml:"MaxTokens"`        // 单次输出的 token 上限
	ContextWindow    int    `yaml:"ContextWindow"`    // 模型上下文窗口大小，仅用于告警
	NewsletterTitle  string `yaml:"NewsletterTitle"`  // newsletter 名称
	NewsletterAuthor string `yaml:"NewsletterAuthor"` // newsletter 作者
	APIKey           string `yaml:"-"`
}

type Output struct {
	SummariesDir   string `yaml:"SummariesDir"`
	NewslettersDir string `yaml:"NewslettersDir"`
	DataDir        string `yaml:"DataDir"`
}

type Metrics struct {
	TextfilePath string `yaml:"TextfilePath"` // 为空表示不导出
}

// ChannelSpec 配置文件中的频道声明，ID 通过环境变量注入
type ChannelSpec struct {
	Key             string   `yaml:"Key"`
	Name            string   `yaml:"Name"`
	ChannelIdEnv    string   `yaml:"ChannelIdEnv"`
	UserIdEnvs      []string `yaml:"UserIdEnvs"`
	AdmitAllAuthors bool     `yaml:"AdmitAllAuthors"` // 是否收录所有作者的消息
}

// Secrets 从环境变量读取的凭据
type Secrets struct {
	DiscordToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	LLMAPIKey    string `envconfig:"ANTHROPIC_API_KEY" required:"true"`
	LLMBaseURL   string `envconfig:"LLM_BASE_URL"`
}

type Config struct {
	Sock5Proxy Sock5Proxy    `yaml:"Sock5Proxy"`
	LLM        LLM           `yaml:"LLM"`
	Output     Output        `yaml:"Output"`
	Metrics    Metrics       `yaml:"Metrics"`
	Channels   []ChannelSpec `yaml:"Channels"`

	DiscordToken string `yaml:"-"`
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}
	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadSecrets 读取 .env（若存在）与环境变量中的凭据
func (c *Config) LoadSecrets() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("读取 .env 失败: %w", err)
	}

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigurationMissing, err)
	}
	if s.DiscordToken == "" {
		return fmt.Errorf("%w: DISCORD_BOT_TOKEN 为空", ErrConfigurationMissing)
	}
	if s.LLMAPIKey == "" {
		return fmt.Errorf("%w: ANTHROPIC_API_KEY 为空", ErrConfigurationMissing)
	}

	c.DiscordToken = s.DiscordToken
	c.LLM.APIKey = s.LLMAPIKey
	if s.LLMBaseURL != "" {
		c.LLM.BaseURL = s.LLMBaseURL
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.anthropic.com/v1/"
	}
	if c.LLM.SummaryModel == "" {
		c.LLM.SummaryModel = "claude-3-5-sonnet-20240620"
	}
	if c.LLM.NewsletterModel == "" {
		c.LLM.NewsletterModel = "claude-3-sonnet-20240229"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2048
	}
	if c.LLM.ContextWindow == 0 {
		c.LLM.ContextWindow = 200000
	}
	if c.LLM.NewsletterTitle == "" {
		c.LLM.NewsletterTitle = "Developer Microskills"
	}
	if c.LLM.NewsletterAuthor == "" {
		c.LLM.NewsletterAuthor = "Sam Julien"
	}
	if c.Output.SummariesDir == "" {
		c.Output.SummariesDir = "src/summaries"
	}
	if c.Output.NewslettersDir == "" {
		c.Output.NewslettersDir = "src/newsletters"
	}
	if c.Output.DataDir == "" {
		c.Output.DataDir = "data"
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 LLM
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM.BaseURL 不能为空")
	}
	if c.LLM.SummaryModel == "" || c.LLM.NewsletterModel == "" {
		return fmt.Errorf("LLM.SummaryModel 和 LLM.NewsletterModel 不能为空")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM.MaxTokens 必须大于 0")
	}

	// 验证 Output
	if c.Output.SummariesDir == c.Output.NewslettersDir {
		return fmt.Errorf("Output.SummariesDir 与 Output.NewslettersDir 不能相同")
	}

	// 验证 Sock5Proxy
	if c.Sock5Proxy.Enable && (c.Sock5Proxy.Host == "" || c.Sock5Proxy.Port <= 0) {
		return fmt.Errorf("Sock5Proxy.Host/Port 无效")
	}

	// 验证 Channels
	if len(c.Channels) == 0 {
		return fmt.Errorf("Channels 不能为空")
	}
	seen := make(map[string]bool)
	for i, ch := range c.Channels {
		if ch.Key == "" {
			return fmt.Errorf("Channels[%d].Key 不能为空", i)
		}
		if seen[ch.Key] {
			return fmt.Errorf("Channels[%d].Key 重复: %s", i, ch.Key)
		}
		seen[ch.Key] = true
		if ch.Name == "" {
			return fmt.Errorf("Channels[%d].Name 不能为空", i)
		}
		if ch.ChannelIdEnv == "" {
			return fmt.Errorf("Channels[%d].ChannelIdEnv 不能为空", i)
		}
		if len(ch.UserIdEnvs) == 0 {
			return fmt.Errorf("Channels[%d].UserIdEnvs 不能为空", i)
		}
	}

	return nil
}
