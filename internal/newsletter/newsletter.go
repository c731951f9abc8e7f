package newsletter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fachebot/discord-digest-bot/internal/digest"
	"github.com/fachebot/discord-digest-bot/internal/logger"
)

// FileToken newsletter 文件名前缀
const FileToken = "newsletter"

var ErrGenerationFailed = errors.New("newsletter generation failed")

const newsletterPrompt = `Please turn the following summaries into an issue of the %s newsletter by %s:

%s

The newsletter should have a friendly, engaging tone. Organize the content into sections based on the headings in the summaries. Add a brief introduction at the beginning and a conclusion at the end. Feel free to add transitions between sections to improve readability.

The newsletter should be in Markdown format.
`

// completer 调用 LLM 生成文本（便于测试注入 mock）
type completer interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int) (string, error)
}

type Options struct {
	Model          string
	MaxTokens      int
	Title          string
	Author         string
	SummariesDir   string
	NewslettersDir string
}

type Generator struct {
	llmClient completer
	opts      Options
}

func NewGenerator(llmClient completer, opts Options) *Generator {
	return &Generator{llmClient: llmClient, opts: opts}
}

// Path 由摘要文件路径推导 newsletter 路径：替换文件名前缀与所在目录
func Path(digestPath, summariesDir, newslettersDir string) string {
	dir, base := filepath.Split(digestPath)
	base = strings.Replace(base, digest.FileToken, FileToken, 1)
	dir = strings.Replace(filepath.Clean(dir), filepath.Clean(summariesDir), filepath.Clean(newslettersDir), 1)
	return filepath.Join(dir, base)
}

func buildPrompt(title, author, summaries string) string {
	return fmt.Sprintf(newsletterPrompt, title, author, summaries)
}

// Generate 读取摘要文件，生成 newsletter 并写入，返回文件路径
func (g *Generator) Generate(ctx context.Context, digestPath string) (string, error) {
	logger.Infof("[Newsletter] 根据 %s 生成 newsletter", digestPath)

	data, err := os.ReadFile(digestPath)
	if err != nil {
		return "", fmt.Errorf("%w: 读取摘要文件失败: %v", ErrGenerationFailed, err)
	}

	prompt := buildPrompt(g.opts.Title, g.opts.Author, string(data))
	content, err := g.llmClient.Complete(ctx, g.opts.Model, prompt, g.opts.MaxTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	path := Path(digestPath, g.opts.SummariesDir, g.opts.NewslettersDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: 创建 newsletter 目录失败: %v", ErrGenerationFailed, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("%w: 写入 newsletter 失败: %v", ErrGenerationFailed, err)
	}

	logger.Infof("[Newsletter] 已保存到 %s", path)
	return path, nil
}
