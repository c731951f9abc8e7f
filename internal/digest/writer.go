package digest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// Title 摘要文档的一级标题
	Title = "# Summaries"
	// FileToken 摘要文件名中的固定前缀，newsletter 路径由它替换得到
	FileToken = "all_summaries"
)

var ErrNoSections = errors.New("no summary sections")

type Writer struct {
	dir string
	now func() time.Time
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// FileName 按本地日期生成 all_summaries_YYYY-MM-DD.md
func FileName(date time.Time) string {
	return fmt.Sprintf("%s_%s.md", FileToken, date.Format("2006-01-02"))
}

// Render 生成摘要文档内容
func Render(sections []string) string {
	return Title + "\n\n" + strings.Join(sections, "\n\n")
}

// Write 写入当天的摘要文件（同日重复运行直接覆盖），返回文件路径
func (w *Writer) Write(sections []string) (string, error) {
	if len(sections) == 0 {
		return "", ErrNoSections
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("创建摘要目录失败: %w", err)
	}

	path := filepath.Join(w.dir, FileName(w.now()))
	if err := os.WriteFile(path, []byte(Render(sections)), 0644); err != nil {
		return "", fmt.Errorf("写入摘要文件失败: %w", err)
	}
	return path, nil
}
