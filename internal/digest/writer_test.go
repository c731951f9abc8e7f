package digest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(dir string) *Writer {
	w := NewWriter(dir)
	w.now = func() time.Time { return time.Date(2024, 6, 8, 23, 30, 0, 0, time.Local) }
	return w
}

func TestWrite_ContentAndPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "src", "summaries")
	w := newTestWriter(dir)

	path, err := w.Write([]string{"## A\n\nfirst", "## B\n\nsecond"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "all_summaries_2024-06-08.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Summaries\n\n## A\n\nfirst\n\n## B\n\nsecond", string(data))
}

func TestWrite_OverwritesSameDay(t *testing.T) {
	w := newTestWriter(t.TempDir())

	first, err := w.Write([]string{"## A\n\na much longer first version of the section"})
	require.NoError(t, err)
	second, err := w.Write([]string{"## B\n\nshort"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "# Summaries\n\n## B\n\nshort", string(data))
}

func TestWrite_EmptySections(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "summaries")
	path, err := newTestWriter(dir).Write(nil)
	assert.Empty(t, path)
	assert.True(t, errors.Is(err, ErrNoSections))

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "空输入不应创建目录")
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "all_summaries_2025-01-09.md", FileName(time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)))
}
