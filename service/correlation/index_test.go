package correlation

import (
	"context"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
)

func TestIndex(t *testing.T) {
	fs := afs.New()
	url := path.Join(t.TempDir(), "index", "dropfolder.json")
	ctx := context.Background()

	index, err := NewIndex(fs, url)
	require.NoError(t, err)
	assert.False(t, index.Seen("inbox:a.md"))
	assert.Equal(t, 0, index.Len())

	require.NoError(t, index.Mark(ctx, "inbox:a.md", "task-1"))
	require.NoError(t, index.Mark(ctx, "inbox:b.md", "task-2"))
	assert.True(t, index.Seen("inbox:a.md"))
	taskID, ok := index.TaskFor("inbox:b.md")
	assert.True(t, ok)
	assert.Equal(t, "task-2", taskID)

	// A restart reloads the snapshot, so dedup survives the process.
	reloaded, err := NewIndex(fs, url)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.Seen("inbox:a.md"))
	assert.False(t, reloaded.Seen("inbox:c.md"))
}

func TestNewIndex_Corrupt(t *testing.T) {
	fs := afs.New()
	url := path.Join(t.TempDir(), "broken.json")
	require.NoError(t, fs.Upload(context.Background(), url, 0o644, strings.NewReader("not json")))
	_, err := NewIndex(fs, url)
	assert.Error(t, err)
}
