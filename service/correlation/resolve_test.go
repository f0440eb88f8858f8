package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
	"github.com/viant/vetflow/service/store"
)

func putTask(t *testing.T, workspace *store.Workspace, storeName, id string) string {
	t.Helper()
	task := &model.Task{ID: id, Kind: model.KindSocialPost, Source: "test", Payload: "hello"}
	data, err := task.Encode()
	require.NoError(t, err)
	name := id + ".md"
	require.NoError(t, workspace.Put(context.Background(), storeName, name, data))
	return name
}

func TestResolve(t *testing.T) {
	workspace, err := store.New(afs.New(), t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	first := putTask(t, workspace, store.NeedsAction, "task-0001")
	putTask(t, workspace, store.NeedsAction, "task-0002")

	// Exact id matches exactly one file.
	name, err := Resolve(ctx, workspace, store.NeedsAction, "task-0001")
	require.NoError(t, err)
	assert.Equal(t, first, name)

	// A prefix is not a match; matching is exact, never substring.
	_, err = Resolve(ctx, workspace, store.NeedsAction, "task-000")
	require.Error(t, err)
	assert.True(t, types.IsCorrelation(err))

	// Unknown ids are surfaced as correlation failures.
	_, err = Resolve(ctx, workspace, store.NeedsAction, "task-9999")
	require.Error(t, err)
	assert.True(t, types.IsCorrelation(err))
}

func TestResolve_Ambiguous(t *testing.T) {
	workspace, err := store.New(afs.New(), t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// Two files embedding the same id: ambiguity is reported, never guessed.
	task := &model.Task{ID: "task-0001", Kind: model.KindNote, Source: "test", Payload: "x"}
	data, err := task.Encode()
	require.NoError(t, err)
	require.NoError(t, workspace.Put(ctx, store.NeedsAction, "a.md", data))
	require.NoError(t, workspace.Put(ctx, store.NeedsAction, "b.md", data))

	_, err = Resolve(ctx, workspace, store.NeedsAction, "task-0001")
	require.Error(t, err)
	var correlationErr *types.CorrelationError
	require.ErrorAs(t, err, &correlationErr)
	assert.Len(t, correlationErr.Candidates, 2)
}
