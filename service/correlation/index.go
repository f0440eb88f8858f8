package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
)

// Index remembers which source-native item ids have already been
// materialized as tasks, so a watcher never re-emits work for an item it has
// converted before. The index is persisted as a JSON snapshot so restarts
// keep the dedup guarantee.
type Index struct {
	fs   afs.Service
	url  string
	mux  sync.RWMutex
	seen map[string]string // source-native id -> task id
}

// NewIndex loads the snapshot at url when present, or starts empty.
func NewIndex(fs afs.Service, url string) (*Index, error) {
	index := &Index{fs: fs, url: url, seen: map[string]string{}}
	ctx := context.Background()
	if exists, _ := fs.Exists(ctx, url); exists {
		data, err := fs.DownloadWithURL(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to load correlation index %s: %w", url, err)
		}
		if err := json.Unmarshal(data, &index.seen); err != nil {
			return nil, fmt.Errorf("failed to decode correlation index %s: %w", url, err)
		}
	}
	return index, nil
}

// Seen reports whether the source-native id was already converted.
func (i *Index) Seen(id string) bool {
	i.mux.RLock()
	defer i.mux.RUnlock()
	_, ok := i.seen[id]
	return ok
}

// TaskFor returns the task id materialized for a source-native id.
func (i *Index) TaskFor(id string) (string, bool) {
	i.mux.RLock()
	defer i.mux.RUnlock()
	taskID, ok := i.seen[id]
	return taskID, ok
}

// Mark records that the source-native id produced taskID and persists the
// snapshot.
func (i *Index) Mark(ctx context.Context, id, taskID string) error {
	i.mux.Lock()
	i.seen[id] = taskID
	data, err := json.Marshal(i.seen)
	i.mux.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode correlation index: %w", err)
	}
	if err := i.fs.Upload(ctx, i.url, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to persist correlation index: %w", err)
	}
	return nil
}

// Len returns the number of tracked items.
func (i *Index) Len() int {
	i.mux.RLock()
	defer i.mux.RUnlock()
	return len(i.seen)
}
