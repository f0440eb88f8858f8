package store

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/vetflow/internal/idgen"
)

// Store names define the workflow's finite-state machine: the store holding
// a task file is the task's state.
const (
	Inbox           = "inbox"
	NeedsAction     = "needs-action"
	PendingApproval = "pending-approval"
	Approved        = "approved"
	Rejected        = "rejected"
	Completed       = "completed"

	// Journal holds the engine's write-ahead delivery records; it is not a
	// task state and is never scanned for tasks.
	Journal = "journal"

	// staging receives in-progress writes so a concurrent reader never
	// observes a partially written task file.
	staging = ".staging"
)

// Stores lists the task-holding stores in transition order.
var Stores = []string{Inbox, NeedsAction, PendingApproval, Approved, Rejected, Completed}

// Workspace groups the named stores under one base location. All stores live
// on a single filesystem so every transition is an atomic rename, never a
// copy-then-delete with an observable window.
type Workspace struct {
	fs      afs.Service
	baseURL string
}

// New creates a workspace rooted at baseURL and ensures every store exists.
func New(fs afs.Service, baseURL string) (*Workspace, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("workspace base URL cannot be empty")
	}
	w := &Workspace{fs: fs, baseURL: baseURL}
	ctx := context.Background()
	dirs := append(append([]string{}, Stores...), Journal, staging)
	for _, dir := range dirs {
		url := path.Join(baseURL, dir)
		exists, _ := fs.Exists(ctx, url)
		if !exists {
			if err := fs.Create(ctx, url, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create store %s: %w", url, err)
			}
		}
	}
	return w, nil
}

// BaseURL returns the workspace root.
func (w *Workspace) BaseURL() string { return w.baseURL }

// URL returns the location of name within store.
func (w *Workspace) URL(store, name string) string {
	return path.Join(w.baseURL, store, name)
}

// Put writes data under store/name with write-then-rename discipline: the
// content lands in a staging location first and becomes visible in the store
// only through a single atomic move.
func (w *Workspace) Put(ctx context.Context, store, name string, data []byte) error {
	stagingURL := path.Join(w.baseURL, staging, fmt.Sprintf("%s.%s", name, idgen.Short()))
	if err := w.fs.Upload(ctx, stagingURL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to stage %s: %w", name, err)
	}
	if err := w.fs.Move(ctx, stagingURL, w.URL(store, name)); err != nil {
		_ = w.fs.Delete(ctx, stagingURL)
		return fmt.Errorf("failed to publish %s to %s: %w", name, store, err)
	}
	return nil
}

// Read returns the content of store/name.
func (w *Workspace) Read(ctx context.Context, store, name string) ([]byte, error) {
	data, err := w.fs.DownloadWithURL(ctx, w.URL(store, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", store, name, err)
	}
	return data, nil
}

// List returns the filenames currently in store, sorted for a stable
// processing order within one scan cycle.
func (w *Workspace) List(ctx context.Context, store string) ([]string, error) {
	objects, err := w.fs.List(ctx, path.Join(w.baseURL, store))
	if err != nil {
		return nil, fmt.Errorf("failed to list store %s: %w", store, err)
	}
	var names []string
	for _, object := range objects {
		if object.IsDir() {
			continue
		}
		names = append(names, object.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether store/name is present.
func (w *Workspace) Exists(ctx context.Context, store, name string) (bool, error) {
	return w.fs.Exists(ctx, w.URL(store, name))
}

// Move transitions name from one store to another as a single atomic rename.
// The move is the claim: whichever caller completes it owns the task.
func (w *Workspace) Move(ctx context.Context, name, from, to string) error {
	if err := w.fs.Move(ctx, w.URL(from, name), w.URL(to, name)); err != nil {
		return fmt.Errorf("failed to move %s from %s to %s: %w", name, from, to, err)
	}
	return nil
}

// Delete removes store/name. Used for journal housekeeping, never for task
// state transitions.
func (w *Workspace) Delete(ctx context.Context, store, name string) error {
	return w.fs.Delete(ctx, w.URL(store, name))
}

// Locate reports which single store currently holds name. It returns an
// error when the file is absent everywhere; observing it in more than one
// store would violate the mutual exclusivity invariant and is reported too.
func (w *Workspace) Locate(ctx context.Context, name string) (string, error) {
	var found []string
	for _, store := range Stores {
		exists, err := w.fs.Exists(ctx, w.URL(store, name))
		if err != nil {
			return "", err
		}
		if exists {
			found = append(found, store)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("task %s not present in any store", name)
	case 1:
		return found[0], nil
	}
	return "", fmt.Errorf("task %s present in multiple stores: %v", name, found)
}
