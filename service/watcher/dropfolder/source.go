// Package dropfolder watches the inbox store: a generic drop folder where
// users or external tools leave files to be turned into tasks.
package dropfolder

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/service/store"
	"github.com/viant/vetflow/service/watcher"
)

// Source polls the inbox store. Each file becomes one item; the kind is
// inferred from the filename prefix since hand-dropped files carry no
// explicit kind.
type Source struct {
	workspace *store.Workspace
	name      string
}

// New creates a drop-folder source over the workspace inbox.
func New(workspace *store.Workspace) *Source {
	return &Source{workspace: workspace, name: "dropfolder"}
}

func (s *Source) Name() string { return s.name }

// Poll lists the inbox. Item ids are prefixed filenames, which keeps dedup
// stable even when the same name is dropped again after processing.
func (s *Source) Poll(ctx context.Context) ([]watcher.Item, error) {
	names, err := s.workspace.List(ctx, store.Inbox)
	if err != nil {
		return nil, err
	}
	var items []watcher.Item
	for _, name := range names {
		if model.IsMetadata(name) || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := s.workspace.Read(ctx, store.Inbox, name)
		if err != nil {
			// File may have been moved away between list and read.
			continue
		}
		items = append(items, watcher.Item{
			ID:      "inbox:" + name,
			Kind:    model.KindFromFilename(name),
			Payload: string(data),
			Meta:    map[string]string{"filename": name},
		})
	}
	return items, nil
}

// Claim removes the consumed file from the inbox.
func (s *Source) Claim(ctx context.Context, item watcher.Item) error {
	name := item.Meta["filename"]
	if name == "" {
		return fmt.Errorf("item %s has no filename", item.ID)
	}
	return s.workspace.Delete(ctx, store.Inbox, name)
}
