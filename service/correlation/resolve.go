package correlation

import (
	"context"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
	"github.com/viant/vetflow/service/store"
)

// Resolve locates the single file in storeName whose task identity equals
// originID. Matching is exact on the embedded correlation id, never by
// substring. Zero matches or more than one yield a CorrelationError; the
// caller must surface it, not guess.
func Resolve(ctx context.Context, workspace *store.Workspace, storeName, originID string) (string, error) {
	names, err := workspace.List(ctx, storeName)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, name := range names {
		if model.IsMetadata(name) {
			continue
		}
		data, err := workspace.Read(ctx, storeName, name)
		if err != nil {
			continue
		}
		task, err := model.DecodeTask(name, data)
		if err != nil {
			continue
		}
		if task.ID == originID {
			matches = append(matches, name)
		}
	}
	if len(matches) != 1 {
		return "", types.NewCorrelationError(originID, matches...)
	}
	return matches[0], nil
}
