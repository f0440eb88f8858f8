package approval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/store"
)

type fixture struct {
	workspace *store.Workspace
	ledger    *audit.Ledger
	gate      *Service
}

func newFixture(t *testing.T, options ...Option) *fixture {
	t.Helper()
	base := t.TempDir()
	workspace, err := store.New(afs.New(), base)
	require.NoError(t, err)
	ledger, err := audit.New(filepath.Join(base, "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return &fixture{
		workspace: workspace,
		ledger:    ledger,
		gate:      New(workspace, ledger, options...),
	}
}

func (f *fixture) putDraft(t *testing.T, id, payload string) string {
	t.Helper()
	task := &model.Task{ID: id, Kind: model.KindSocialPost, Source: "planner", Payload: payload}
	data, err := task.Encode()
	require.NoError(t, err)
	name := id + ".md"
	require.NoError(t, f.workspace.Put(context.Background(), store.PendingApproval, name, data))
	return name
}

func TestService_ListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.gate.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	f.putDraft(t, "draft-b", "second")
	f.putDraft(t, "draft-a", "first")
	// Sidecars are not drafts and never show up in the listing.
	require.NoError(t, f.workspace.Put(ctx, store.PendingApproval, "draft-a_metadata.md", []byte("meta")))

	pending, err = f.gate.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "draft-a.md", pending[0].Name)
	assert.Equal(t, "first", pending[0].Task.Payload)
	assert.Equal(t, "draft-b.md", pending[1].Name)
}

func TestService_Decide(t *testing.T) {
	var decisions []*Decision
	f := newFixture(t, WithDecisionListener(func(d *Decision) {
		decisions = append(decisions, d)
	}))
	ctx := context.Background()

	approveName := f.putDraft(t, "draft-approve", "ship it")
	rejectName := f.putDraft(t, "draft-reject", "hold it")

	// Approve by exact filename.
	decision, err := f.gate.Decide(ctx, approveName, true, "")
	require.NoError(t, err)
	assert.True(t, decision.Approved)
	assert.Equal(t, approveName, decision.Name)
	location, err := f.workspace.Locate(ctx, approveName)
	require.NoError(t, err)
	assert.Equal(t, store.Approved, location)

	// Reject by embedded task id, with a reason artifact.
	decision, err = f.gate.Decide(ctx, "draft-reject", false, "tone is off")
	require.NoError(t, err)
	assert.False(t, decision.Approved)
	location, err = f.workspace.Locate(ctx, rejectName)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)
	reason, err := f.workspace.Read(ctx, store.Rejected, "draft-reject_reason.md")
	require.NoError(t, err)
	assert.Contains(t, string(reason), "tone is off")

	require.Len(t, decisions, 2)
	assert.False(t, decisions[0].DecidedAt.IsZero())

	// Once decided the draft is gone from pending; deciding again fails.
	_, err = f.gate.Decide(ctx, approveName, true, "")
	assert.Error(t, err)

	// The ledger recorded both decisions.
	require.NoError(t, f.ledger.Close())
	lines, err := f.ledger.Tail(0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "approval | approve | "+approveName)
	assert.Contains(t, lines[1], "approval | reject | "+rejectName)
}

func TestService_Decide_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.gate.Decide(context.Background(), "no-such-task", true, "")
	assert.Error(t, err)
	_, err = f.gate.Decide(context.Background(), "", true, "")
	assert.Error(t, err)
}
