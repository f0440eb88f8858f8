package engine

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
	"github.com/viant/vetflow/policy"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/connector"
	"github.com/viant/vetflow/service/store"
)

// fakeConnector records submissions and answers with a canned result or
// error.
type fakeConnector struct {
	kind       model.Kind
	maxPayload int
	err        error
	delay      time.Duration
	calls      []*model.Task
}

func (f *fakeConnector) Name() string     { return "fake-" + string(f.kind) }
func (f *fakeConnector) Kind() model.Kind { return f.kind }
func (f *fakeConnector) MaxPayload() int  { return f.maxPayload }

func (f *fakeConnector) Submit(_ context.Context, task *model.Task) (*types.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.calls = append(f.calls, task)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Result{ExternalID: "ext-" + task.ID}, nil
}

type fixture struct {
	workspace *store.Workspace
	ledger    *audit.Ledger
	engine    *Service
	social    *fakeConnector
}

func newFixture(t *testing.T, policyConfig policy.Config, connectors ...connector.Service) *fixture {
	t.Helper()
	base := t.TempDir()
	workspace, err := store.New(afs.New(), base)
	require.NoError(t, err)
	ledger, err := audit.New(filepath.Join(base, "audit.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	social := &fakeConnector{kind: model.KindSocialPost, maxPayload: 3000}
	registry := connector.NewRegistry(append([]connector.Service{social}, connectors...)...)
	service, err := New(workspace, registry, policy.New(policyConfig), ledger,
		WithConfig(Config{SubmitTimeout: time.Second}),
		WithSleep(func(time.Duration) {}),
	)
	require.NoError(t, err)
	return &fixture{workspace: workspace, ledger: ledger, engine: service, social: social}
}

func (f *fixture) approve(t *testing.T, task *model.Task) string {
	t.Helper()
	data, err := task.Encode()
	require.NoError(t, err)
	name := task.Filename()
	require.NoError(t, f.workspace.Put(context.Background(), store.Approved, name, data))
	return name
}

func (f *fixture) entries(t *testing.T) []audit.Entry {
	t.Helper()
	require.NoError(t, f.ledger.Close())
	lines, err := f.ledger.Tail(0)
	require.NoError(t, err)
	var entries []audit.Entry
	for _, line := range lines {
		entry, err := audit.ParseLine(line)
		require.NoError(t, err)
		entries = append(entries, entry)
	}
	return entries
}

func TestService_ScanApproved_Success(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "Excited about our new #AI feature!")
	name := f.approve(t, task)

	require.NoError(t, f.engine.ScanApproved(ctx))

	// Exactly one external call with the approved payload.
	require.Len(t, f.social.calls, 1)
	assert.Equal(t, task.Payload, f.social.calls[0].Payload)

	// The draft reached completed, nowhere else.
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)
	sidecar, err := f.workspace.Read(ctx, store.Completed, model.MetadataName(name))
	require.NoError(t, err)
	assert.Contains(t, string(sidecar), "delivered external_id=ext-"+task.ID)

	// The journal record was cleared after completion.
	names, err := f.workspace.List(ctx, store.Journal)
	require.NoError(t, err)
	assert.Empty(t, names)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "engine", entries[0].Actor)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	assert.Contains(t, entries[0].Detail, "external_id=ext-"+task.ID)
}

func TestService_ScanApproved_Concurrent(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	f.social.delay = 200 * time.Millisecond
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "posted exactly once")
	name := f.approve(t, task)

	// Two scans racing over the same approved draft must behave like one:
	// a sibling's in-flight journal record is not a crashed attempt.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.ScanApproved(ctx))
		}()
	}
	wg.Wait()

	require.Len(t, f.social.calls, 1)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)
	leftovers, err := f.workspace.List(ctx, store.Journal)
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
}

func TestService_ScanApproved_ForeignFile(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()

	// A bare file without front matter, approved by hand: kind comes from
	// the filename prefix, identity from the stem.
	name := "social_post_20240101_120000.txt"
	require.NoError(t, f.workspace.Put(ctx, store.Approved, name, []byte("Hello #AI")))

	require.NoError(t, f.engine.ScanApproved(ctx))

	require.Len(t, f.social.calls, 1)
	assert.Equal(t, "Hello #AI", f.social.calls[0].Payload)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	assert.Equal(t, name, entries[0].Target)
}

func TestService_ScanApproved_ValidationFailure(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "here is the admin password: hunter2")
	name := f.approve(t, task)

	require.NoError(t, f.engine.ScanApproved(ctx))

	// No external call was made.
	assert.Empty(t, f.social.calls)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)
	reason, err := f.workspace.Read(ctx, store.Rejected, model.Stem(name)+"_reason.md")
	require.NoError(t, err)
	assert.Contains(t, string(reason), "forbidden term: password")

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailedValidation, entries[0].Status)
}

func TestService_ScanApproved_NoConnector(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	task := model.NewTask(model.KindInvoiceRequest, "dropfolder", "Invoice ACME 1200 EUR")
	name := f.approve(t, task)

	require.NoError(t, f.engine.ScanApproved(ctx))

	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)
	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailedValidation, entries[0].Status)
	assert.Contains(t, entries[0].Detail, "no connector for kind invoice-request")
}

func TestService_ScanApproved_DeliveryFailure(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	f.social.err = errors.New("503 service unavailable")
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "launch day!")
	name := f.approve(t, task)

	require.NoError(t, f.engine.ScanApproved(ctx))

	require.Len(t, f.social.calls, 1)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)

	// No retry remains journaled; resubmission goes back through approval.
	names, err := f.workspace.List(ctx, store.Journal)
	require.NoError(t, err)
	assert.Empty(t, names)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailedDelivery, entries[0].Status)
	assert.Contains(t, entries[0].Detail, "503 service unavailable")
}

func TestService_ScanApproved_Empty(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	require.NoError(t, f.engine.ScanApproved(context.Background()))
	require.NoError(t, f.engine.ScanApproved(context.Background()))
	assert.Empty(t, f.social.calls)
	assert.Empty(t, f.entries(t))
}

func TestService_ScanApproved_Independent(t *testing.T) {
	failing := &fakeConnector{kind: model.KindEmailDraft, err: errors.New("smtp down")}
	f := newFixture(t, policy.DefaultConfig(), failing)
	ctx := context.Background()

	good := model.NewTask(model.KindSocialPost, "dropfolder", "all good here")
	bad := model.NewTask(model.KindEmailDraft, "gmail", "will not be sent")
	goodName := f.approve(t, good)
	badName := f.approve(t, bad)

	require.NoError(t, f.engine.ScanApproved(ctx))

	// One draft failing never blocks its sibling.
	location, err := f.workspace.Locate(ctx, goodName)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)
	location, err = f.workspace.Locate(ctx, badName)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)
	require.Len(t, f.social.calls, 1)
	require.Len(t, failing.calls, 1)
}

func TestService_ScanApproved_Truncate(t *testing.T) {
	config := policy.Config{MaxLength: 3000, Overflow: policy.OverflowTruncate}
	f := newFixture(t, config)
	f.social.maxPayload = 20
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", strings.Repeat("a", 50))
	name := f.approve(t, task)

	require.NoError(t, f.engine.ScanApproved(ctx))

	require.Len(t, f.social.calls, 1)
	assert.Equal(t, 20, len(f.social.calls[0].Payload))
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Detail, "truncated from 50 to 20 characters")
}

func TestService_ScanApproved_SkipsArtifacts(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	require.NoError(t, f.workspace.Put(ctx, store.Approved, "draft_metadata.md", []byte("sidecar")))
	require.NoError(t, f.workspace.Put(ctx, store.Approved, "draft_reason.md", []byte("note")))

	require.NoError(t, f.engine.ScanApproved(ctx))
	assert.Empty(t, f.social.calls)
	assert.Empty(t, f.entries(t))
}

func TestService_Recover_Delivered(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "already posted")
	name := f.approve(t, task)

	// A delivered record means the call succeeded but the crash preceded
	// the move; the engine finishes without calling again.
	record := &attempt{TaskID: task.ID, Name: name, Connector: "fake-social-post", State: attemptDelivered, ExternalID: "ext-prior"}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, f.workspace.Put(ctx, store.Journal, task.ID+".json", data))

	require.NoError(t, f.engine.ScanApproved(ctx))

	assert.Empty(t, f.social.calls)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)
	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusSuccess, entries[0].Status)
	assert.Contains(t, entries[0].Detail, "external_id=ext-prior")
}

func TestService_Recover_Unknown(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()
	task := model.NewTask(model.KindSocialPost, "dropfolder", "outcome unknown")
	name := f.approve(t, task)

	// A started record means the connector may or may not have been
	// called; re-calling risks a duplicate external effect.
	record := &attempt{TaskID: task.ID, Name: name, Connector: "fake-social-post", State: attemptStarted}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, f.workspace.Put(ctx, store.Journal, task.ID+".json", data))

	require.NoError(t, f.engine.ScanApproved(ctx))

	assert.Empty(t, f.social.calls)
	location, err := f.workspace.Locate(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, store.Rejected, location)
	names, err := f.workspace.List(ctx, store.Journal)
	require.NoError(t, err)
	assert.Empty(t, names)
	entries := f.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusFailedDelivery, entries[0].Status)
	assert.Contains(t, entries[0].Detail, "unknown outcome")
}

func TestService_CompleteOrigin(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()

	origin := model.NewTask(model.KindNote, "gmail", "please draft a reply")
	originData, err := origin.Encode()
	require.NoError(t, err)
	originName := origin.Filename()
	require.NoError(t, f.workspace.Put(ctx, store.NeedsAction, originName, originData))

	draft := model.NewTask(model.KindSocialPost, "planner", "the reply")
	draft.Meta = map[string]string{"origin_id": origin.ID}
	draftName := f.approve(t, draft)

	require.NoError(t, f.engine.ScanApproved(ctx))

	location, err := f.workspace.Locate(ctx, draftName)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location)
	location, err = f.workspace.Locate(ctx, originName)
	require.NoError(t, err)
	assert.Equal(t, store.Completed, location, "origin follows the delivered draft")

	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "correlate", entries[1].Action)
	assert.Equal(t, audit.StatusSuccess, entries[1].Status)
}

func TestService_CompleteOrigin_Ambiguous(t *testing.T) {
	f := newFixture(t, policy.DefaultConfig())
	ctx := context.Background()

	draft := model.NewTask(model.KindSocialPost, "planner", "orphan reply")
	draft.Meta = map[string]string{"origin_id": "missing-origin"}
	f.approve(t, draft)

	require.NoError(t, f.engine.ScanApproved(ctx))

	// The missing origin is surfaced in the ledger, never guessed.
	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "correlate", entries[1].Action)
	assert.Equal(t, audit.StatusInfo, entries[1].Status)
	assert.Contains(t, entries[1].Detail, "missing-origin")
}
