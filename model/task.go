package model

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/viant/vetflow/internal/clock"
	"github.com/viant/vetflow/internal/idgen"
	"gopkg.in/yaml.v3"
)

// Kind classifies a task by the external effect it requests.
type Kind string

const (
	KindSocialPost     Kind = "social-post"
	KindEmailDraft     Kind = "email-draft"
	KindInvoiceRequest Kind = "invoice-request"
	KindNote           Kind = "note"
)

const (
	frontMatterMarker = "---"
	taskExt           = ".md"
)

// Task is the unit of work moving through the store state machine. Its state
// is not a field: the store currently holding the task file is the state.
type Task struct {
	// ID is the correlation identifier, stable across moves and embedded
	// verbatim in the task file. Approval artifacts reference it.
	ID        string            `yaml:"id"`
	Kind      Kind              `yaml:"kind"`
	Source    string            `yaml:"source"`
	CreatedAt time.Time         `yaml:"created_at"`
	Meta      map[string]string `yaml:"meta,omitempty"`

	// Payload is the body content submitted to a connector. Not part of
	// the front matter.
	Payload string `yaml:"-"`
}

// NewTask creates a task with a fresh correlation id and current timestamp.
func NewTask(kind Kind, source, payload string) *Task {
	return &Task{
		ID:        idgen.New(),
		Kind:      kind,
		Source:    source,
		CreatedAt: clock.Now().UTC(),
		Payload:   payload,
	}
}

// Filename derives the store filename for the task: kind, timestamp and a
// short random suffix. Moving the file never changes the name, so identity
// is stable across transitions.
func (t *Task) Filename() string {
	kind := strings.ReplaceAll(string(t.Kind), "-", "_")
	stamp := t.CreatedAt.Format("20060102_150405")
	suffix := t.ID
	if idx := strings.Index(suffix, "-"); idx > 0 {
		suffix = suffix[:idx]
	}
	if suffix == "" {
		suffix = idgen.Short()
	}
	return fmt.Sprintf("%s_%s_%s%s", kind, stamp, suffix, taskExt)
}

// Encode renders the task file: YAML front matter followed by the payload.
func (t *Task) Encode() ([]byte, error) {
	header, err := yaml.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task %s: %w", t.ID, err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontMatterMarker + "\n")
	buf.Write(header)
	buf.WriteString(frontMatterMarker + "\n")
	buf.WriteString(t.Payload)
	return buf.Bytes(), nil
}

// DecodeTask parses a task file. Files without front matter (dropped in by
// hand or produced by foreign tools) are accepted: the whole content becomes
// the payload, the kind is inferred from the filename prefix and the
// filename stem serves as identity.
func DecodeTask(name string, data []byte) (*Task, error) {
	content := string(data)
	if !strings.HasPrefix(content, frontMatterMarker+"\n") {
		return foreignTask(name, content), nil
	}
	rest := content[len(frontMatterMarker)+1:]
	idx := strings.Index(rest, "\n"+frontMatterMarker+"\n")
	if idx < 0 {
		return foreignTask(name, content), nil
	}
	task := &Task{}
	if err := yaml.Unmarshal([]byte(rest[:idx+1]), task); err != nil {
		return nil, fmt.Errorf("failed to decode task %s: %w", name, err)
	}
	task.Payload = rest[idx+len(frontMatterMarker)+2:]
	if task.ID == "" {
		task.ID = Stem(name)
	}
	if task.Kind == "" {
		task.Kind = KindFromFilename(name)
	}
	return task, nil
}

func foreignTask(name, payload string) *Task {
	return &Task{
		ID:      Stem(name),
		Kind:    KindFromFilename(name),
		Source:  "manual",
		Payload: payload,
	}
}

// Stem returns the filename without directory and extension; for foreign
// files it doubles as the task identity.
func Stem(name string) string {
	base := path.Base(name)
	return strings.TrimSuffix(base, path.Ext(base))
}

// KindFromFilename infers a kind from the filename prefix. Used only as a
// fallback for files lacking an explicit kind field.
func KindFromFilename(name string) Kind {
	base := strings.ToLower(path.Base(name))
	switch {
	case strings.HasPrefix(base, "social_post"), strings.HasPrefix(base, "linkedin"), strings.HasPrefix(base, "twitter"):
		return KindSocialPost
	case strings.HasPrefix(base, "email"):
		return KindEmailDraft
	case strings.HasPrefix(base, "invoice"):
		return KindInvoiceRequest
	}
	return KindNote
}
