package model

import (
	"fmt"
	"strings"

	"github.com/viant/vetflow/internal/clock"
)

// MetadataName derives the sidecar filename associated 1:1 with a task file.
func MetadataName(taskName string) string {
	return Stem(taskName) + "_metadata.md"
}

// IsMetadata reports whether name refers to a metadata sidecar rather than a
// task file.
func IsMetadata(name string) bool {
	return strings.HasSuffix(Stem(name), "_metadata")
}

// RenderMetadata produces the sidecar content recording what happened to a
// task file: the action taken, size, kind and timestamp.
func RenderMetadata(task *Task, name, action string, size int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Metadata for %s\n\n", name)
	b.WriteString("## File Information\n")
	fmt.Fprintf(&b, "- Task ID: %s\n", task.ID)
	fmt.Fprintf(&b, "- Kind: %s\n", task.Kind)
	fmt.Fprintf(&b, "- Source: %s\n", task.Source)
	fmt.Fprintf(&b, "- Action: %s\n", action)
	fmt.Fprintf(&b, "- Size: %d bytes\n", size)
	fmt.Fprintf(&b, "- Processed: %s\n", clock.Now().UTC().Format("2006-01-02 15:04:05"))
	return b.String()
}
