// Package model defines the task representation and its on-disk codec: YAML
// front matter carrying identity and kind, followed by the payload body.
package model
