// Package policy implements the content rules every payload must satisfy
// before a connector may be invoked: length limits, forbidden terms and
// required topics. The same policy runs when a draft is created and again at
// execution time, since approval may be granted long after drafting.
package policy

import (
	"fmt"
	"strings"
)

// Overflow behaviours for payloads exceeding the length limit. Exactly one
// applies to the whole system; the engine never mixes them per call site.
const (
	OverflowReject   = "reject"
	OverflowTruncate = "truncate"
)

// Config is the declarative, serialisable policy definition.
type Config struct {
	// MaxLength caps payload size in runes. Zero means the default.
	MaxLength int `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`

	// Overflow selects what happens to an oversize payload: reject
	// (default) or truncate.
	Overflow string `yaml:"overflow,omitempty" json:"overflow,omitempty"`

	// Forbidden lists terms whose presence fails validation outright.
	Forbidden []string `yaml:"forbidden,omitempty" json:"forbidden,omitempty"`

	// RequiredTopics, when non-empty, requires at least one listed topic
	// to appear in the payload.
	RequiredTopics []string `yaml:"requiredTopics,omitempty" json:"requiredTopics,omitempty"`
}

// DefaultConfig mirrors the company-handbook defaults: a 3000 character cap
// and the sensitive-term blacklist.
func DefaultConfig() Config {
	return Config{
		MaxLength: 3000,
		Overflow:  OverflowReject,
		Forbidden: []string{"password", "credit card", "ssn", "social security", "confidential"},
	}
}

// Policy evaluates content against a Config.
type Policy struct {
	config Config
}

// New creates a policy, filling unset config fields with defaults.
func New(config Config) *Policy {
	def := DefaultConfig()
	if config.MaxLength <= 0 {
		config.MaxLength = def.MaxLength
	}
	if config.Overflow == "" {
		config.Overflow = def.Overflow
	}
	if config.Forbidden == nil {
		config.Forbidden = def.Forbidden
	}
	return &Policy{config: config}
}

// MaxLength returns the configured payload cap.
func (p *Policy) MaxLength() int { return p.config.MaxLength }

// Validate returns the reasons content violates the policy, or nil when it
// complies. Length is checked against limit, the smaller of the policy cap
// and any platform cap the caller supplies (zero means policy cap only).
func (p *Policy) Validate(content string, limit int) []string {
	var reasons []string
	lowered := strings.ToLower(content)
	for _, term := range p.config.Forbidden {
		if strings.Contains(lowered, strings.ToLower(term)) {
			reasons = append(reasons, fmt.Sprintf("contains forbidden term: %s", term))
		}
	}
	max := p.effectiveLimit(limit)
	if length := len([]rune(content)); length > max && p.config.Overflow != OverflowTruncate {
		reasons = append(reasons, fmt.Sprintf("exceeds length limit (%d/%d)", length, max))
	}
	if len(p.config.RequiredTopics) > 0 {
		found := false
		for _, topic := range p.config.RequiredTopics {
			if strings.Contains(lowered, strings.ToLower(topic)) {
				found = true
				break
			}
		}
		if !found {
			reasons = append(reasons, fmt.Sprintf("missing required topic, one of: %s", strings.Join(p.config.RequiredTopics, ", ")))
		}
	}
	return reasons
}

// Conform applies the overflow behaviour to a payload that already passed
// Validate. Under truncate it returns the shortened payload and a note;
// under reject it returns the payload unchanged (an oversize payload never
// reaches Conform in reject mode, Validate fails it first).
func (p *Policy) Conform(content string, limit int) (string, string) {
	max := p.effectiveLimit(limit)
	runes := []rune(content)
	if len(runes) <= max || p.config.Overflow != OverflowTruncate {
		return content, ""
	}
	return string(runes[:max]), fmt.Sprintf("truncated from %d to %d characters", len(runes), max)
}

func (p *Policy) effectiveLimit(limit int) int {
	max := p.config.MaxLength
	if limit > 0 && limit < max {
		max = limit
	}
	return max
}
