// Package gmail watches a Gmail mailbox for unread messages and renders
// them as email tasks.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/service/watcher"
)

// Message is one inbound mail item.
type Message struct {
	ID      string
	Subject string
	From    string
	Body    string
}

// Mailbox abstracts the mail backend so the source can be tested without a
// Gmail account.
type Mailbox interface {
	ListUnread(ctx context.Context, max int64) ([]string, error)
	Fetch(ctx context.Context, id string) (*Message, error)
	MarkRead(ctx context.Context, id string) error
}

// Config represents gmail source configuration.
type Config struct {
	// Query selects messages; defaults to unread.
	Query string `yaml:"query,omitempty"`

	// MaxResults caps messages fetched per poll.
	MaxResults int64 `yaml:"maxResults,omitempty"`

	// MarkRead removes the unread label after materialization.
	MarkRead bool `yaml:"markRead,omitempty"`
}

// Source polls a mailbox for unread messages.
type Source struct {
	mailbox Mailbox
	config  Config
}

// New creates a gmail source over the given mailbox.
func New(mailbox Mailbox, config Config) *Source {
	if config.MaxResults <= 0 {
		config.MaxResults = 10
	}
	return &Source{mailbox: mailbox, config: config}
}

// NewWithClient creates a source backed by the Gmail API using an
// authorized HTTP client.
func NewWithClient(ctx context.Context, client *http.Client, config Config) (*Source, error) {
	service, err := gmailapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail client: %w", err)
	}
	query := config.Query
	if query == "" {
		query = "is:unread"
	}
	return New(&apiMailbox{service: service, query: query}, config), nil
}

func (s *Source) Name() string { return "gmail" }

// Poll fetches unread messages. Dedup is by message id, so a message left
// unread (e.g. MarkRead disabled) is still converted only once.
func (s *Source) Poll(ctx context.Context) ([]watcher.Item, error) {
	ids, err := s.mailbox.ListUnread(ctx, s.config.MaxResults)
	if err != nil {
		return nil, err
	}
	var items []watcher.Item
	for _, id := range ids {
		message, err := s.mailbox.Fetch(ctx, id)
		if err != nil {
			// One unfetchable message must not starve the rest of the
			// batch; it stays unread and is retried next cycle.
			log.Printf("gmail: failed to fetch message %s: %v", id, err)
			continue
		}
		items = append(items, watcher.Item{
			ID:      "gmail:" + message.ID,
			Kind:    model.KindEmailDraft,
			Payload: renderBody(message),
			Meta: map[string]string{
				"subject":    message.Subject,
				"from":       message.From,
				"message_id": message.ID,
			},
		})
	}
	return items, nil
}

// Claim optionally marks the source message read once materialized.
func (s *Source) Claim(ctx context.Context, item watcher.Item) error {
	if !s.config.MarkRead {
		return nil
	}
	return s.mailbox.MarkRead(ctx, item.Meta["message_id"])
}

func renderBody(message *Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Email from %s\n\n", message.From)
	fmt.Fprintf(&b, "**Subject:** %s\n\n---\n\n", message.Subject)
	b.WriteString(message.Body)
	return b.String()
}

type apiMailbox struct {
	service *gmailapi.Service
	query   string
}

func (m *apiMailbox) ListUnread(ctx context.Context, max int64) ([]string, error) {
	response, err := m.service.Users.Messages.List("me").Q(m.query).MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, message := range response.Messages {
		ids = append(ids, message.Id)
	}
	return ids, nil
}

func (m *apiMailbox) Fetch(ctx context.Context, id string) (*Message, error) {
	message, err := m.service.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	ret := &Message{ID: id}
	if message.Payload != nil {
		for _, header := range message.Payload.Headers {
			switch strings.ToLower(header.Name) {
			case "subject":
				ret.Subject = header.Value
			case "from":
				ret.From = header.Value
			}
		}
		ret.Body = extractBody(message.Payload)
	}
	return ret, nil
}

func (m *apiMailbox) MarkRead(ctx context.Context, id string) error {
	_, err := m.service.Users.Messages.Modify("me", id, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	return err
}

func extractBody(payload *gmailapi.MessagePart) string {
	if len(payload.Parts) == 0 {
		return decodePart(payload.Body)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" {
			if body := decodePart(part.Body); body != "" {
				return body
			}
		}
	}
	return ""
}

func decodePart(body *gmailapi.MessagePartBody) string {
	if body == nil || body.Data == "" {
		return ""
	}
	data, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		return ""
	}
	return string(data)
}
