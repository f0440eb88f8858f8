// Package email sends approved outbound mail through the Gmail API.
package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
)

// Sender dispatches a raw RFC-2822 message and returns the vendor message
// id. Extracted so tests can run without a Gmail account.
type Sender interface {
	Send(ctx context.Context, raw string) (string, error)
}

// Service is the outbound email connector. The recipient and subject travel
// in the task metadata; the payload is the message body.
type Service struct {
	sender Sender
	from   string
}

// Option customises the connector.
type Option func(*Service)

// WithSender overrides the message dispatcher.
func WithSender(sender Sender) Option {
	return func(s *Service) { s.sender = sender }
}

// New creates an email connector sending as from.
func New(from string, options ...Option) *Service {
	ret := &Service{from: from}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// NewWithClient creates a connector backed by the Gmail API using the given
// authorized HTTP client.
func NewWithClient(ctx context.Context, client *http.Client, from string) (*Service, error) {
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail client: %w", err)
	}
	return New(from, WithSender(&gmailSender{service: service})), nil
}

func (s *Service) Name() string { return "email" }

func (s *Service) Kind() model.Kind { return model.KindEmailDraft }

func (s *Service) MaxPayload() int { return 0 }

// Submit sends the task payload as an email message.
func (s *Service) Submit(ctx context.Context, task *model.Task) (*types.Result, error) {
	if s.sender == nil {
		return nil, fmt.Errorf("email connector is not authorized")
	}
	to := task.Meta["to"]
	if to == "" {
		return nil, fmt.Errorf("task %s has no recipient", task.ID)
	}
	subject := task.Meta["subject"]
	if subject == "" {
		subject = "Automated message"
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(task.Payload)

	id, err := s.sender.Send(ctx, msg.String())
	if err != nil {
		return nil, err
	}
	return &types.Result{ExternalID: id, Detail: "to=" + to}, nil
}

type gmailSender struct {
	service *gmail.Service
}

func (g *gmailSender) Send(ctx context.Context, raw string) (string, error) {
	message := &gmail.Message{Raw: base64.URLEncoding.EncodeToString([]byte(raw))}
	sent, err := g.service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send failed: %w", err)
	}
	return sent.Id, nil
}
