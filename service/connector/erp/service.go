// Package erp drafts customer invoices in an Odoo ERP instance over its
// JSON-RPC endpoint.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/scy"
	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
)

// Config locates the ERP instance and its credential.
type Config struct {
	URL      string `yaml:"url,omitempty"`      // e.g. https://erp.example.com
	Database string `yaml:"database,omitempty"` // Odoo database name
	Username string `yaml:"username,omitempty"`
	// SecretURL is a scy resource holding the password or API key.
	SecretURL string `yaml:"secretURL,omitempty"`
}

// Service is the invoice connector.
type Service struct {
	config  Config
	client  *http.Client
	secrets *scy.Service

	mux      sync.Mutex
	password string
	uid      int
}

// Option customises the connector.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithPassword injects a static credential, bypassing scy.
func WithPassword(password string) Option {
	return func(s *Service) { s.password = password }
}

// New creates an ERP connector.
func New(config Config, options ...Option) *Service {
	ret := &Service{
		config:  config,
		client:  http.DefaultClient,
		secrets: scy.New(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *Service) Name() string { return "erp" }

func (s *Service) Kind() model.Kind { return model.KindInvoiceRequest }

func (s *Service) MaxPayload() int { return 0 }

// Submit drafts a customer invoice from the task. The partner and amount
// travel in the task metadata; the payload becomes the invoice line
// description.
func (s *Service) Submit(ctx context.Context, task *model.Task) (*types.Result, error) {
	partnerID, err := strconv.Atoi(task.Meta["partner_id"])
	if err != nil {
		return nil, fmt.Errorf("task %s has no valid partner_id: %w", task.ID, err)
	}
	amount, err := strconv.ParseFloat(task.Meta["amount"], 64)
	if err != nil {
		return nil, fmt.Errorf("task %s has no valid amount: %w", task.ID, err)
	}
	description := strings.TrimSpace(task.Payload)
	if description == "" {
		description = "Service invoice"
	}
	uid, password, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	invoice := map[string]interface{}{
		"move_type":  "out_invoice",
		"partner_id": partnerID,
		"invoice_line_ids": []interface{}{
			[]interface{}{0, 0, map[string]interface{}{
				"name":       description,
				"quantity":   1,
				"price_unit": amount,
			}},
		},
	}
	result, err := s.call(ctx, "object", "execute_kw",
		s.config.Database, uid, password, "account.move", "create", []interface{}{invoice})
	if err != nil {
		return nil, err
	}
	id, ok := result.(float64)
	if !ok {
		return nil, fmt.Errorf("unexpected invoice create response: %v", result)
	}
	return &types.Result{ExternalID: strconv.Itoa(int(id)), Detail: "draft invoice"}, nil
}

func (s *Service) authenticate(ctx context.Context) (int, string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.password == "" {
		if s.config.SecretURL == "" {
			return 0, "", fmt.Errorf("erp connector has no credential configured")
		}
		secret, err := s.secrets.Load(ctx, scy.NewResource(nil, s.config.SecretURL, ""))
		if err != nil {
			return 0, "", fmt.Errorf("failed to load erp credential: %w", err)
		}
		s.password = strings.TrimSpace(secret.String())
	}
	if s.uid != 0 {
		return s.uid, s.password, nil
	}
	result, err := s.call(ctx, "common", "authenticate",
		s.config.Database, s.config.Username, s.password, map[string]interface{}{})
	if err != nil {
		return 0, "", err
	}
	uid, ok := result.(float64)
	if !ok || uid == 0 {
		return 0, "", fmt.Errorf("erp authentication failed for %s", s.config.Username)
	}
	s.uid = int(uid)
	return s.uid, s.password, nil
}

// call performs one JSON-RPC request against the Odoo /jsonrpc endpoint.
func (s *Service) call(ctx context.Context, service, method string, args ...interface{}) (interface{}, error) {
	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "call",
		"params": map[string]interface{}{
			"service": service,
			"method":  method,
			"args":    args,
		},
		"id": 1,
	}
	data, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL+"/jsonrpc", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	response, err := s.client.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("erp request failed: %w", err)
	}
	defer response.Body.Close()
	var envelope struct {
		Result interface{} `json:"result"`
		Error  *struct {
			Message string `json:"message"`
			Data    struct {
				Message string `json:"message"`
			} `json:"data"`
		} `json:"error"`
	}
	if err := json.NewDecoder(response.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode erp response: %w", err)
	}
	if envelope.Error != nil {
		message := envelope.Error.Data.Message
		if message == "" {
			message = envelope.Error.Message
		}
		return nil, fmt.Errorf("erp call %s.%s failed: %s", service, method, message)
	}
	return envelope.Result, nil
}
