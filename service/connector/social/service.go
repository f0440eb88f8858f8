// Package social posts approved content to a LinkedIn-style social network
// through its ugcPosts REST API.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/viant/scy"
	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
)

const (
	defaultBaseURL    = "https://api.linkedin.com/v2"
	defaultVisibility = "PUBLIC"
	// platformMaxPayload is the network's post length cap.
	platformMaxPayload = 3000
)

// Config describes the vendor endpoint and credential location.
type Config struct {
	// BaseURL overrides the vendor API root, mainly for tests.
	BaseURL string `yaml:"baseURL,omitempty"`

	// TokenURL is a scy resource location holding the bearer token.
	TokenURL string `yaml:"tokenURL,omitempty"`

	// Visibility is PUBLIC or CONNECTIONS.
	Visibility string `yaml:"visibility,omitempty"`
}

// Service is the social network connector.
type Service struct {
	config  Config
	client  *http.Client
	secrets *scy.Service

	mux       sync.Mutex
	token     string
	personURN string
}

// Option customises the connector.
type Option func(*Service)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithToken injects a static bearer token, bypassing scy.
func WithToken(token string) Option {
	return func(s *Service) { s.token = token }
}

// New creates a social connector.
func New(config Config, options ...Option) *Service {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	if config.Visibility == "" {
		config.Visibility = defaultVisibility
	}
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

func (s *Service) Name() string { return "social" }

func (s *Service) Kind() model.Kind { return model.KindSocialPost }

func (s *Service) MaxPayload() int { return platformMaxPayload }

// Submit publishes the task payload as a text post and returns the vendor
// post id.
func (s *Service) Submit(ctx context.Context, task *model.Task) (*types.Result, error) {
	token, err := s.ensureToken(ctx)
	if err != nil {
		return nil, err
	}
	urn, err := s.ensurePersonURN(ctx, token)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"author":         urn,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": map[string]interface{}{
				"shareCommentary":    map[string]string{"text": task.Payload},
				"shareMediaCategory": "NONE",
			},
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": s.config.Visibility,
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/ugcPosts", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("post request failed: %w", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	if response.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("post rejected by vendor: HTTP %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil || result.ID == "" {
		return nil, fmt.Errorf("no post id in vendor response")
	}
	return &types.Result{ExternalID: result.ID}, nil
}

func (s *Service) ensureToken(ctx context.Context) (string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.token != "" {
		return s.token, nil
	}
	if s.config.TokenURL == "" {
		return "", fmt.Errorf("social connector has no token configured")
	}
	secret, err := s.secrets.Load(ctx, scy.NewResource(nil, s.config.TokenURL, ""))
	if err != nil {
		return "", fmt.Errorf("failed to load social token: %w", err)
	}
	s.token = strings.TrimSpace(secret.String())
	return s.token, nil
}

// ensurePersonURN resolves the author URN once via the OIDC userinfo
// endpoint and caches it. The sub field may carry either a bare id or a
// full URN.
func (s *Service) ensurePersonURN(ctx context.Context, token string) (string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.personURN != "" {
		return s.personURN, nil
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	request.Header.Set("Authorization", "Bearer "+token)
	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo rejected: HTTP %d", response.StatusCode)
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(response.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("userinfo response has no subject")
	}
	if strings.HasPrefix(info.Sub, "urn:li:person:") {
		s.personURN = info.Sub
	} else {
		s.personURN = "urn:li:person:" + info.Sub
	}
	return s.personURN, nil
}
