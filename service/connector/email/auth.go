package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// NewOAuthClient builds an HTTP client from a Google client-secrets file and
// a previously obtained token file. The interactive authorization dance that
// produces the token file is a setup concern outside the workflow core.
func NewOAuthClient(ctx context.Context, credentialsFile, tokenFile string, scopes ...string) (*http.Client, error) {
	secrets, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secrets %s: %w", credentialsFile, err)
	}
	config, err := google.ConfigFromJSON(secrets, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secrets: %w", err)
	}
	token, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read token %s (run the authorization flow first): %w", tokenFile, err)
	}
	return config.Client(ctx, token), nil
}

func tokenFromFile(location string) (*oauth2.Token, error) {
	file, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(file).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}
