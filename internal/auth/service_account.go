package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/pkg/version"
)

// ServiceAccountKey represents the JSON structure of a service account key file
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
	TokenURI     string `json:"token_uri"`
}

// ServiceAccount is a loaded service identity.
type ServiceAccount struct {
	// Email is the identity ownership is tracked against.
	Email       string
	TokenSource oauth2.TokenSource
}

// LoadServiceAccount reads and validates a key file.
func LoadServiceAccount(ctx context.Context, keyFilePath string) (*ServiceAccount, error) {
	if keyFilePath == "" {
		return nil, utils.NewValidationError(utils.ErrCodeAuthRequired,
			"service account key file required (--credentials or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	keyData, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, utils.NewValidationError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("failed to read service account key: %v", err))
	}
	return ParseServiceAccount(ctx, keyData)
}

// ParseServiceAccount validates key JSON and builds a token source with the
// mirror scopes.
func ParseServiceAccount(ctx context.Context, keyData []byte) (*ServiceAccount, error) {
	var saKey ServiceAccountKey
	if err := json.Unmarshal(keyData, &saKey); err != nil {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to parse service account key: %v", err))
	}
	if saKey.Type != "service_account" {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid service account key type: %q", saKey.Type))
	}
	if saKey.ClientEmail == "" {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig, "missing client_email in service account key")
	}
	if saKey.PrivateKey == "" {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig, "missing private_key in service account key")
	}

	creds, err := google.CredentialsFromJSON(ctx, keyData, utils.ScopesMirror...)
	if err != nil {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidConfig,
			fmt.Sprintf("failed to load service account key: %v", err))
	}

	return &ServiceAccount{
		Email:       saKey.ClientEmail,
		TokenSource: creds.TokenSource,
	}, nil
}

// HTTPClient returns an authorized client. When debug is non-nil every
// request is logged through it.
func (sa *ServiceAccount) HTTPClient(debug *logging.DebugTransport) *http.Client {
	var base http.RoundTripper = http.DefaultTransport
	if debug != nil {
		base = debug.Wrap(base)
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: sa.TokenSource, Base: base},
	}
}

// DriveService creates a Drive API service for the service account.
func (sa *ServiceAccount) DriveService(ctx context.Context, debug *logging.DebugTransport) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, option.WithHTTPClient(sa.HTTPClient(debug)))
	if err != nil {
		return nil, err
	}
	svc.UserAgent = version.UserAgent()
	return svc, nil
}
