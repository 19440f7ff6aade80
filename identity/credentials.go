package identity

import (
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ServiceAccount is the subset of a Google service-account key file the
// session bridge needs.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	ClientID     string `json:"client_id"`
}

// ParseServiceAccount decodes the key file. Keys pasted into env vars often
// carry literal "\n" sequences; those become real newlines.
func ParseServiceAccount(raw string) (*ServiceAccount, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrNotConfigured
	}
	var sa ServiceAccount
	if err := json.Unmarshal([]byte(raw), &sa); err != nil {
		return nil, fmt.Errorf("decode service account: %w", err)
	}
	sa.PrivateKey = strings.ReplaceAll(sa.PrivateKey, `\n`, "\n")
	if sa.PrivateKey == "" || sa.ClientEmail == "" {
		return nil, errors.New("service account is missing private_key or client_email")
	}
	return &sa, nil
}

func (sa *ServiceAccount) RSAKey() (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(sa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return key, nil
}
