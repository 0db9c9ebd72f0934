package dsproxy

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	"github.com/goliatone/go-formflow/pkg/descriptor"
)

// CredentialStore resolves the auth configuration for a data source ID.
// Implementations back onto whatever secret storage the host application
// uses; the proxy only ever reads.
type CredentialStore interface {
	Credentials(dataSourceID string) (descriptor.AuthConfig, bool)
}

// StaticCredentials is an in-memory CredentialStore, convenient for tests and
// for hosts that load secrets at boot.
type StaticCredentials struct {
	mu    sync.RWMutex
	creds map[string]descriptor.AuthConfig
}

// NewStaticCredentials builds a store from the given map.
func NewStaticCredentials(creds map[string]descriptor.AuthConfig) *StaticCredentials {
	store := &StaticCredentials{creds: make(map[string]descriptor.AuthConfig, len(creds))}
	for id, auth := range creds {
		store.creds[id] = auth
	}
	return store
}

// Set registers or replaces credentials for a data source ID.
func (s *StaticCredentials) Set(dataSourceID string, auth descriptor.AuthConfig) {
	s.mu.Lock()
	s.creds[dataSourceID] = auth
	s.mu.Unlock()
}

// Credentials implements CredentialStore.
func (s *StaticCredentials) Credentials(dataSourceID string) (descriptor.AuthConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auth, ok := s.creds[dataSourceID]
	return auth, ok
}

// applyAuth injects the credential header for auth onto req. Incomplete
// credentials are an error naming what is missing, so misconfiguration shows
// up as a clear client-visible failure instead of an upstream 401.
func applyAuth(req *http.Request, dataSourceID string, auth descriptor.AuthConfig) error {
	switch auth.Kind {
	case descriptor.AuthBearer:
		if auth.Token == "" {
			return fmt.Errorf("dsproxy: bearer credentials for %q missing token", dataSourceID)
		}
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case descriptor.AuthAPIKey:
		if auth.Header == "" || auth.Value == "" {
			return fmt.Errorf("dsproxy: apikey credentials for %q missing header or value", dataSourceID)
		}
		req.Header.Set(auth.Header, auth.Value)
	case descriptor.AuthBasic:
		if auth.Username == "" {
			return fmt.Errorf("dsproxy: basic credentials for %q missing username", dataSourceID)
		}
		encoded := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		req.Header.Set("Authorization", "Basic "+encoded)
	default:
		return fmt.Errorf("dsproxy: unsupported auth kind %q for %q", auth.Kind, dataSourceID)
	}
	return nil
}
