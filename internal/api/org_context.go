package api

import (
	"fmt"
	"net/http"
	"os"
)

// OrgContextProvider resolves the organization an API request acts on.
type OrgContextProvider struct {
	defaultOrgID   string
	devModeEnabled bool
}

// NewOrgContextProvider creates a provider. In dev mode requests without
// an explicit organization fall back to DEFAULT_ORG_ID.
func NewOrgContextProvider() *OrgContextProvider {
	devMode := os.Getenv("DEV_MODE") == "true" || os.Getenv("ENVIRONMENT") == "development"
	return &OrgContextProvider{
		defaultOrgID:   os.Getenv("DEFAULT_ORG_ID"),
		devModeEnabled: devMode,
	}
}

// ExtractOrgID extracts the organization ID from a request.
// Priority: 1. X-Organization-ID header, 2. org_id query param, 3. dev mode default.
func (p *OrgContextProvider) ExtractOrgID(r *http.Request) (string, error) {
	if orgID := r.Header.Get("X-Organization-ID"); orgID != "" {
		return orgID, nil
	}
	if orgID := r.URL.Query().Get("org_id"); orgID != "" {
		return orgID, nil
	}
	if p.devModeEnabled && p.defaultOrgID != "" {
		return p.defaultOrgID, nil
	}
	return "", fmt.Errorf("organization ID not found in request")
}
