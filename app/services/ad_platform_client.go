package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/arvand/adpilot/models"
	"github.com/google/uuid"
)

// AdPlatformClient is the opaque client the engine mutates ad entities
// through. Implementations must be safe for concurrent use.
type AdPlatformClient interface {
	// SetEntityStatus pauses or resumes delivery of an entity
	SetEntityStatus(ctx context.Context, kind models.ScopeKind, externalID string, status models.EntityStatus) error
	// SetBudget updates the daily and/or lifetime budget of an entity
	SetBudget(ctx context.Context, kind models.ScopeKind, externalID string, daily, lifetime *float64) error
	// DuplicateAdSet clones an ad set and returns the new external ID
	DuplicateAdSet(ctx context.Context, externalID, newName string) (string, error)
}

// HTTPAdPlatformClient talks to the ad platform REST API
type HTTPAdPlatformClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewHTTPAdPlatformClient creates a new HTTP ad platform client
func NewHTTPAdPlatformClient(baseURL, apiToken string, timeout time.Duration) *HTTPAdPlatformClient {
	return &HTTPAdPlatformClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// entityPath maps a scope kind to its API resource path
func entityPath(kind models.ScopeKind) (string, error) {
	switch kind {
	case models.ScopeKindAccount:
		return "accounts", nil
	case models.ScopeKindCampaign:
		return "campaigns", nil
	case models.ScopeKindAdSet:
		return "adsets", nil
	case models.ScopeKindAd:
		return "ads", nil
	default:
		return "", fmt.Errorf("unknown scope kind: %s", kind)
	}
}

// SetEntityStatus pauses or resumes delivery of an entity
func (c *HTTPAdPlatformClient) SetEntityStatus(ctx context.Context, kind models.ScopeKind, externalID string, status models.EntityStatus) error {
	path, err := entityPath(kind)
	if err != nil {
		return err
	}

	payload := map[string]any{"status": status.String()}
	url := fmt.Sprintf("%s/v1/%s/%s/status", c.baseURL, path, externalID)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, url, payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("platform rejected status update for %s %s: %s", kind, externalID, resp.Message)
	}

	return nil
}

// SetBudget updates the daily and/or lifetime budget of an entity
func (c *HTTPAdPlatformClient) SetBudget(ctx context.Context, kind models.ScopeKind, externalID string, daily, lifetime *float64) error {
	path, err := entityPath(kind)
	if err != nil {
		return err
	}

	payload := map[string]any{}
	if daily != nil {
		payload["daily_budget"] = *daily
	}
	if lifetime != nil {
		payload["lifetime_budget"] = *lifetime
	}
	if len(payload) == 0 {
		return fmt.Errorf("no budget values provided for %s %s", kind, externalID)
	}

	url := fmt.Sprintf("%s/v1/%s/%s/budget", c.baseURL, path, externalID)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.post(ctx, url, payload, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("platform rejected budget update for %s %s: %s", kind, externalID, resp.Message)
	}

	return nil
}

// DuplicateAdSet clones an ad set and returns the new external ID
func (c *HTTPAdPlatformClient) DuplicateAdSet(ctx context.Context, externalID, newName string) (string, error) {
	payload := map[string]any{"name": newName}
	url := fmt.Sprintf("%s/v1/adsets/%s/duplicate", c.baseURL, externalID)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		ID      string `json:"id"`
	}
	if err := c.post(ctx, url, payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", fmt.Errorf("platform rejected duplication of ad set %s: %s", externalID, resp.Message)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("platform returned no ID for duplicated ad set %s", externalID)
	}

	return resp.ID, nil
}

// post sends a JSON POST request and decodes the JSON response
func (c *HTTPAdPlatformClient) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ad platform: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ad platform returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// MockCall records one invocation on the mock client
type MockCall struct {
	Method     string
	Kind       models.ScopeKind
	ExternalID string
	Status     models.EntityStatus
	Daily      *float64
	Lifetime   *float64
	NewName    string
}

// MockAdPlatformClient is a local stand-in for the ad platform, used in
// development mode and in tests. Calls are recorded and can be forced to
// fail.
type MockAdPlatformClient struct {
	mu      sync.Mutex
	calls   []MockCall
	failErr error
}

// NewMockAdPlatformClient creates a new mock ad platform client
func NewMockAdPlatformClient() *MockAdPlatformClient {
	return &MockAdPlatformClient{}
}

// FailWith makes every subsequent call return the given error. Pass nil to
// restore normal behavior.
func (c *MockAdPlatformClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failErr = err
}

// Calls returns a copy of the recorded calls
func (c *MockAdPlatformClient) Calls() []MockCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	calls := make([]MockCall, len(c.calls))
	copy(calls, c.calls)
	return calls
}

// SetEntityStatus records the call and succeeds unless a failure is forced
func (c *MockAdPlatformClient) SetEntityStatus(ctx context.Context, kind models.ScopeKind, externalID string, status models.EntityStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.calls = append(c.calls, MockCall{
		Method:     "SetEntityStatus",
		Kind:       kind,
		ExternalID: externalID,
		Status:     status,
	})
	log.Printf("[MOCK AD PLATFORM] set %s %s status to %s", kind, externalID, status)
	return nil
}

// SetBudget records the call and succeeds unless a failure is forced
func (c *MockAdPlatformClient) SetBudget(ctx context.Context, kind models.ScopeKind, externalID string, daily, lifetime *float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.calls = append(c.calls, MockCall{
		Method:     "SetBudget",
		Kind:       kind,
		ExternalID: externalID,
		Daily:      daily,
		Lifetime:   lifetime,
	})
	log.Printf("[MOCK AD PLATFORM] set %s %s budget", kind, externalID)
	return nil
}

// DuplicateAdSet records the call and returns a generated external ID
func (c *MockAdPlatformClient) DuplicateAdSet(ctx context.Context, externalID, newName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return "", c.failErr
	}
	c.calls = append(c.calls, MockCall{
		Method:     "DuplicateAdSet",
		ExternalID: externalID,
		NewName:    newName,
	})
	newID := "mock-adset-" + uuid.New().String()
	log.Printf("[MOCK AD PLATFORM] duplicated ad set %s as %s (%s)", externalID, newID, newName)
	return newID, nil
}
