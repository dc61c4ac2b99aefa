// Package backbone implements the HTTP client for the backbone service: the
// anonymous token fetch and the account-scoped item fetch the resolution core
// consumes, plus DNS-based endpoint discovery.
package backbone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/idmesh/reference-resolution-backend/interfaces"
)

// Header constants used in requests to the backbone.
const (
	// RecordPasswordHeader carries the shared password for password-protected
	// records. The backbone answers 404 on a mismatch, indistinguishable from
	// a missing record.
	RecordPasswordHeader = "X-Idmesh-Record-Password"

	// AccountHeader identifies the account scope for item fetches.
	AccountHeader = "X-Idmesh-Account"

	// RequestIDHeader carries a per-request uuid for log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Client talks to one backbone endpoint. It implements
// interfaces.AnonymousTokenService and interfaces.SessionProvider.
type Client struct {
	// ServerAddr is the base URL of the backbone endpoint.
	ServerAddr string

	// HTTPClient used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Log for request diagnostics.
	Log *slog.Logger
}

// NewClient creates a backbone client for the given endpoint.
func NewClient(serverAddr string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{ServerAddr: serverAddr, HTTPClient: http.DefaultClient, Log: log}
}

// LoadPeerToken fetches a token from the backbone without an account context.
// Returns interfaces.ErrRecordNotFound when the backbone has no matching
// record, which includes the wrong-password case.
func (c *Client) LoadPeerToken(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.TokenPayload, error) {
	var token interfaces.TokenPayload
	err := c.get(ctx, fmt.Sprintf("%s/api/anonymous/tokens/%s", c.ServerAddr, ref.ID), password, "", &token)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ServicesFor returns the retrieval capability scoped to the given account.
func (c *Client) ServicesFor(_ context.Context, accountID string) (interfaces.AccountTransport, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id must not be empty")
	}
	return &accountSession{client: c, accountID: accountID}, nil
}

// accountSession is an account-scoped view on the backbone client.
type accountSession struct {
	client    *Client
	accountID string
}

// LoadItemFromReference loads the referenced item within the account scope.
func (s *accountSession) LoadItemFromReference(ctx context.Context, ref interfaces.ContentReference, password string) (*interfaces.AccountItem, error) {
	var item interfaces.AccountItem
	url := fmt.Sprintf("%s/api/accounts/items/%s", s.client.ServerAddr, ref.ID)
	if err := s.client.get(ctx, url, password, s.accountID, &item); err != nil {
		return nil, err
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("malformed item response from %s: %w", url, err)
	}
	return &item, nil
}

// get performs one backbone request and decodes the JSON response.
func (c *Client) get(ctx context.Context, url, password, accountID string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	requestID := uuid.New().String()
	req.Header.Set(RequestIDHeader, requestID)
	if password != "" {
		req.Header.Set(RecordPasswordHeader, password)
	}
	if accountID != "" {
		req.Header.Set(AccountHeader, accountID)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not reach backbone endpoint: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to decoding
	case http.StatusNotFound:
		return interfaces.ErrRecordNotFound
	default:
		bodyBytes, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("backbone endpoint returned non-200 response: %d", resp.StatusCode)
		}
		return fmt.Errorf("backbone endpoint returned error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not parse backbone response: %w", err)
	}

	c.Log.Debug("Backbone fetch succeeded",
		slog.String("url", url),
		slog.String("request_id", requestID))
	return nil
}
