// Package client is a typed Go client for the ACL manager's REST API.
// It is what operator tooling uses to load directories, drive matrix
// edit sessions and manage policy rules without hand-rolling HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/netgrid/mesh-acl-manager/internal/api/handler"
	"github.com/netgrid/mesh-acl-manager/internal/domain"
	"github.com/netgrid/mesh-acl-manager/internal/matrix"
)

// Ensure Client can back a matrix edit session.
var _ matrix.ACLSubmitter = (*Client)(nil)

// Client talks to a running ACL manager instance.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a new API client. The key is sent as a bearer token on
// every request.
func New(baseURL, apiKey string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ListNetworks returns the networks known to the server.
func (c *Client) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	var networks []*domain.Network
	if err := c.do(ctx, http.MethodGet, "/api/v1/networks", nil, &networks); err != nil {
		return nil, err
	}
	return networks, nil
}

// ListEntities returns a network's entity directory.
func (c *Client) ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error) {
	var entities []*domain.Entity
	path := fmt.Sprintf("/api/v1/networks/%s/entities", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodGet, path, nil, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// ListTags returns a network's tags.
func (c *Client) ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	path := fmt.Sprintf("/api/v1/networks/%s/tags", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodGet, path, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// GetACLs returns the server's authoritative matrix for a network,
// normalized over the current directory. Use it as the snapshot when
// opening an edit session.
func (c *Client) GetACLs(ctx context.Context, networkID string) (domain.AclMatrix, error) {
	var m domain.AclMatrix
	path := fmt.Sprintf("/api/v1/networks/%s/acls", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodGet, path, nil, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// PutACLs replaces the network's matrix and returns the confirmed
// server state. It satisfies the submitter contract of matrix edit
// sessions.
func (c *Client) PutACLs(ctx context.Context, networkID string, m domain.AclMatrix) (domain.AclMatrix, error) {
	var confirmed domain.AclMatrix
	path := fmt.Sprintf("/api/v1/networks/%s/acls", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodPut, path, m, &confirmed); err != nil {
		return nil, err
	}
	return confirmed, nil
}

// ListACLVersions returns the submission audit trail, newest first.
func (c *Client) ListACLVersions(ctx context.Context, networkID string, limit, offset int) ([]*domain.AclVersion, error) {
	var versions []*domain.AclVersion
	path := fmt.Sprintf("/api/v1/networks/%s/acls/versions?limit=%d&offset=%d", url.PathEscape(networkID), limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &versions); err != nil {
		return nil, err
	}
	return versions, nil
}

// CreateRule creates a policy rule in a network.
func (c *Client) CreateRule(ctx context.Context, networkID string, req *domain.CreatePolicyRuleRequest) (*domain.PolicyRule, error) {
	var rule domain.PolicyRule
	path := fmt.Sprintf("/api/v1/networks/%s/rules", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodPost, path, req, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules returns a network's policy rules.
func (c *Client) ListRules(ctx context.Context, networkID string) ([]*domain.PolicyRule, error) {
	var ruleList []*domain.PolicyRule
	path := fmt.Sprintf("/api/v1/networks/%s/rules", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodGet, path, nil, &ruleList); err != nil {
		return nil, err
	}
	return ruleList, nil
}

// GetRule returns a policy rule by ID.
func (c *Client) GetRule(ctx context.Context, networkID, id string) (*domain.PolicyRule, error) {
	var rule domain.PolicyRule
	path := fmt.Sprintf("/api/v1/networks/%s/rules/%s", url.PathEscape(networkID), url.PathEscape(id))
	if err := c.do(ctx, http.MethodGet, path, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpdateRule updates a policy rule.
func (c *Client) UpdateRule(ctx context.Context, networkID, id string, req *domain.UpdatePolicyRuleRequest) (*domain.PolicyRule, error) {
	var rule domain.PolicyRule
	path := fmt.Sprintf("/api/v1/networks/%s/rules/%s", url.PathEscape(networkID), url.PathEscape(id))
	if err := c.do(ctx, http.MethodPut, path, req, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteRule deletes a policy rule.
func (c *Client) DeleteRule(ctx context.Context, networkID, id string) error {
	path := fmt.Sprintf("/api/v1/networks/%s/rules/%s", url.PathEscape(networkID), url.PathEscape(id))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Query asks the server whether a flow is authorized by the network's
// policy rules.
func (c *Client) Query(ctx context.Context, networkID string, q *handler.FlowQuery) (*handler.FlowQueryResult, error) {
	var result handler.FlowQueryResult
	path := fmt.Sprintf("/api/v1/networks/%s/query", url.PathEscape(networkID))
	if err := c.do(ctx, http.MethodPost, path, q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sync forces an immediate directory refresh on the server.
func (c *Client) Sync(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sync", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.apiError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("request %s %s: decoding response: %w", method, path, err)
	}
	return nil
}

// apiError maps an error response back to the domain sentinel the
// server raised, so callers can use errors.Is on client results the
// same way they would on direct service calls.
func (c *Client) apiError(resp *http.Response) error {
	var apiErr domain.APIError
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	msg := apiErr.Message
	if apiErr.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, apiErr.Details)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusConflict:
		if apiErr.Message == "stale entity" {
			return fmt.Errorf("%w: %s", domain.ErrStaleEntity, msg)
		}
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, msg)
	case http.StatusBadGateway:
		return fmt.Errorf("%w: %s", domain.ErrSubmitFailed, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}
