// Package upstream talks to the mesh controller that owns the entity
// directory: networks, nodes, external clients and tag assignments.
// The controller is the source of truth for inventory; this service
// only mirrors it.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// InventoryClient is the read surface of the mesh controller's
// directory service.
type InventoryClient interface {
	ListNetworks(ctx context.Context) ([]*domain.Network, error)
	ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error)
	ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error)
}

// Client is a REST client for the mesh controller's directory API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Ensure Client implements InventoryClient.
var _ InventoryClient = (*Client)(nil)

// New creates a new controller client.
func New(baseURL, token string) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid controller URL: %w", err)
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// ListNetworks returns all networks the controller manages.
func (c *Client) ListNetworks(ctx context.Context) ([]*domain.Network, error) {
	var networks []*domain.Network
	if err := c.get(ctx, "/api/networks", &networks); err != nil {
		return nil, err
	}
	return networks, nil
}

// ListEntities returns a network's addressable endpoints with their
// tag memberships and, for clients, their bound ingress gateway.
func (c *Client) ListEntities(ctx context.Context, networkID string) ([]*domain.Entity, error) {
	var entities []*domain.Entity
	path := fmt.Sprintf("/api/networks/%s/entities", url.PathEscape(networkID))
	if err := c.get(ctx, path, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// ListTags returns a network's tag records.
func (c *Client) ListTags(ctx context.Context, networkID string) ([]*domain.Tag, error) {
	var tags []*domain.Tag
	path := fmt.Sprintf("/api/networks/%s/tags", url.PathEscape(networkID))
	if err := c.get(ctx, path, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controller request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("controller request %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("controller request %s: decoding response: %w", path, err)
	}
	return nil
}
