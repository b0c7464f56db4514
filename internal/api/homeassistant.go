package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Probe calls GET /api. It doubles as a reachability and credential check.
func (c *Client) Probe(ctx context.Context) (*APIStatus, error) {
	var resp APIStatus
	if err := c.get(ctx, "/api", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetVersion returns the platform version reported by GET /api.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	status, err := c.Probe(ctx)
	if err != nil {
		return "", err
	}
	return status.Version, nil
}

// GetStates fetches every entity state.
func (c *Client) GetStates(ctx context.Context) ([]EntityState, error) {
	var states []EntityState
	if err := c.get(ctx, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	if states == nil {
		states = []EntityState{}
	}
	return states, nil
}

// GetState fetches a single entity.
func (c *Client) GetState(ctx context.Context, entityID string) (*EntityState, error) {
	var state EntityState
	if err := c.get(ctx, "/api/states/"+url.PathEscape(entityID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CallService invokes domain.service with data as the JSON body.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) (ServiceCallResponse, error) {
	if domain == "" || service == "" {
		return nil, fmt.Errorf("domain and service are required")
	}
	if data == nil {
		data = map[string]any{}
	}

	path := "/api/services/" + url.PathEscape(domain) + "/" + url.PathEscape(service)
	resp, err := c.post(ctx, path, data)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp), nil
}
