// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chainstate queries the chain for the slow, independently-loading
// facts the access resolver consumes: who owns a publication and whether a
// reader's subscription is active.
package chainstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/press/access"
)

// Client provides read-only access to publication state on chain
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new chain state client
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/rpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	return nil
}

// GetOwnership queries the publication-ownership capability held by reader.
// A reader holds at most one; the zero fact means none.
func (c *Client) GetOwnership(ctx context.Context, reader ids.ShortID) (*access.OwnershipFact, error) {
	params := map[string]string{
		"reader": reader.String(),
	}

	var result access.OwnershipFact
	if err := c.call(ctx, "press_getOwnership", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSubscription queries reader's standing for publication.
func (c *Client) GetSubscription(ctx context.Context, reader ids.ShortID, publication ids.ID) (*access.SubscriptionFact, error) {
	params := map[string]string{
		"reader":      reader.String(),
		"publication": publication.String(),
	}

	var result access.SubscriptionFact
	if err := c.call(ctx, "press_getSubscription", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
