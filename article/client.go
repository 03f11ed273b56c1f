// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package article

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luxfi/ids"
)

// Client provides access to the backend content API
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a new content API client
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

// GetArticle fetches the metadata record for slug.
func (c *Client) GetArticle(ctx context.Context, slug string) (*Article, error) {
	params := map[string]string{
		"slug": slug,
	}

	var result Article
	if err := c.call(ctx, "press_getArticle", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBlob downloads the raw bytes stored under blobRef, without interpreting
// them. Sealed envelopes are validated by the caller.
func (c *Client) GetBlob(ctx context.Context, blobRef ids.ID) ([]byte, error) {
	params := map[string]string{
		"blobRef": blobRef.String(),
	}

	var result map[string]string
	if err := c.call(ctx, "press_getBlob", params, &result); err != nil {
		return nil, err
	}

	blobHex := result["blob"]
	if len(blobHex) >= 2 && blobHex[:2] == "0x" {
		blobHex = blobHex[2:]
	}

	return hex.DecodeString(blobHex)
}

// GetParsedContent fetches the server-parsed representation of an
// unencrypted body. Fallback path only; sealed content never goes through
// here.
func (c *Client) GetParsedContent(ctx context.Context, blobRef ids.ID) (*ParsedContent, error) {
	params := map[string]string{
		"blobRef": blobRef.String(),
	}

	var result ParsedContent
	if err := c.call(ctx, "press_getParsedContent", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
