// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package seal

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luxfi/press/access"
)

var _ Decryptor = (*Client)(nil)

// Client talks JSON-RPC to a seal key-server front end. One Decrypt call is
// one session: open, sign the challenge, submit, poll for the result.
type Client struct {
	endpoint   string
	httpClient *http.Client

	pollInterval time.Duration
	timeout      time.Duration
}

// NewClient creates a new seal service client
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: 200 * time.Millisecond,
		timeout:      60 * time.Second,
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
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("%w: %s", ErrServiceUnavailable, err)
		}
	}

	return nil
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	Challenge string `json:"challenge"`
}

type resultResponse struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Plaintext string `json:"plaintext,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Decrypt runs one decryption session against the key server. sign is called
// exactly once, on the session challenge.
func (c *Client) Decrypt(ctx context.Context, params Params, sign SignFunc) ([]byte, error) {
	if err := params.Verify(); err != nil {
		return nil, err
	}

	var session sessionResponse
	openParams := map[string]interface{}{
		"contentId":     params.ContentID.String(),
		"articleId":     params.ArticleID.String(),
		"publicationId": params.PublicationID.String(),
		"policyClass":   params.Class().String(),
	}
	switch params.Class() {
	case access.ClassOwner:
		openParams["ownerCapId"] = params.OwnerCapID.String()
	case access.ClassSubscriber:
		openParams["subscriptionId"] = params.SubscriptionID.String()
		openParams["subscriptionPrice"] = params.SubscriptionPrice
	}
	if err := c.call(ctx, "seal_openSession", openParams, &session); err != nil {
		return nil, err
	}

	challenge, err := hex.DecodeString(session.Challenge)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed challenge", ErrServiceUnavailable)
	}

	signature, err := sign(ctx, challenge)
	if err != nil {
		return nil, err
	}

	var submitted resultResponse
	if err := c.call(ctx, "seal_decrypt", map[string]interface{}{
		"sessionId":  session.SessionID,
		"signature":  hex.EncodeToString(signature),
		"ciphertext": hex.EncodeToString(params.Ciphertext),
	}, &submitted); err != nil {
		return nil, err
	}

	return c.waitForResult(ctx, session.SessionID)
}

func (c *Client) waitForResult(ctx context.Context, sessionID string) ([]byte, error) {
	deadline := time.Now().Add(c.timeout)

	for time.Now().Before(deadline) {
		var result resultResponse
		err := c.call(ctx, "seal_getResult", map[string]string{
			"sessionId": sessionID,
		}, &result)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case "completed":
			return hex.DecodeString(result.Plaintext)
		case "failed":
			return nil, fmt.Errorf("decryption failed: %s", result.Error)
		default:
			// Threshold shares still assembling, wait and retry
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
		}
	}

	return nil, fmt.Errorf("%w: session %s timed out", ErrServiceUnavailable, sessionID)
}
