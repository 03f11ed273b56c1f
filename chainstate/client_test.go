// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chainstate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/press/access"
)

func TestClientGetOwnership(t *testing.T) {
	require := require.New(t)

	want := access.OwnershipFact{
		PublicationID: ids.GenerateTestID(),
		CapID:         ids.GenerateTestID(),
	}
	reader := ids.GenerateTestShortID()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(json.NewDecoder(r.Body).Decode(&req))
		require.Equal("press_getOwnership", req.Method)

		raw, err := json.Marshal(want)
		require.NoError(err)
		require.NoError(json.NewEncoder(w).Encode(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  raw,
		}))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).GetOwnership(context.Background(), reader)
	require.NoError(err)
	require.Equal(want, *got)
	require.True(got.Complete())
}

func TestClientGetSubscription(t *testing.T) {
	require := require.New(t)

	pubID := ids.GenerateTestID()
	want := access.SubscriptionFact{
		PublicationID:  pubID,
		Active:         true,
		Price:          250,
		SubscriptionID: ids.GenerateTestID(),
		Expiry:         1900000000,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(json.NewDecoder(r.Body).Decode(&req))
		require.Equal("press_getSubscription", req.Method)

		raw, err := json.Marshal(want)
		require.NoError(err)
		require.NoError(json.NewEncoder(w).Encode(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  raw,
		}))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).GetSubscription(context.Background(), ids.GenerateTestShortID(), pubID)
	require.NoError(err)
	require.Equal(want, *got)
}

func TestClientQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NoError(t, json.NewEncoder(w).Encode(rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: -32000, Message: "node syncing"},
		}))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetOwnership(context.Background(), ids.GenerateTestShortID())
	require.ErrorContains(t, err, "node syncing")
}
