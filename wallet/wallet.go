// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"errors"

	"github.com/luxfi/ids"
)

var (
	// ErrWalletNotConnected reports a signing request without a connected
	// wallet. Retryable once the user connects.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrSigningRejected reports a user-declined signature. Retry is
	// allowed after the coordinator's cool-down.
	ErrSigningRejected = errors.New("signing rejected by wallet")
)

// Signer is the wallet collaborator: it signs session messages for the
// decryption service, at most once per decryption attempt.
type Signer interface {
	// Address is the reader's address.
	Address() ids.ShortID

	// Connected reports whether the wallet can currently sign.
	Connected() bool

	// Sign signs message, suspending until the wallet responds or ctx is
	// done.
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// RequestFunc is the callback-style signing interface wallets expose: it
// starts a signature request and invokes done exactly once with the result.
type RequestFunc func(message []byte, done func(signature []byte, err error))

// CallbackSigner adapts a callback-style wallet into the awaitable Signer
// the coordinator consumes.
type CallbackSigner struct {
	address   ids.ShortID
	connected func() bool
	request   RequestFunc
}

// NewCallbackSigner wraps a callback-style wallet.
func NewCallbackSigner(address ids.ShortID, connected func() bool, request RequestFunc) *CallbackSigner {
	return &CallbackSigner{
		address:   address,
		connected: connected,
		request:   request,
	}
}

func (s *CallbackSigner) Address() ids.ShortID {
	return s.address
}

func (s *CallbackSigner) Connected() bool {
	return s.connected()
}

// Sign converts the wallet's callback into a blocking call. A late callback
// after ctx is done is dropped without blocking the wallet's goroutine.
func (s *CallbackSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	if !s.connected() {
		return nil, ErrWalletNotConnected
	}

	type result struct {
		signature []byte
		err       error
	}
	ch := make(chan result, 1)
	s.request(message, func(signature []byte, err error) {
		ch <- result{signature: signature, err: err}
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		return r.signature, r.err
	}
}
