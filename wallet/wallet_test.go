// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestCallbackSignerSign(t *testing.T) {
	require := require.New(t)

	addr := ids.GenerateTestShortID()
	signer := NewCallbackSigner(addr,
		func() bool { return true },
		func(message []byte, done func([]byte, error)) {
			done(append([]byte("signed:"), message...), nil)
		},
	)

	require.Equal(addr, signer.Address())
	require.True(signer.Connected())

	sig, err := signer.Sign(context.Background(), []byte("session"))
	require.NoError(err)
	require.Equal([]byte("signed:session"), sig)
}

func TestCallbackSignerNotConnected(t *testing.T) {
	signer := NewCallbackSigner(ids.GenerateTestShortID(),
		func() bool { return false },
		func([]byte, func([]byte, error)) {
			t.Fatal("signing requested without a connected wallet")
		},
	)

	_, err := signer.Sign(context.Background(), []byte("session"))
	require.ErrorIs(t, err, ErrWalletNotConnected)
}

func TestCallbackSignerRejection(t *testing.T) {
	signer := NewCallbackSigner(ids.GenerateTestShortID(),
		func() bool { return true },
		func(_ []byte, done func([]byte, error)) {
			done(nil, ErrSigningRejected)
		},
	)

	_, err := signer.Sign(context.Background(), []byte("session"))
	require.ErrorIs(t, err, ErrSigningRejected)
}

func TestCallbackSignerContextCancelled(t *testing.T) {
	require := require.New(t)

	release := make(chan struct{})
	signer := NewCallbackSigner(ids.GenerateTestShortID(),
		func() bool { return true },
		func(_ []byte, done func([]byte, error)) {
			go func() {
				<-release
				done([]byte("late"), nil)
			}()
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := signer.Sign(ctx, []byte("session"))
	require.ErrorIs(err, context.Canceled)

	// The late callback must not block the wallet's goroutine.
	close(release)
	time.Sleep(10 * time.Millisecond)
}
