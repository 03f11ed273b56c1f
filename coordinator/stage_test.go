// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStageTransitions(t *testing.T) {
	legal := []struct{ from, to Stage }{
		{StageIdle, StageMetadata},
		{StageMetadata, StageContent},
		{StageMetadata, StageIdle},
		{StageContent, StageWaitingWallet},
		{StageContent, StageDecrypting},
		{StageContent, StageIdle},
		{StageWaitingWallet, StageDecrypting},
		{StageWaitingWallet, StageIdle},
		{StageDecrypting, StageWaitingWallet},
		{StageDecrypting, StageIdle},
	}
	for _, tt := range legal {
		require.True(t, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}

	illegal := []struct{ from, to Stage }{
		{StageIdle, StageContent},
		{StageIdle, StageDecrypting},
		{StageIdle, StageWaitingWallet},
		{StageMetadata, StageDecrypting},
		{StageMetadata, StageWaitingWallet},
		{StageWaitingWallet, StageContent},
		{StageWaitingWallet, StageMetadata},
		{StageDecrypting, StageContent},
		{StageDecrypting, StageMetadata},
	}
	for _, tt := range illegal {
		require.False(t, canTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStageString(t *testing.T) {
	require.Equal(t, "idle", StageIdle.String())
	require.Equal(t, "metadata", StageMetadata.String())
	require.Equal(t, "content", StageContent.String())
	require.Equal(t, "waiting-wallet", StageWaitingWallet.String())
	require.Equal(t, "decrypting", StageDecrypting.String())
	require.Equal(t, "unknown", Stage(99).String())
}
