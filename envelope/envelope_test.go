// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package envelope

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"
)

func TestBuildParseRoundTrip(t *testing.T) {
	require := require.New(t)

	contentID := ids.GenerateTestID()
	payload := []byte("sealed article body")
	nonce := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	built, err := Build(contentID, SuiteThresholdIBE, nonce, payload)
	require.NoError(err)
	require.NotEmpty(built.Bytes())
	require.NotEqual(ids.Empty, built.ID())

	parsed, err := Parse(built.Bytes())
	require.NoError(err)
	require.Equal(contentID, parsed.ContentID)
	require.Equal(SuiteThresholdIBE, parsed.Suite)
	require.Equal(nonce, parsed.Nonce)
	require.Equal(payload, parsed.Payload)
	require.Equal(built.ID(), parsed.ID())
	require.Equal(built.Bytes(), parsed.Bytes())
}

func TestParseGarbage(t *testing.T) {
	require := require.New(t)

	_, err := Parse([]byte{0xff, 0x00, 0xde, 0xad})
	require.ErrorIs(err, ErrCorruptedContent)

	_, err = Parse(nil)
	require.ErrorIs(err, ErrCorruptedContent)
}

func TestParseTruncated(t *testing.T) {
	require := require.New(t)

	built, err := Build(ids.GenerateTestID(), SuiteThresholdIBE, []byte{1}, []byte("payload"))
	require.NoError(err)

	_, err = Parse(built.Bytes()[:len(built.Bytes())/2])
	require.ErrorIs(err, ErrCorruptedContent)
}

func TestValidatorMismatchIsNonFatal(t *testing.T) {
	require := require.New(t)

	built, err := Build(ids.GenerateTestID(), SuiteThresholdIBE, nil, []byte("payload"))
	require.NoError(err)

	v := NewValidator(log.NewNoOpLogger())

	// Mismatched metadata identifier: warn and proceed.
	sealed, err := v.Validate(built.Bytes(), ids.GenerateTestID())
	require.NoError(err)
	require.Equal(built.ContentID, sealed.ContentID)

	// Matching identifier.
	sealed, err = v.Validate(built.Bytes(), built.ContentID)
	require.NoError(err)
	require.Equal(built.ContentID, sealed.ContentID)
}

func TestValidatorCorruptBlob(t *testing.T) {
	v := NewValidator(log.NewNoOpLogger())
	_, err := v.Validate([]byte("not an envelope"), ids.GenerateTestID())
	require.ErrorIs(t, err, ErrCorruptedContent)
}
