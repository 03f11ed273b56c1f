// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package envelope

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
)

// ErrCorruptedContent marks a downloaded blob that does not parse as a
// sealed envelope. Terminal for the blob: retrying the same bytes cannot
// succeed, so no wallet interaction is attempted for it.
var ErrCorruptedContent = errors.New("corrupted content")

// Encryption suites understood by the decryption service.
const (
	SuiteThresholdIBE uint8 = iota + 1
	SuiteHybridAES
)

// Sealed is the structured wrapper around encrypted article bytes. The
// embedded ContentID names the encryption policy the decryption service
// looks up; it must normally match the seal identifier in the article's
// metadata.
type Sealed struct {
	ContentID ids.ID `serialize:"true" json:"contentID"`
	Suite     uint8  `serialize:"true" json:"suite"`
	Nonce     []byte `serialize:"true" json:"nonce"`
	Payload   []byte `serialize:"true" json:"payload"`

	id    ids.ID
	bytes []byte
}

// ID is the hash of the envelope's wire form.
func (s *Sealed) ID() ids.ID {
	return s.id
}

// Bytes is the envelope's wire form.
func (s *Sealed) Bytes() []byte {
	return s.bytes
}

// Build wraps payload in a sealed envelope and marshals it.
func Build(contentID ids.ID, suite uint8, nonce []byte, payload []byte) (*Sealed, error) {
	sealed := Sealed{
		ContentID: contentID,
		Suite:     suite,
		Nonce:     nonce,
		Payload:   payload,
	}

	bytes, err := Codec.Marshal(CodecVersion, &sealed)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal sealed envelope: %w", err)
	}

	sealed.id = hash.ComputeHash256Array(bytes)
	sealed.bytes = bytes
	return &sealed, nil
}

// Parse decodes bytes as a sealed envelope. Any structural failure is
// classified as ErrCorruptedContent.
func Parse(bytes []byte) (*Sealed, error) {
	sealed := Sealed{
		id:    hash.ComputeHash256Array(bytes),
		bytes: bytes,
	}
	version, err := Codec.Unmarshal(bytes, &sealed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptedContent, err)
	}
	if version != CodecVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", ErrCorruptedContent, version)
	}
	if len(sealed.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptedContent)
	}
	return &sealed, nil
}
