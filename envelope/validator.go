// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package envelope

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Validator checks downloaded ciphertext before any wallet interaction is
// attempted on it.
type Validator struct {
	log log.Logger
}

// NewValidator creates a validator logging through logger.
func NewValidator(logger log.Logger) *Validator {
	return &Validator{log: logger}
}

// Validate parses raw as a sealed envelope and compares the embedded content
// identifier against the seal identifier from the article's metadata. A parse
// failure is terminal (ErrCorruptedContent). An identifier mismatch is
// metadata/ciphertext skew: logged as a warning and tolerated, since the
// decryption service resolves the policy from the envelope itself.
func (v *Validator) Validate(raw []byte, expectedSealID ids.ID) (*Sealed, error) {
	sealed, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	if expectedSealID != ids.Empty && sealed.ContentID != expectedSealID {
		v.log.Warn("envelope content identifier does not match article metadata",
			log.String("envelopeContentID", sealed.ContentID.String()),
			log.String("metadataSealID", expectedSealID.String()),
		)
	}

	return sealed, nil
}
