// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package seal

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/press/access"
)

var (
	// ErrServiceUnavailable reports key-server or threshold-committee
	// failures. Retryable with backoff.
	ErrServiceUnavailable = errors.New("decryption service unavailable")

	errAmbiguousParams = errors.New("decrypt params must select exactly one policy class")
)

// SignFunc signs a session challenge. Invoked at most once per decryption
// attempt.
type SignFunc func(ctx context.Context, message []byte) ([]byte, error)

// Params carries one decryption request. Exactly one of OwnerCapID /
// (SubscriptionPrice, SubscriptionID) / neither is populated, matching the
// resolved policy class; the selection is the coordinator's responsibility.
type Params struct {
	Ciphertext    []byte
	ContentID     ids.ID
	ArticleID     ids.ID
	PublicationID ids.ID

	// Owner path.
	OwnerCapID ids.ID

	// Subscriber path.
	SubscriptionPrice uint64
	SubscriptionID    ids.ID
}

// Class derives the policy class the params claim.
func (p *Params) Class() access.Class {
	switch {
	case p.OwnerCapID != ids.Empty:
		return access.ClassOwner
	case p.SubscriptionID != ids.Empty:
		return access.ClassSubscriber
	default:
		return access.ClassFree
	}
}

// Verify checks structural validity: ciphertext present, identifiers set,
// and no mixing of owner and subscriber credentials.
func (p *Params) Verify() error {
	switch {
	case len(p.Ciphertext) == 0:
		return errors.New("decrypt params missing ciphertext")
	case p.ContentID == ids.Empty:
		return errors.New("decrypt params missing content identifier")
	case p.OwnerCapID != ids.Empty && p.SubscriptionID != ids.Empty:
		return fmt.Errorf("%w: both owner capability and subscription populated", errAmbiguousParams)
	case p.OwnerCapID == ids.Empty && p.SubscriptionID != ids.Empty && p.SubscriptionPrice == 0:
		return fmt.Errorf("%w: subscription without price", errAmbiguousParams)
	default:
		return nil
	}
}

// Decryptor is the narrow contract with the external threshold-decryption
// service. Its internals (threshold IBE) are out of scope for this client.
type Decryptor interface {
	// Decrypt returns the plaintext for params, using sign for the one
	// session challenge, or a typed failure.
	Decrypt(ctx context.Context, params Params, sign SignFunc) ([]byte, error)
}
