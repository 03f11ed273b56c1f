// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package coordinator

// Stage is the authoritative loading stage for one article-load lifecycle,
// visible to the UI layer.
type Stage uint8

const (
	// StageIdle means no load is in progress or the current load finished.
	StageIdle Stage = iota
	// StageMetadata means the article record is being fetched.
	StageMetadata
	// StageContent means the body blob is downloading or was downloaded
	// and is awaiting an access decision.
	StageContent
	// StageWaitingWallet means sealed content is held back by missing
	// readiness or a Defer verdict.
	StageWaitingWallet
	// StageDecrypting means exactly one decryption attempt is running.
	StageDecrypting
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageMetadata:
		return "metadata"
	case StageContent:
		return "content"
	case StageWaitingWallet:
		return "waiting-wallet"
	case StageDecrypting:
		return "decrypting"
	default:
		return "unknown"
	}
}

// canTransition encodes the only legal stage path:
// idle → metadata → content → {waiting-wallet ⇄ decrypting} → idle.
// Content is never skipped before decrypting.
func canTransition(from, to Stage) bool {
	switch from {
	case StageIdle:
		return to == StageMetadata
	case StageMetadata:
		return to == StageContent || to == StageIdle
	case StageContent:
		return to == StageWaitingWallet || to == StageDecrypting || to == StageIdle
	case StageWaitingWallet:
		return to == StageDecrypting || to == StageIdle
	case StageDecrypting:
		return to == StageWaitingWallet || to == StageIdle
	default:
		return false
	}
}
