package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChangeType enumerates the mutations the client can perform offline.
// This is a closed set: adding a kind requires a replay case in the
// orchestrator and a producer in the UI layer.
type ChangeType string

const (
	ChangeCreatePortfolio ChangeType = "CREATE_PORTFOLIO"
	ChangeUpdatePortfolio ChangeType = "UPDATE_PORTFOLIO"
	ChangeDeletePortfolio ChangeType = "DELETE_PORTFOLIO"
	ChangeCreateAsset     ChangeType = "CREATE_ASSET"
	ChangeUpdateAsset     ChangeType = "UPDATE_ASSET"
	ChangeDeleteAsset     ChangeType = "DELETE_ASSET"
	ChangeUpdateProfile   ChangeType = "UPDATE_PROFILE"
)

// Valid reports whether t is a member of the closed set.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreatePortfolio, ChangeUpdatePortfolio, ChangeDeletePortfolio,
		ChangeCreateAsset, ChangeUpdateAsset, ChangeDeleteAsset,
		ChangeUpdateProfile:
		return true
	}
	return false
}

// MaxRetryAttempts is the retry ceiling: a queued change that has failed
// this many times is dropped from the queue and surfaced as a SyncError.
const MaxRetryAttempts = 3

// QueuedChange is one locally made mutation awaiting replay against the
// remote service. RetryCount only ever increases; removal (success or
// give-up) is the only way it resets.
type QueuedChange struct {
	ID             string          `json:"id"`
	Type           ChangeType      `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAtUnixM int64           `json:"created_at_unix"`
	RetryCount     int             `json:"retry_count"`
}

// NewChangeID builds a locally unique, roughly time-ordered id:
// unix-micro timestamp plus a short uuid suffix.
func NewChangeID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMicro(), uuid.NewString()[:8])
}

// DeletePayload is the replay payload for delete operations, which only
// need the target id (plus the portfolio for asset deletes).
type DeletePayload struct {
	ID          string `json:"id"`
	PortfolioID string `json:"portfolio_id,omitempty"`
}
