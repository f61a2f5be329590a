package domain

// SyncStatus classifies the outcome of a full sync pass.
type SyncStatus string

const (
	SyncSuccess SyncStatus = "success" // no failed changes, every pull landed
	SyncPartial SyncStatus = "partial" // something succeeded, something failed
	SyncFailed  SyncStatus = "failed"  // nothing succeeded
)

// SyncError is always traceable either to a queued change (ChangeID is the
// change's id) or to a named pull phase (synthetic ids like
// "pull:portfolios", "pull:profile", "pull:assets:<portfolioID>").
// Whole-sync panics are reported under "sync:panic".
type SyncError struct {
	ChangeID   string `json:"change_id"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	RetryCount int    `json:"retry_count"`
}

// Error type tags used in SyncError.Type.
const (
	ErrTypeReplay  = "QUEUE_REPLAY"     // single queued change failed remotely
	ErrTypePull    = "PULL_FAILURE"     // one canonical-collection refresh failed
	ErrTypeCeiling = "RETRY_EXHAUSTED"  // change dropped after MaxRetryAttempts
	ErrTypePanic   = "UNEXPECTED_PANIC" // programming error caught at top level
)

// SyncResult is the consolidated report of one full sync pass.
type SyncResult struct {
	Status        SyncStatus  `json:"status"`
	SyncedChanges int         `json:"synced_changes"`
	FailedChanges int         `json:"failed_changes"`
	Errors        []SyncError `json:"errors"`
}

// DeriveStatus applies the status rules: success iff zero failed changes and
// every pull landed, failed iff nothing at all succeeded, partial otherwise.
func DeriveStatus(synced, failed, pullsOK, pullsFailed int) SyncStatus {
	if failed == 0 && pullsFailed == 0 {
		return SyncSuccess
	}
	if synced == 0 && pullsOK == 0 {
		return SyncFailed
	}
	return SyncPartial
}
