package domain

// UserProfile holds the account-level settings mirrored from the remote.
type UserProfile struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	DisplayName    string `json:"display_name"`
	BaseCurrency   string `json:"base_currency"`
	UpdatedAtUnixM int64  `json:"updated_at_unix"`
}
