package domain

// DirectoryUser is a user directory record keyed by an opaque user key.
// Email may be empty.
type DirectoryUser struct {
	Key   string `json:"key"`
	Email string `json:"email,omitempty"`
}

// TokenRecord maps a push token to the email of its owner. Legacy records
// stored the token as the record ID and left Token empty.
type TokenRecord struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// TokenValue returns the token, falling back to the record ID.
func (r TokenRecord) TokenValue() string {
	if r.Token != "" {
		return r.Token
	}
	return r.ID
}
