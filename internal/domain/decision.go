package domain

import "time"

// Decision — сообщение approval surface о решении человека.
// Живет только на шине решений, само по себе не персистится:
// брокер сохраняет слитый PendingRequest+Decision.
type Decision struct {
	RequestID string      `json:"id"`
	Kind      RequestKind `json:"type"`
	Approved  bool        `json:"approved"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
