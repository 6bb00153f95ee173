package store

// SessionRecord is the persisted form of a routing session. Payload is opaque
// to the store; the indexed columns exist for listing and cleanup only.
type SessionRecord struct {
	ID               string `json:"id"`
	Payload          []byte `json:"payload"`
	ActiveSpecialist string `json:"active_specialist"`
	TurnCount        int    `json:"turn_count"`
	CreatedTs        int64  `json:"created_ts"`
	UpdatedTs        int64  `json:"updated_ts"`
}

// FindSessionRecord specifies conditions for finding session records.
type FindSessionRecord struct {
	ID           *string
	UpdatedAfter *int64 // Unix seconds, exclusive
	Limit        int
}

// DeleteSessionRecord specifies the session records to delete. At least one
// condition must be set; set conditions are combined with AND.
type DeleteSessionRecord struct {
	ID            string
	UpdatedBefore *int64 // Unix seconds, inclusive
}
