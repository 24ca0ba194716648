package prover

import (
	"strconv"
	"time"
)

// Record is the latest proof request observed for a prover.
//
// A Record is produced fresh on every poll and never mutated afterwards.
type Record struct {
	Status    Status     `json:"status"`
	ID        string     `json:"id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Requester string     `json:"requester"`
	Fulfiller string     `json:"fulfiller,omitempty"`

	ProgramURI       string `json:"program_uri,omitempty"`
	StdinURI         string `json:"stdin_uri,omitempty"`
	ProgramPublicURI string `json:"program_public_uri,omitempty"`
	StdinPublicURI   string `json:"stdin_public_uri,omitempty"`
}

// LastActivity returns UpdatedAt, falling back to CreatedAt.
func (r *Record) LastActivity() (time.Time, bool) {
	if r == nil {
		return time.Time{}, false
	}
	if r.UpdatedAt != nil && !r.UpdatedAt.IsZero() {
		return *r.UpdatedAt, true
	}
	if r.CreatedAt != nil && !r.CreatedAt.IsZero() {
		return *r.CreatedAt, true
	}
	return time.Time{}, false
}

// Key derives the DedupeKey of the record.
func (r *Record) Key() DedupeKey {
	k := DedupeKey{Status: r.Status, ID: r.ID}
	if r.UpdatedAt != nil {
		k.UpdatedAt = r.UpdatedAt.UnixNano()
		k.HasUpdatedAt = true
	}
	return k
}

// DedupeKey identifies an observed state. Two records with the same status,
// id and update time produce equal keys; any difference yields a different key.
//
// It is comparable and can be used with == directly.
type DedupeKey struct {
	Status Status
	ID     string
	// UpdatedAt is in Unix nanoseconds.
	UpdatedAt    int64
	HasUpdatedAt bool
}

func (k DedupeKey) String() string {
	ts := "-"
	if k.HasUpdatedAt {
		ts = strconv.FormatInt(k.UpdatedAt, 10)
	}
	return k.Status.String() + ":" + k.ID + ":" + ts
}
