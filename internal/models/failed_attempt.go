package models

import "time"

// FailedAttempt is one ledger row. Identity may reference an account that
// does not exist.
type FailedAttempt struct {
	ID         string    `db:"id"`
	Identity   string    `db:"identity"`
	Origin     string    `db:"origin"`
	OccurredAt time.Time `db:"occurred_at"`
}
