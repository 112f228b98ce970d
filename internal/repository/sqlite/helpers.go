package sqlite

import (
	"database/sql"
	"time"
)

// timeArg converts an optional timestamp to a driver argument, mapping nil
// to SQL NULL.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// timePtr converts a scanned NullTime back to an optional timestamp.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}
