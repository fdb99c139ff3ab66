package sqlutil

import (
	"database/sql"
	"time"
)

// Helpers for the nullable columns of the draft schema.

// ToSqlString maps the empty string to NULL. Optional ids are stored that way.
func ToSqlString(val string) sql.NullString {
	return sql.NullString{String: val, Valid: val != ""}
}

// FromSqlString maps NULL back to the empty string.
func FromSqlString(val sql.NullString) string {
	if !val.Valid {
		return ""
	}
	return val.String
}

// ToSqlTime converts an optional timestamp to sql.NullTime
func ToSqlTime(val *time.Time) sql.NullTime {
	if val == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *val, Valid: true}
}

// FromSqlTime converts sql.NullTime to an optional timestamp
func FromSqlTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}
