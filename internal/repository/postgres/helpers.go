package postgres

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

func nullStringPtr(ptr *string) sql.NullString {
	if ptr == nil {
		return sql.NullString{Valid: false}
	}
	if *ptr == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *ptr, Valid: true}
}

func nullTimePtr(ptr *time.Time) sql.NullTime {
	if ptr == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *ptr, Valid: true}
}

func uuidPtrOrNil(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}

func stringPtrOrNil[T ~string](v *T) any {
	if v == nil || *v == "" {
		return nil
	}
	return string(*v)
}
