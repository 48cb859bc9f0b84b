package database

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestDocumentInsertError(t *testing.T) {
	reused := &pgconn.PgError{Code: "23505", ConstraintName: "idx_movement_documents_s3_key"}
	assert.ErrorIs(t, documentInsertError(reused), ErrDocumentImageInUse)

	other := &pgconn.PgError{Code: "23505", ConstraintName: "movement_documents_pkey"}
	err := documentInsertError(other)
	assert.NotErrorIs(t, err, ErrDocumentImageInUse)
	assert.ErrorIs(t, err, other)

	err = documentInsertError(errors.New("connection reset"))
	assert.NotErrorIs(t, err, ErrDocumentImageInUse)
	assert.Contains(t, err.Error(), "failed to insert document")
}

func TestMigrations_ImageKeyIsUnique(t *testing.T) {
	versions := migrationVersions()
	latest := migrations[versions[len(versions)-1]]

	assert.Contains(t, latest, "CREATE UNIQUE INDEX")
	assert.Contains(t, latest, "idx_movement_documents_s3_key ON movement_documents(s3_key)")
	assert.Contains(t, latest, "WHERE s3_key IS NOT NULL")
}

func TestIsUniqueViolation(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	assert.True(t, isUniqueViolation(err, "users_email_key"))
	assert.True(t, isUniqueViolation(err, ""))
	assert.False(t, isUniqueViolation(err, "equipment_models_model_key"))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("boom"), ""))
}
