package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/foxxcyber/equiptrack/internal/models"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentImageInUse = errors.New("image already attached to a document")
)

const documentColumns = `
	d.id, d.user_id, d.source, d.responsible, d.origin, d.movement_date, d.total_units, d.raw_text,
	d.s3_bucket, d.s3_key, d.original_filename, d.content_type, d.file_size_bytes,
	d.expires_at, d.created_at, d.updated_at`

func scanDocument(row pgx.Row, doc *models.MovementDocument) error {
	return row.Scan(
		&doc.ID, &doc.UserID, &doc.Source, &doc.Responsible, &doc.Origin, &doc.MovementDate, &doc.TotalUnits, &doc.RawText,
		&doc.S3Bucket, &doc.S3Key, &doc.OriginalFilename, &doc.ContentType, &doc.FileSizeBytes,
		&doc.ExpiresAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
}

func documentInsertError(err error) error {
	if isUniqueViolation(err, "idx_movement_documents_s3_key") {
		return ErrDocumentImageInUse
	}
	return fmt.Errorf("failed to insert document: %w", err)
}

// CreateDocument stores a document header and its equipment rows in one transaction
func (db *DB) CreateDocument(ctx context.Context, req *models.CreateDocumentRequest) (*models.MovementDocumentWithEquipment, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	totalUnits := 0
	for _, e := range req.Equipment {
		totalUnits += e.Quantity
	}

	source := req.Source
	if source == "" {
		source = models.DocumentSourceText
	}

	var documentID int
	err = tx.QueryRow(ctx, `
		INSERT INTO movement_documents (user_id, source, responsible, origin, movement_date, total_units, raw_text,
		                                s3_bucket, s3_key, original_filename, content_type, file_size_bytes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`, req.UserID, source, req.Responsible, req.Origin, req.MovementDate, totalUnits, req.RawText,
		req.S3Bucket, req.S3Key, req.OriginalFilename, req.ContentType, req.FileSizeBytes, req.ExpiresAt,
	).Scan(&documentID)
	if err != nil {
		return nil, documentInsertError(err)
	}

	batch := &pgx.Batch{}
	for i, e := range req.Equipment {
		macs := e.MACAddresses
		if macs == nil {
			macs = []string{}
		}
		batch.Queue(`
			INSERT INTO document_equipment (document_id, model, product_code, quantity, mac_addresses, catalog_model_id, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, documentID, e.Model, e.ProductCode, e.Quantity, macs, e.CatalogModelID, i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert document equipment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return db.GetDocumentByID(ctx, documentID)
}

// GetDocumentByID retrieves a document with its equipment rows
func (db *DB) GetDocumentByID(ctx context.Context, id int) (*models.MovementDocumentWithEquipment, error) {
	doc := &models.MovementDocumentWithEquipment{}

	err := scanDocument(db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM movement_documents d WHERE d.id = $1`, id), &doc.MovementDocument)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}

	equipment, err := db.getDocumentEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Equipment = equipment

	return doc, nil
}

func (db *DB) getDocumentEquipment(ctx context.Context, documentID int) ([]models.DocumentEquipment, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, document_id, model, product_code, quantity, mac_addresses, catalog_model_id, position
		FROM document_equipment
		WHERE document_id = $1
		ORDER BY position ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	equipment := []models.DocumentEquipment{}
	for rows.Next() {
		var e models.DocumentEquipment
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Model, &e.ProductCode, &e.Quantity, &e.MACAddresses, &e.CatalogModelID, &e.Position); err != nil {
			return nil, err
		}
		if e.MACAddresses == nil {
			e.MACAddresses = []string{}
		}
		equipment = append(equipment, e)
	}

	return equipment, rows.Err()
}

// ListDocuments returns a user's documents, newest first, without equipment rows
func (db *DB) ListDocuments(ctx context.Context, params *models.DocumentListParams) ([]*models.MovementDocument, int, error) {
	args := []interface{}{params.UserID}
	whereClause := "WHERE d.user_id = $1"

	if params.Source != nil && *params.Source != "" {
		args = append(args, *params.Source)
		whereClause += fmt.Sprintf(" AND d.source = $%d", len(args))
	}

	var total int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM movement_documents d "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM movement_documents d
		%s
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $%d OFFSET $%d
	`, documentColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := []*models.MovementDocument{}
	for rows.Next() {
		doc := &models.MovementDocument{}
		if err := scanDocument(rows, doc); err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}

	return docs, total, rows.Err()
}

// DeleteDocument deletes a document and its equipment rows
func (db *DB) DeleteDocument(ctx context.Context, id int) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM movement_documents WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}

	return nil
}

// CleanupExpiredDocuments deletes documents past their expiration date and
// returns the object keys of their stored images
func (db *DB) CleanupExpiredDocuments(ctx context.Context) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		DELETE FROM movement_documents
		WHERE expires_at < NOW()
		RETURNING s3_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key *string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		if key != nil && *key != "" {
			keys = append(keys, *key)
		}
	}

	return keys, rows.Err()
}

// CountDocumentsBySource returns the number of saved documents per source
func (db *DB) CountDocumentsBySource(ctx context.Context) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `SELECT source, COUNT(*) FROM movement_documents GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}

	return counts, rows.Err()
}
