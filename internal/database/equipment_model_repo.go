package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/foxxcyber/equiptrack/internal/models"
)

var (
	ErrEquipmentModelNotFound = errors.New("equipment model not found")
	ErrEquipmentModelExists   = errors.New("equipment model already exists")
)

// minModelSimilarity is the trigram floor for catalog suggestions
const minModelSimilarity = 0.2

const equipmentModelColumns = `id, model, manufacturer, category, description, created_by, created_at, updated_at`

func scanEquipmentModel(row pgx.Row) (*models.EquipmentModel, error) {
	m := &models.EquipmentModel{}
	err := row.Scan(&m.ID, &m.Model, &m.Manufacturer, &m.Category, &m.Description, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEquipmentModelNotFound
		}
		return nil, err
	}
	return m, nil
}

// ListEquipmentModels returns a paginated list of catalog models with optional filtering
func (db *DB) ListEquipmentModels(ctx context.Context, params *models.EquipmentModelListParams) ([]*models.EquipmentModel, int, error) {
	var whereClauses []string
	var args []interface{}

	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(model ILIKE $%d OR manufacturer ILIKE $%d)", len(args), len(args),
		))
	}

	if params.Category != "" {
		args = append(args, params.Category)
		whereClauses = append(whereClauses, fmt.Sprintf("LOWER(category) = LOWER($%d)", len(args)))
	}

	whereClause := ""
	if len(whereClauses) > 0 {
		whereClause = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM equipment_models "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM equipment_models
		%s
		ORDER BY model ASC
		LIMIT $%d OFFSET $%d
	`, equipmentModelColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []*models.EquipmentModel{}
	for rows.Next() {
		m, err := scanEquipmentModel(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, m)
	}

	return list, total, rows.Err()
}

// GetEquipmentModelByID retrieves a catalog model by ID
func (db *DB) GetEquipmentModelByID(ctx context.Context, id int) (*models.EquipmentModel, error) {
	return scanEquipmentModel(db.Pool.QueryRow(ctx, `SELECT `+equipmentModelColumns+` FROM equipment_models WHERE id = $1`, id))
}

// CreateEquipmentModel creates a catalog model. The model name is stored uppercased.
func (db *DB) CreateEquipmentModel(ctx context.Context, req *models.CreateEquipmentModelRequest, createdBy *int) (*models.EquipmentModel, error) {
	m, err := scanEquipmentModel(db.Pool.QueryRow(ctx, `
		INSERT INTO equipment_models (model, manufacturer, category, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+equipmentModelColumns,
		strings.ToUpper(strings.TrimSpace(req.Model)), req.Manufacturer, req.Category, req.Description, createdBy,
	))
	if err != nil {
		if isUniqueViolation(err, "equipment_models_model_key") {
			return nil, ErrEquipmentModelExists
		}
		return nil, err
	}

	return m, nil
}

// UpdateEquipmentModel updates the provided fields of a catalog model
func (db *DB) UpdateEquipmentModel(ctx context.Context, id int, req *models.UpdateEquipmentModelRequest) (*models.EquipmentModel, error) {
	var model *string
	if req.Model != nil {
		upper := strings.ToUpper(strings.TrimSpace(*req.Model))
		model = &upper
	}

	m, err := scanEquipmentModel(db.Pool.QueryRow(ctx, `
		UPDATE equipment_models
		SET model = COALESCE($2, model),
		    manufacturer = COALESCE($3, manufacturer),
		    category = COALESCE($4, category),
		    description = COALESCE($5, description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+equipmentModelColumns,
		id, model, req.Manufacturer, req.Category, req.Description,
	))
	if err != nil {
		if isUniqueViolation(err, "equipment_models_model_key") {
			return nil, ErrEquipmentModelExists
		}
		return nil, err
	}

	return m, nil
}

// DeleteEquipmentModel deletes a catalog model by ID
func (db *DB) DeleteEquipmentModel(ctx context.Context, id int) error {
	result, err := db.Pool.Exec(ctx, `DELETE FROM equipment_models WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrEquipmentModelNotFound
	}

	return nil
}

// FindSimilarModels finds catalog models similar to name using trigram similarity
func (db *DB) FindSimilarModels(ctx context.Context, name string, limit int) ([]models.ModelMatch, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, model, category, similarity(model, $1) AS confidence
		FROM equipment_models
		WHERE similarity(model, $1) > $3
		ORDER BY confidence DESC, model ASC
		LIMIT $2
	`, strings.ToUpper(name), limit, minModelSimilarity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ModelMatch
	for rows.Next() {
		var match models.ModelMatch
		if err := rows.Scan(&match.ModelID, &match.Model, &match.Category, &match.Confidence); err != nil {
			return nil, err
		}
		results = append(results, match)
	}

	return results, rows.Err()
}

// UpsertEquipmentModels inserts or refreshes catalog models in a single transaction.
// Blank optional fields never overwrite stored values.
func (db *DB) UpsertEquipmentModels(ctx context.Context, entries []models.CreateEquipmentModelRequest) (inserted, updated int, err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		var wasInserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO equipment_models (model, manufacturer, category, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT (model) DO UPDATE
			SET manufacturer = COALESCE(EXCLUDED.manufacturer, equipment_models.manufacturer),
			    category = COALESCE(EXCLUDED.category, equipment_models.category),
			    description = COALESCE(EXCLUDED.description, equipment_models.description),
			    updated_at = NOW()
			RETURNING (xmax = 0)
		`, strings.ToUpper(strings.TrimSpace(e.Model)), e.Manufacturer, e.Category, e.Description).Scan(&wasInserted)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to upsert model %s: %w", e.Model, err)
		}

		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, updated, nil
}
