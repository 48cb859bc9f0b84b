package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/config"
	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/models"
)

// Commit every batchSize models to avoid long transactions
const batchSize = 500

var errMissingModelColumn = errors.New("CSV header has no model column")

func main() {
	file := flag.String("file", "", "Catalog CSV file (columns: model,manufacturer,category,description)")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to database")
	flag.Parse()

	godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg)

	if *file == "" {
		log.Fatal("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.WithError(err).WithField("file", *file).Fatal("Failed to open catalog file")
	}
	defer f.Close()

	entries, err := parseCatalog(f, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to parse catalog")
	}

	log.WithField("models", len(entries)).Info("Catalog parsed")

	if *dryRun {
		log.Info("DRY RUN - No changes will be made")
		printPreview(os.Stdout, entries, 20)
		return
	}

	db, err := database.Connect(cfg.DatabaseURL, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := database.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	inserted, updated, err := importCatalog(ctx, db, entries, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to import catalog")
	}

	log.WithFields(logrus.Fields{
		"inserted": inserted,
		"updated":  updated,
	}).Info("Import complete")
}

// parseCatalog reads the catalog CSV and aggregates rows by uppercased model.
// Later rows fill fields an earlier row for the same model left blank.
func parseCatalog(r io.Reader, log *logrus.Logger) ([]models.CreateEquipmentModelRequest, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}

	modelCol, ok := colMap["model"]
	if !ok {
		return nil, errMissingModelColumn
	}

	field := func(record []string, name string) *string {
		i, ok := colMap[name]
		if !ok || i >= len(record) {
			return nil
		}
		v := strings.TrimSpace(record[i])
		if v == "" {
			return nil
		}
		return &v
	}

	byModel := make(map[string]*models.CreateEquipmentModelRequest)
	rowCount := 0

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).Warn("Skipping malformed row")
			continue
		}
		rowCount++

		if modelCol >= len(record) {
			continue
		}
		model := strings.ToUpper(strings.TrimSpace(record[modelCol]))
		if model == "" {
			continue
		}

		manufacturer := field(record, "manufacturer")
		category := field(record, "category")
		description := field(record, "description")

		existing, ok := byModel[model]
		if !ok {
			byModel[model] = &models.CreateEquipmentModelRequest{
				Model:        model,
				Manufacturer: manufacturer,
				Category:     category,
				Description:  description,
			}
			continue
		}
		if existing.Manufacturer == nil {
			existing.Manufacturer = manufacturer
		}
		if existing.Category == nil {
			existing.Category = category
		}
		if existing.Description == nil {
			existing.Description = description
		}
	}

	log.WithField("rows", rowCount).Debug("Processed catalog rows")

	entries := make([]models.CreateEquipmentModelRequest, 0, len(byModel))
	for _, e := range byModel {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Model < entries[j].Model
	})

	return entries, nil
}

// importCatalog upserts entries in batches, one transaction per batch
func importCatalog(ctx context.Context, db *database.DB, entries []models.CreateEquipmentModelRequest, log *logrus.Logger) (inserted, updated int, err error) {
	for i := 0; i < len(entries); i += batchSize {
		end := min(i+batchSize, len(entries))

		batchInserted, batchUpdated, err := db.UpsertEquipmentModels(ctx, entries[i:end])
		if err != nil {
			return inserted, updated, err
		}
		inserted += batchInserted
		updated += batchUpdated

		log.WithFields(logrus.Fields{
			"processed": end,
			"total":     len(entries),
			"inserted":  inserted,
			"updated":   updated,
		}).Info("Import progress")
	}

	return inserted, updated, nil
}

// printPreview shows a sample of the models to be imported
func printPreview(w io.Writer, entries []models.CreateEquipmentModelRequest, limit int) {
	fmt.Fprintln(w, "\n=== Preview of models to import ===")
	fmt.Fprintf(w, "Total: %d models\n\n", len(entries))

	categoryCount := make(map[string]int)
	for _, e := range entries {
		category := "(none)"
		if e.Category != nil {
			category = *e.Category
		}
		categoryCount[category]++
	}

	fmt.Fprintln(w, "Models per category:")
	categories := make([]string, 0, len(categoryCount))
	for c := range categoryCount {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %s: %d\n", c, categoryCount[c])
	}

	fmt.Fprintf(w, "\nSample models (first %d):\n", limit)
	for _, e := range entries[:min(limit, len(entries))] {
		manufacturer := "-"
		if e.Manufacturer != nil {
			manufacturer = *e.Manufacturer
		}
		fmt.Fprintf(w, "  %s (%s)\n", e.Model, manufacturer)
	}
}
