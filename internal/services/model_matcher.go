package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/models"
)

// minSuggestionConfidence drops matches too weak to show
const minSuggestionConfidence = 0.5

// ModelFinder looks up catalog models similar to a normalized name
type ModelFinder interface {
	FindSimilarModels(ctx context.Context, name string, limit int) ([]models.ModelMatch, error)
}

// ModelMatcher suggests catalog models for extracted model names
type ModelMatcher struct {
	finder ModelFinder
	logger *logrus.Logger
}

// NewModelMatcher creates a new model matcher
func NewModelMatcher(finder ModelFinder, logger *logrus.Logger) *ModelMatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ModelMatcher{
		finder: finder,
		logger: logger,
	}
}

// FindMatches returns catalog suggestions for name, best first
func (m *ModelMatcher) FindMatches(ctx context.Context, name string, limit int) ([]models.ModelSuggestion, error) {
	normalized := NormalizeModelName(name)
	if normalized == "" {
		return nil, nil
	}

	matches, err := m.finder.FindSimilarModels(ctx, normalized, limit)
	if err != nil {
		return nil, err
	}

	suggestions := make([]models.ModelSuggestion, 0, len(matches))
	for _, match := range matches {
		if match.Confidence < minSuggestionConfidence {
			continue
		}
		suggestions = append(suggestions, models.ModelSuggestion{
			ModelID:    match.ModelID,
			Model:      match.Model,
			Category:   match.Category,
			Confidence: match.Confidence,
			Level:      GetMatchConfidenceLevel(match.Confidence),
		})
	}

	return suggestions, nil
}

// SuggestForEntries attaches suggestions to every entry. A lookup failure
// leaves that entry without suggestions.
func (m *ModelMatcher) SuggestForEntries(ctx context.Context, entries []models.EquipmentEntry) []models.ExtractedEquipment {
	out := make([]models.ExtractedEquipment, 0, len(entries))

	for _, entry := range entries {
		extracted := models.ExtractedEquipment{EquipmentEntry: entry}

		suggestions, err := m.FindMatches(ctx, entry.Model, 3)
		if err != nil {
			m.logger.WithError(err).WithField("model", entry.Model).Warn("Catalog lookup failed")
		} else {
			extracted.Suggestions = suggestions
		}

		out = append(out, extracted)
	}

	return out
}

var modelSeparatorReplacer = strings.NewReplacer("_", "-", "/", "-")

// NormalizeModelName uppercases a model name, collapses whitespace and
// unifies separators so "onu_gpon / 100" and "ONU-GPON-100" compare alike
func NormalizeModelName(name string) string {
	name = strings.ToUpper(name)
	name = modelSeparatorReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	name = strings.ReplaceAll(name, " - ", "-")
	return strings.TrimSpace(name)
}

// GetMatchConfidenceLevel returns a human-readable confidence level
func GetMatchConfidenceLevel(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	case confidence >= 0.5:
		return "low"
	default:
		return "none"
	}
}
