package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/middleware"
	"github.com/foxxcyber/equiptrack/internal/models"
	"github.com/foxxcyber/equiptrack/internal/services"
)

// ListEquipmentModels returns a paginated list of catalog models
func (h *Handler) ListEquipmentModels(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	params := &models.EquipmentModelListParams{
		Limit:    limit,
		Offset:   offset,
		Search:   strings.TrimSpace(c.Query("search")),
		Category: strings.TrimSpace(c.Query("category")),
	}

	list, total, err := h.db.ListEquipmentModels(c.Context(), params)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list equipment models")
		return Error(c, fiber.StatusInternalServerError, "failed to list equipment models")
	}

	return SuccessWithMeta(c, list, total, params.Limit, params.Offset)
}

// SearchEquipmentModels returns catalog suggestions for a model name
func (h *Handler) SearchEquipmentModels(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return Error(c, fiber.StatusBadRequest, "q is required")
	}

	limit := c.QueryInt("limit", 5)
	if limit < 1 || limit > 20 {
		limit = 5
	}

	suggestions, err := services.NewModelMatcher(h.db, h.logger).FindMatches(c.Context(), q, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to search equipment models")
		return Error(c, fiber.StatusInternalServerError, "failed to search equipment models")
	}

	if suggestions == nil {
		suggestions = []models.ModelSuggestion{}
	}
	return Success(c, suggestions)
}

// GetEquipmentModel returns a single catalog model
func (h *Handler) GetEquipmentModel(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return Error(c, fiber.StatusBadRequest, "invalid equipment model id")
	}

	m, err := h.db.GetEquipmentModelByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrEquipmentModelNotFound) {
			return Error(c, fiber.StatusNotFound, "equipment model not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get equipment model")
	}

	return Success(c, m)
}

// CreateEquipmentModel creates a catalog model (admin only)
func (h *Handler) CreateEquipmentModel(c *fiber.Ctx) error {
	var req models.CreateEquipmentModelRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	createdBy := middleware.GetUserID(c)
	m, err := h.db.CreateEquipmentModel(c.Context(), &req, &createdBy)
	if err != nil {
		if errors.Is(err, database.ErrEquipmentModelExists) {
			return Error(c, fiber.StatusConflict, "equipment model already exists")
		}
		h.logger.WithError(err).Error("Failed to create equipment model")
		return Error(c, fiber.StatusInternalServerError, "failed to create equipment model")
	}

	return Created(c, m)
}

// UpdateEquipmentModel updates a catalog model (admin only)
func (h *Handler) UpdateEquipmentModel(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return Error(c, fiber.StatusBadRequest, "invalid equipment model id")
	}

	var req models.UpdateEquipmentModelRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	m, err := h.db.UpdateEquipmentModel(c.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrEquipmentModelNotFound):
			return Error(c, fiber.StatusNotFound, "equipment model not found")
		case errors.Is(err, database.ErrEquipmentModelExists):
			return Error(c, fiber.StatusConflict, "equipment model already exists")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to update equipment model")
	}

	return Success(c, m)
}

// DeleteEquipmentModel deletes a catalog model (admin only)
func (h *Handler) DeleteEquipmentModel(c *fiber.Ctx) error {
	id, ok := paramID(c)
	if !ok {
		return Error(c, fiber.StatusBadRequest, "invalid equipment model id")
	}

	if err := h.db.DeleteEquipmentModel(c.Context(), id); err != nil {
		if errors.Is(err, database.ErrEquipmentModelNotFound) {
			return Error(c, fiber.StatusNotFound, "equipment model not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to delete equipment model")
	}

	return Success(c, fiber.Map{"deleted": true})
}
