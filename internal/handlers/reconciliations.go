package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/metrics"
	"github.com/foxxcyber/equiptrack/internal/middleware"
	"github.com/foxxcyber/equiptrack/internal/models"
	"github.com/foxxcyber/equiptrack/internal/services"
)

// Reconciler checks a raw MAC list against an inventory dump
type Reconciler interface {
	Reconcile(macsRaw, inventoryText string) (*models.ReconciliationOutcome, error)
}

// ReconciliationHandler handles MAC reconciliation endpoints
type ReconciliationHandler struct {
	db         *database.DB
	logger     *logrus.Logger
	validate   *validator.Validate
	reconciler Reconciler
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(db *database.DB, logger *logrus.Logger, reconciler Reconciler) *ReconciliationHandler {
	return &ReconciliationHandler{
		db:         db,
		logger:     logger,
		validate:   NewValidator(),
		reconciler: reconciler,
	}
}

// Reconcile checks a MAC list against an inventory dump and optionally saves the outcome
func (h *ReconciliationHandler) Reconcile(c *fiber.Ctx) error {
	var req models.ReconcileRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	outcome, err := h.reconciler.Reconcile(req.MACs, req.InventoryText)
	if err != nil {
		var listErr *services.MACListError
		switch {
		case errors.As(err, &listErr):
			return ErrorWithData(c, fiber.StatusUnprocessableEntity, listErr.Error(), fiber.Map{
				"warnings":   listErr.Validation.Warnings(),
				"validation": listErr.Validation,
			})
		case errors.Is(err, services.ErrEmptyMACList):
			return Error(c, fiber.StatusBadRequest, "macs is required")
		case errors.Is(err, services.ErrEmptyInventory):
			return Error(c, fiber.StatusBadRequest, "inventory_text is required")
		}
		h.logger.WithError(err).Error("Reconciliation failed")
		return Error(c, fiber.StatusInternalServerError, "reconciliation failed, please try again")
	}

	metrics.ObserveReconciliation(outcome.Indexed, outcome.Elapsed, outcome.Result.FoundCount(), len(outcome.Result.Unmatched), outcome.Slow)

	resp := &models.ReconcileResponse{ReconciliationOutcome: outcome}

	if req.Save {
		userID := middleware.GetUserID(c)
		if userID == 0 {
			return Error(c, fiber.StatusUnauthorized, "unauthorized")
		}

		label := req.Label
		if label != nil && strings.TrimSpace(*label) == "" {
			label = nil
		}

		run, err := h.db.CreateReconciliationRun(c.Context(), userID, label, outcome)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", userID).Error("Failed to save reconciliation")
			return Error(c, fiber.StatusInternalServerError, "failed to save reconciliation")
		}
		resp.RunID = &run.ID
	}

	return Success(c, resp)
}

// ListReconciliations returns a paginated list of the user's saved runs
func (h *ReconciliationHandler) ListReconciliations(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit, offset := pagination(c)
	params := &models.ReconciliationListParams{UserID: userID, Limit: limit, Offset: offset}

	runs, total, err := h.db.ListReconciliationRuns(c.Context(), params)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list reconciliations")
		return Error(c, fiber.StatusInternalServerError, "failed to list reconciliations")
	}

	return SuccessWithMeta(c, runs, total, params.Limit, params.Offset)
}

// ownedRun loads the :id run and checks it belongs to the caller.
// On failure the error response has already been written.
func (h *ReconciliationHandler) ownedRun(c *fiber.Ctx) (*models.ReconciliationRunWithMACs, error) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return nil, Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, ok := paramID(c)
	if !ok {
		return nil, Error(c, fiber.StatusBadRequest, "invalid reconciliation ID")
	}

	run, err := h.db.GetReconciliationRun(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrReconciliationNotFound) {
			return nil, Error(c, fiber.StatusNotFound, "reconciliation not found")
		}
		return nil, Error(c, fiber.StatusInternalServerError, "failed to get reconciliation")
	}

	if run.UserID != userID {
		return nil, Error(c, fiber.StatusForbidden, "access denied")
	}

	return run, nil
}

// GetReconciliation returns a saved run with its grouped result
func (h *ReconciliationHandler) GetReconciliation(c *fiber.Ctx) error {
	run, err := h.ownedRun(c)
	if run == nil {
		return err
	}

	return Success(c, fiber.Map{
		"run":    run.ReconciliationRun,
		"result": run.Result(),
	})
}

// ExportReconciliation downloads a saved run as CSV (default) or XLSX
func (h *ReconciliationHandler) ExportReconciliation(c *fiber.Ctx) error {
	format := strings.ToLower(c.Query("format", "csv"))
	if format != "csv" && format != "xlsx" {
		return Error(c, fiber.StatusBadRequest, "format must be csv or xlsx")
	}

	run, err := h.ownedRun(c)
	if run == nil {
		return err
	}

	var buf bytes.Buffer
	contentType := services.ContentTypeCSV
	if format == "xlsx" {
		contentType = services.ContentTypeXLSX
		err = services.WriteReconciliationXLSX(&buf, run.Result())
	} else {
		err = services.WriteReconciliationCSV(&buf, run.Result())
	}
	if err != nil {
		h.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to export reconciliation")
		return Error(c, fiber.StatusInternalServerError, "failed to export reconciliation")
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Attachment(fmt.Sprintf("conciliacao-%d.%s", run.ID, format))
	return c.Send(buf.Bytes())
}

// DeleteReconciliation deletes a saved run
func (h *ReconciliationHandler) DeleteReconciliation(c *fiber.Ctx) error {
	run, err := h.ownedRun(c)
	if run == nil {
		return err
	}

	if err := h.db.DeleteReconciliationRun(c.Context(), run.ID); err != nil {
		if errors.Is(err, database.ErrReconciliationNotFound) {
			return Error(c, fiber.StatusNotFound, "reconciliation not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to delete reconciliation")
	}

	return Success(c, fiber.Map{"deleted": true})
}
