package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/config"
	"github.com/foxxcyber/equiptrack/internal/database"
	"github.com/foxxcyber/equiptrack/internal/metrics"
	"github.com/foxxcyber/equiptrack/internal/middleware"
	"github.com/foxxcyber/equiptrack/internal/models"
	"github.com/foxxcyber/equiptrack/internal/services"
)

const presignedURLExpiry = time.Hour

// DocumentHandler handles transfer document endpoints. ocr, storage and
// matcher are optional; the endpoints that need them degrade without them.
type DocumentHandler struct {
	db        *database.DB
	cfg       *config.Config
	logger    *logrus.Logger
	validate  *validator.Validate
	extractor *services.DocumentExtractor
	ocr       *services.OCRService
	storage   *services.StorageService
	matcher   *services.ModelMatcher
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(
	db *database.DB,
	cfg *config.Config,
	logger *logrus.Logger,
	extractor *services.DocumentExtractor,
	ocr *services.OCRService,
	storage *services.StorageService,
	matcher *services.ModelMatcher,
) *DocumentHandler {
	return &DocumentHandler{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		validate:  NewValidator(),
		extractor: extractor,
		ocr:       ocr,
		storage:   storage,
		matcher:   matcher,
	}
}

// ExtractDocument extracts a summary from pasted document text
func (h *DocumentHandler) ExtractDocument(c *fiber.Ctx) error {
	var req models.ExtractDocumentRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}
	if strings.TrimSpace(req.Text) == "" {
		return Error(c, fiber.StatusBadRequest, "text is required")
	}

	summary := h.extractor.Extract(req.Text)
	metrics.ObserveExtraction(string(models.DocumentSourceText))

	return Success(c, h.buildExtractResponse(c, summary))
}

// ScanDocument runs OCR over an uploaded photo and extracts a summary from it.
// When storage is configured the photo is kept so a later save can reference it.
func (h *DocumentHandler) ScanDocument(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if h.ocr == nil {
		return Error(c, fiber.StatusServiceUnavailable, "OCR is not available")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "image file is required")
	}

	contentType := file.Header.Get(fiber.HeaderContentType)
	ext, ok := services.ImageExtension(contentType, file.Filename)
	if !ok {
		return Error(c, fiber.StatusBadRequest, "invalid image type. Supported: JPEG, PNG, WebP, TIFF")
	}

	if file.Size > h.cfg.MaxUploadBytes() {
		return Error(c, fiber.StatusBadRequest, fmt.Sprintf("file too large. Maximum size is %dMB", h.cfg.MaxUploadMB))
	}

	src, err := file.Open()
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}
	defer src.Close()

	imageBytes, err := io.ReadAll(src)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read file")
	}

	ocrResult, err := h.ocr.ProcessImage(imageBytes, ext)
	if err != nil {
		if errors.Is(err, services.ErrEmptyImage) {
			return Error(c, fiber.StatusBadRequest, "image is empty")
		}
		h.logger.WithError(err).WithField("user_id", userID).Error("OCR processing failed")
		return Error(c, fiber.StatusInternalServerError, "OCR processing failed")
	}

	summary := h.extractor.Extract(ocrResult.Text)
	metrics.ObserveExtraction(string(models.DocumentSourceScan))

	resp := h.buildExtractResponse(c, summary)
	resp.OCRText = &ocrResult.Text

	if h.storage != nil {
		key := services.DocumentKey(userID, ext)
		if _, err := h.storage.Upload(c.Context(), key, bytes.NewReader(imageBytes), int64(len(imageBytes)), contentType); err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("Failed to keep scanned image")
		} else {
			resp.S3Key = &key
		}
	}

	return Success(c, resp)
}

func (h *DocumentHandler) buildExtractResponse(c *fiber.Ctx, summary *models.DocumentSummary) *models.ExtractDocumentResponse {
	resp := &models.ExtractDocumentResponse{Summary: summary}

	if h.matcher != nil {
		resp.Equipment = h.matcher.SuggestForEntries(c.Context(), summary.EquipmentEntries)
		return resp
	}

	resp.Equipment = make([]models.ExtractedEquipment, 0, len(summary.EquipmentEntries))
	for _, entry := range summary.EquipmentEntries {
		resp.Equipment = append(resp.Equipment, models.ExtractedEquipment{EquipmentEntry: entry})
	}
	return resp
}

// SaveDocument persists a reviewed summary
func (h *DocumentHandler) SaveDocument(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req models.SaveDocumentRequest
	if msg, ok := parseBody(c, h.validate, &req); !ok {
		return Error(c, fiber.StatusBadRequest, msg)
	}

	create := &models.CreateDocumentRequest{
		UserID:           userID,
		Source:           req.Source,
		Responsible:      req.Responsible,
		Origin:           req.Origin,
		MovementDate:     req.MovementDate,
		RawText:          req.RawText,
		OriginalFilename: req.OriginalFilename,
		Equipment:        normalizeEquipment(req.Equipment),
	}

	if h.cfg.DocumentRetention > 0 {
		expires := time.Now().Add(h.cfg.DocumentRetention)
		create.ExpiresAt = &expires
	}

	if req.S3Key != nil && *req.S3Key != "" {
		if h.storage == nil {
			return Error(c, fiber.StatusBadRequest, "image storage is not configured")
		}
		if !strings.HasPrefix(*req.S3Key, fmt.Sprintf("documents/%d/", userID)) {
			return Error(c, fiber.StatusForbidden, "access denied")
		}
		bucket := h.storage.GetBucketName()
		create.S3Bucket = &bucket
		create.S3Key = req.S3Key
		create.Source = models.DocumentSourceScan
	}

	doc, err := h.db.CreateDocument(c.Context(), create)
	if err != nil {
		if errors.Is(err, database.ErrDocumentImageInUse) {
			return Error(c, fiber.StatusConflict, "image already attached to a document")
		}
		h.logger.WithError(err).WithField("user_id", userID).Error("Failed to save document")
		return Error(c, fiber.StatusInternalServerError, "failed to save document")
	}

	return Created(c, doc)
}

// normalizeEquipment uppercases models and merges rows that collapse onto the same model
func normalizeEquipment(rows []models.SaveDocumentEquipment) []models.SaveDocumentEquipment {
	out := make([]models.SaveDocumentEquipment, 0, len(rows))
	index := make(map[string]int, len(rows))

	for _, row := range rows {
		row.Model = strings.ToUpper(strings.TrimSpace(row.Model))
		if i, ok := index[row.Model]; ok {
			out[i].Quantity += row.Quantity
			out[i].MACAddresses = append(out[i].MACAddresses, row.MACAddresses...)
			continue
		}
		index[row.Model] = len(out)
		out = append(out, row)
	}

	return out
}

// ListDocuments returns a paginated list of the user's documents
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit, offset := pagination(c)
	params := &models.DocumentListParams{
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	}
	if source := c.Query("source"); source != "" {
		params.Source = &source
	}

	docs, total, err := h.db.ListDocuments(c.Context(), params)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		return Error(c, fiber.StatusInternalServerError, "failed to list documents")
	}

	return SuccessWithMeta(c, docs, total, params.Limit, params.Offset)
}

// ownedDocument loads the :id document and checks it belongs to the caller.
// On failure the error response has already been written.
func (h *DocumentHandler) ownedDocument(c *fiber.Ctx) (*models.MovementDocumentWithEquipment, error) {
	userID := middleware.GetUserID(c)
	if userID == 0 {
		return nil, Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, ok := paramID(c)
	if !ok {
		return nil, Error(c, fiber.StatusBadRequest, "invalid document ID")
	}

	doc, err := h.db.GetDocumentByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return nil, Error(c, fiber.StatusNotFound, "document not found")
		}
		return nil, Error(c, fiber.StatusInternalServerError, "failed to get document")
	}

	if doc.UserID != userID {
		return nil, Error(c, fiber.StatusForbidden, "access denied")
	}

	return doc, nil
}

// GetDocument returns a single document with its equipment rows
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.ownedDocument(c)
	if doc == nil {
		return err
	}

	if h.storage != nil && doc.S3Key != nil {
		if url, err := h.storage.GetPresignedURL(c.Context(), *doc.S3Key, presignedURLExpiry); err == nil {
			doc.ImageURL = &url
		}
	}

	return Success(c, doc)
}

// ExportDocument downloads a document's equipment table as XLSX
func (h *DocumentHandler) ExportDocument(c *fiber.Ctx) error {
	doc, err := h.ownedDocument(c)
	if doc == nil {
		return err
	}

	var buf bytes.Buffer
	if err := services.WriteDocumentXLSX(&buf, doc); err != nil {
		h.logger.WithError(err).WithField("document_id", doc.ID).Error("Failed to export document")
		return Error(c, fiber.StatusInternalServerError, "failed to export document")
	}

	c.Set(fiber.HeaderContentType, services.ContentTypeXLSX)
	c.Attachment(fmt.Sprintf("documento-%d.xlsx", doc.ID))
	return c.Send(buf.Bytes())
}

// GetDocumentImage returns a presigned URL for the scanned image
func (h *DocumentHandler) GetDocumentImage(c *fiber.Ctx) error {
	doc, err := h.ownedDocument(c)
	if doc == nil {
		return err
	}

	if doc.S3Key == nil || h.storage == nil {
		return Error(c, fiber.StatusNotFound, "document has no image")
	}

	url, err := h.storage.GetPresignedURL(c.Context(), *doc.S3Key, presignedURLExpiry)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to generate image URL")
	}

	return Success(c, fiber.Map{"url": url})
}

// DeleteDocument deletes a document and its image
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	doc, err := h.ownedDocument(c)
	if doc == nil {
		return err
	}

	if h.storage != nil && doc.S3Key != nil {
		if err := h.storage.Delete(c.Context(), *doc.S3Key); err != nil {
			h.logger.WithError(err).WithField("document_id", doc.ID).Warn("Failed to delete document image")
		}
	}

	if err := h.db.DeleteDocument(c.Context(), doc.ID); err != nil {
		if errors.Is(err, database.ErrDocumentNotFound) {
			return Error(c, fiber.StatusNotFound, "document not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to delete document")
	}

	return Success(c, fiber.Map{"deleted": true})
}
