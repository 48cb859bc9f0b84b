package models

import (
	"time"
)

// DocumentSource records how the document text reached the extractor
type DocumentSource string

const (
	DocumentSourceText DocumentSource = "text"
	DocumentSourceScan DocumentSource = "scan"
)

// EquipmentEntry is one model line aggregated from a transfer document.
// Model is the uppercased aggregation key.
type EquipmentEntry struct {
	Model        string   `json:"model"`
	Quantity     int      `json:"quantity"`
	MACAddresses []string `json:"mac_addresses"`
	ProductCode  *string  `json:"product_code,omitempty"`
}

// DocumentSummary is the structured result of extracting a transfer document
type DocumentSummary struct {
	Responsible      *string          `json:"responsible,omitempty"`
	Origin           *string          `json:"origin,omitempty"`
	MovementDate     *string          `json:"movement_date,omitempty"`
	EquipmentEntries []EquipmentEntry `json:"equipment_entries"`
	TotalUnits       int              `json:"total_units"`
}

// IsEmpty reports whether no equipment rows were recognized
func (s *DocumentSummary) IsEmpty() bool {
	return len(s.EquipmentEntries) == 0
}

// MovementDocument is a saved document summary
type MovementDocument struct {
	ID               int            `json:"id"`
	UserID           int            `json:"user_id"`
	Source           DocumentSource `json:"source"`
	Responsible      *string        `json:"responsible,omitempty"`
	Origin           *string        `json:"origin,omitempty"`
	MovementDate     *string        `json:"movement_date,omitempty"`
	TotalUnits       int            `json:"total_units"`
	RawText          *string        `json:"raw_text,omitempty"`
	S3Bucket         *string        `json:"s3_bucket,omitempty"`
	S3Key            *string        `json:"s3_key,omitempty"`
	OriginalFilename *string        `json:"original_filename,omitempty"`
	ContentType      *string        `json:"content_type,omitempty"`
	FileSizeBytes    *int64         `json:"file_size_bytes,omitempty"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// DocumentEquipment is a persisted EquipmentEntry
type DocumentEquipment struct {
	ID             int      `json:"id"`
	DocumentID     int      `json:"document_id"`
	Model          string   `json:"model"`
	ProductCode    *string  `json:"product_code,omitempty"`
	Quantity       int      `json:"quantity"`
	MACAddresses   []string `json:"mac_addresses"`
	CatalogModelID *int     `json:"catalog_model_id,omitempty"`
	Position       int      `json:"position"`
}

// MovementDocumentWithEquipment includes the equipment rows
type MovementDocumentWithEquipment struct {
	MovementDocument
	Equipment []DocumentEquipment `json:"equipment"`
	ImageURL  *string             `json:"image_url,omitempty"`
}

// Summary rebuilds the DocumentSummary a saved document was created from
func (d *MovementDocumentWithEquipment) Summary() *DocumentSummary {
	summary := &DocumentSummary{
		Responsible:      d.Responsible,
		Origin:           d.Origin,
		MovementDate:     d.MovementDate,
		EquipmentEntries: make([]EquipmentEntry, 0, len(d.Equipment)),
	}
	for _, e := range d.Equipment {
		summary.EquipmentEntries = append(summary.EquipmentEntries, EquipmentEntry{
			Model:        e.Model,
			Quantity:     e.Quantity,
			MACAddresses: e.MACAddresses,
			ProductCode:  e.ProductCode,
		})
		summary.TotalUnits += e.Quantity
	}
	return summary
}

// ExtractDocumentRequest is the body of a text extraction request
type ExtractDocumentRequest struct {
	Text string `json:"text" validate:"required"`
}

// ExtractedEquipment pairs an extracted entry with catalog suggestions
type ExtractedEquipment struct {
	EquipmentEntry
	Suggestions []ModelSuggestion `json:"suggestions,omitempty"`
}

// ExtractDocumentResponse is returned by the extract and scan endpoints
type ExtractDocumentResponse struct {
	Summary   *DocumentSummary     `json:"summary"`
	Equipment []ExtractedEquipment `json:"equipment"`
	OCRText   *string              `json:"ocr_text,omitempty"`
	S3Key     *string              `json:"s3_key,omitempty"`
}

// SaveDocumentRequest persists a (possibly user-corrected) summary
type SaveDocumentRequest struct {
	Source           DocumentSource          `json:"source" validate:"omitempty,oneof=text scan"`
	Responsible      *string                 `json:"responsible,omitempty"`
	Origin           *string                 `json:"origin,omitempty"`
	MovementDate     *string                 `json:"movement_date,omitempty"`
	RawText          *string                 `json:"raw_text,omitempty"`
	S3Key            *string                 `json:"s3_key,omitempty"`
	OriginalFilename *string                 `json:"original_filename,omitempty"`
	Equipment        []SaveDocumentEquipment `json:"equipment" validate:"required,min=1,dive"`
}

// SaveDocumentEquipment is one equipment row in a save request
type SaveDocumentEquipment struct {
	Model          string   `json:"model" validate:"required"`
	ProductCode    *string  `json:"product_code,omitempty"`
	Quantity       int      `json:"quantity" validate:"gt=0"`
	MACAddresses   []string `json:"mac_addresses"`
	CatalogModelID *int     `json:"catalog_model_id,omitempty"`
}

// CreateDocumentRequest is used by the repository when inserting a document
type CreateDocumentRequest struct {
	UserID           int
	Source           DocumentSource
	Responsible      *string
	Origin           *string
	MovementDate     *string
	RawText          *string
	S3Bucket         *string
	S3Key            *string
	OriginalFilename *string
	ContentType      *string
	FileSizeBytes    *int64
	ExpiresAt        *time.Time
	Equipment        []SaveDocumentEquipment
}

// DocumentListParams contains parameters for listing documents
type DocumentListParams struct {
	Limit  int
	Offset int
	Source *string
	UserID int
}
