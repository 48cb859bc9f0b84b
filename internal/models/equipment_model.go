package models

import (
	"time"
)

// EquipmentModel is a catalog entry for a known equipment model
type EquipmentModel struct {
	ID           int       `json:"id"`
	Model        string    `json:"model"`
	Manufacturer *string   `json:"manufacturer,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Description  *string   `json:"description,omitempty"`
	CreatedBy    *int      `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateEquipmentModelRequest is the request body for creating a catalog model
type CreateEquipmentModelRequest struct {
	Model        string  `json:"model" validate:"required,max=100"`
	Manufacturer *string `json:"manufacturer,omitempty" validate:"omitempty,max=100"`
	Category     *string `json:"category,omitempty" validate:"omitempty,max=50"`
	Description  *string `json:"description,omitempty"`
}

// UpdateEquipmentModelRequest is the request body for updating a catalog model
type UpdateEquipmentModelRequest struct {
	Model        *string `json:"model,omitempty" validate:"omitempty,min=1,max=100"`
	Manufacturer *string `json:"manufacturer,omitempty" validate:"omitempty,max=100"`
	Category     *string `json:"category,omitempty" validate:"omitempty,max=50"`
	Description  *string `json:"description,omitempty"`
}

// EquipmentModelListParams contains parameters for listing catalog models
type EquipmentModelListParams struct {
	Limit    int
	Offset   int
	Search   string
	Category string
}

// ModelMatch is a raw trigram match from the catalog
type ModelMatch struct {
	ModelID    int
	Model      string
	Category   *string
	Confidence float64
}

// ModelSuggestion is a catalog suggestion for an extracted model name
type ModelSuggestion struct {
	ModelID    int     `json:"model_id"`
	Model      string  `json:"model"`
	Category   *string `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
	Level      string  `json:"level"`
}
