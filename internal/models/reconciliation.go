package models

import (
	"fmt"
	"strings"
	"time"
)

// UnidentifiedLocation names the group for in-stock MACs without a location line
const UnidentifiedLocation = "Local não identificado"

// warningSampleSize caps how many offending values a batched warning lists
const warningSampleSize = 5

// LocationGroup holds the in-stock MACs found at one location
type LocationGroup struct {
	Location string   `json:"location"`
	MACs     []string `json:"macs"`
}

// ReconciliationResult partitions the requested MACs into location groups and unmatched.
// Groups keep the order in which locations were first seen.
type ReconciliationResult struct {
	Groups    []LocationGroup `json:"groups"`
	Unmatched []string        `json:"unmatched"`
}

// NewReconciliationResult returns an empty result ready for accumulation
func NewReconciliationResult() *ReconciliationResult {
	return &ReconciliationResult{
		Groups:    []LocationGroup{},
		Unmatched: []string{},
	}
}

// Group returns the MACs found at location, or nil
func (r *ReconciliationResult) Group(location string) []string {
	for _, g := range r.Groups {
		if g.Location == location {
			return g.MACs
		}
	}
	return nil
}

// AddFound appends mac to the group for location, creating it when needed.
// A MAC already present in that group is not added twice.
func (r *ReconciliationResult) AddFound(location, mac string) {
	for i := range r.Groups {
		if r.Groups[i].Location != location {
			continue
		}
		for _, existing := range r.Groups[i].MACs {
			if existing == mac {
				return
			}
		}
		r.Groups[i].MACs = append(r.Groups[i].MACs, mac)
		return
	}
	r.Groups = append(r.Groups, LocationGroup{Location: location, MACs: []string{mac}})
}

// AddUnmatched appends mac to the unmatched list
func (r *ReconciliationResult) AddUnmatched(mac string) {
	r.Unmatched = append(r.Unmatched, mac)
}

// FoundCount returns the number of MACs across all groups
func (r *ReconciliationResult) FoundCount() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.MACs)
	}
	return n
}

// MACValidation is the outcome of splitting and validating a raw MAC list.
// Valid keeps the first occurrence of each MAC in its original format.
type MACValidation struct {
	Valid      []string `json:"valid"`
	Invalid    []string `json:"invalid"`
	Duplicates []string `json:"duplicates"`
}

// Warnings returns one batched message per non-empty problem list
func (v *MACValidation) Warnings() []string {
	var warnings []string
	if len(v.Invalid) > 0 {
		warnings = append(warnings, batchWarning("invalid MAC address(es) ignored", v.Invalid))
	}
	if len(v.Duplicates) > 0 {
		warnings = append(warnings, batchWarning("duplicate MAC address(es) ignored", v.Duplicates))
	}
	return warnings
}

func batchWarning(label string, values []string) string {
	sample := values
	if len(sample) > warningSampleSize {
		sample = sample[:warningSampleSize]
	}
	msg := fmt.Sprintf("%d %s: %s", len(values), label, strings.Join(sample, ", "))
	if len(values) > warningSampleSize {
		msg += fmt.Sprintf(" (and %d more)", len(values)-warningSampleSize)
	}
	return msg
}

// ReconciliationOutcome bundles a result with the facts observed while producing it
type ReconciliationOutcome struct {
	Result     *ReconciliationResult `json:"result"`
	Validation *MACValidation        `json:"validation"`
	Warnings   []string              `json:"warnings,omitempty"`
	Indexed    bool                  `json:"indexed"`
	LineCount  int                   `json:"line_count"`
	Elapsed    time.Duration         `json:"-"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
	Slow       bool                  `json:"slow"`
}

// MACStatus is the persisted outcome of a single MAC
type MACStatus string

const (
	MACStatusInStock   MACStatus = "in_stock"
	MACStatusUnmatched MACStatus = "unmatched"
)

// ReconciliationRun is a saved reconciliation
type ReconciliationRun struct {
	ID             int       `json:"id"`
	UserID         int       `json:"user_id"`
	Label          *string   `json:"label,omitempty"`
	MACCount       int       `json:"mac_count"`
	FoundCount     int       `json:"found_count"`
	UnmatchedCount int       `json:"unmatched_count"`
	InvalidCount   int       `json:"invalid_count"`
	DuplicateCount int       `json:"duplicate_count"`
	Indexed        bool      `json:"indexed"`
	ElapsedMS      int64     `json:"elapsed_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReconciliationMAC is one persisted MAC outcome
type ReconciliationMAC struct {
	ID       int       `json:"id"`
	RunID    int       `json:"run_id"`
	MAC      string    `json:"mac"`
	Status   MACStatus `json:"status"`
	Location *string   `json:"location,omitempty"`
	Position int       `json:"position"`
}

// ReconciliationRunWithMACs includes the per-MAC outcomes
type ReconciliationRunWithMACs struct {
	ReconciliationRun
	MACs []ReconciliationMAC `json:"macs"`
}

// Result rebuilds the ReconciliationResult a run was saved from
func (r *ReconciliationRunWithMACs) Result() *ReconciliationResult {
	result := NewReconciliationResult()
	for _, m := range r.MACs {
		if m.Status == MACStatusInStock {
			location := UnidentifiedLocation
			if m.Location != nil {
				location = *m.Location
			}
			result.AddFound(location, m.MAC)
			continue
		}
		result.AddUnmatched(m.MAC)
	}
	return result
}

// ReconcileRequest is the body of a reconciliation request
type ReconcileRequest struct {
	MACs          string  `json:"macs" validate:"required"`
	InventoryText string  `json:"inventory_text" validate:"required"`
	Save          bool    `json:"save"`
	Label         *string `json:"label,omitempty" validate:"omitempty,max=200"`
}

// ReconcileResponse is returned by the reconciliation endpoint
type ReconcileResponse struct {
	*ReconciliationOutcome
	RunID *int `json:"run_id,omitempty"`
}

// ReconciliationListParams contains parameters for listing runs
type ReconciliationListParams struct {
	Limit  int
	Offset int
	UserID int
}
