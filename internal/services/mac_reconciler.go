package services

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/foxxcyber/equiptrack/internal/models"
)

var (
	ErrEmptyMACList         = errors.New("MAC list is empty")
	ErrEmptyInventory       = errors.New("inventory text is empty")
	ErrNoValidMACs          = errors.New("no valid MAC addresses to reconcile")
	ErrReconciliationFailed = errors.New("reconciliation failed")
)

const (
	// The index only pays off when both sides are large
	indexMinLines = 1000
	indexMinMACs  = 50

	windowBefore = 5
	windowAfter  = 3

	statusInStock = "Estoque"
	statusOnLoan  = "Comodato"

	defaultSlowThreshold = 3 * time.Second
)

// MACListError reports a MAC list with no usable address. Validation lists what was rejected.
type MACListError struct {
	Validation *models.MACValidation
}

func (e *MACListError) Error() string {
	return ErrNoValidMACs.Error()
}

func (e *MACListError) Unwrap() error {
	return ErrNoValidMACs
}

var (
	macSeparatorPattern = regexp.MustCompile(`[\n,;|\t]`)
	macTextPattern      = regexp.MustCompile(`(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}|[0-9A-Fa-f]{12}`)
)

// MACReconciler checks MAC addresses against an inventory listing dump and
// groups the in-stock ones by storage location.
type MACReconciler struct {
	locationPattern *regexp.Regexp
	logger          *logrus.Logger

	// SlowThreshold triggers a warning log when a run takes at least this long.
	// Zero or negative disables the warning.
	SlowThreshold time.Duration
}

// Swapped in tests
var (
	lookupLine = findMACLine
	indexLines = buildLineIndex
)

// NewMACReconciler creates a new MAC reconciler
func NewMACReconciler(logger *logrus.Logger) *MACReconciler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MACReconciler{
		locationPattern: regexp.MustCompile(`(?i)local\s+estoque:\s*([^\t\n\r]+?)(?:\s+(?:número|epi|id próprio)|\t|$)`),
		logger:          logger,
		SlowThreshold:   defaultSlowThreshold,
	}
}

// ParseMACList splits raw input on newline, comma, semicolon, pipe or tab and
// validates every token. Duplicates are detected on the delimiter-free lowercase
// form; the first occurrence keeps its original spelling.
func ParseMACList(raw string) (*models.MACValidation, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyMACList
	}

	validation := &models.MACValidation{
		Valid:      []string{},
		Invalid:    []string{},
		Duplicates: []string{},
	}
	seen := make(map[string]bool)

	for _, token := range macSeparatorPattern.Split(raw, -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		normalized, ok := NormalizeMAC(token)
		if !ok {
			validation.Invalid = append(validation.Invalid, token)
			continue
		}

		if seen[normalized] {
			validation.Duplicates = append(validation.Duplicates, token)
			continue
		}
		seen[normalized] = true
		validation.Valid = append(validation.Valid, token)
	}

	if len(validation.Valid) == 0 {
		return validation, &MACListError{Validation: validation}
	}

	return validation, nil
}

// NormalizeMAC strips colons, hyphens and whitespace and returns the lowercase
// 12 hex digit form. Placeholder values (all zero, all F, one repeated digit) are rejected.
func NormalizeMAC(token string) (string, bool) {
	var b strings.Builder
	for _, r := range token {
		if r == ':' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	normalized := b.String()

	if len(normalized) != 12 {
		return "", false
	}
	for _, r := range normalized {
		if !isHexDigit(r) {
			return "", false
		}
	}
	if strings.Count(normalized, normalized[:1]) == len(normalized) {
		return "", false
	}

	return normalized, true
}

// FormatMACColons renders a normalized MAC as AA:BB:CC:DD:EE:FF
func FormatMACColons(normalized string) string {
	upper := strings.ToUpper(normalized)
	parts := make([]string, 0, 6)
	for i := 0; i+2 <= len(upper); i += 2 {
		parts = append(parts, upper[i:i+2])
	}
	return strings.Join(parts, ":")
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// targetMAC is a validated MAC plus the spellings searched for in the inventory text
type targetMAC struct {
	raw        string
	normalized string
	variants   []string
}

// newTargetMAC lists the spellings searched for raw. The input's own spelling
// and its case variants are only searched when they have a shape the line
// index recognizes, so both lookup strategies see the same candidates.
func newTargetMAC(raw string) targetMAC {
	normalized, _ := NormalizeMAC(raw)
	t := targetMAC{raw: raw, normalized: normalized}

	candidates := []string{normalized, FormatMACColons(normalized), strings.ToUpper(normalized)}
	if _, width, ok := macAt(raw, 0); ok && width == len(raw) {
		candidates = append(candidates, raw, strings.ToUpper(raw), strings.ToLower(raw))
	}

	for _, v := range candidates {
		if v == "" || containsString(t.variants, v) {
			continue
		}
		t.variants = append(t.variants, v)
	}
	return t
}

func (t targetMAC) foundIn(line string) bool {
	for _, v := range t.variants {
		if strings.Contains(line, v) {
			return true
		}
	}
	return false
}

// lineIndex maps a normalized MAC to the lines where a MAC-shaped token normalizes to it
type lineIndex map[string][]int

// Reconcile validates macsRaw and looks each MAC up in inventoryText.
// A MAC lands in a location group only when its record says "Estoque";
// everything else (missing, "Comodato", no status) is unmatched.
func (r *MACReconciler) Reconcile(macsRaw, inventoryText string) (outcome *models.ReconciliationOutcome, err error) {
	if strings.TrimSpace(macsRaw) == "" {
		return nil, ErrEmptyMACList
	}
	if strings.TrimSpace(inventoryText) == "" {
		return nil, ErrEmptyInventory
	}

	validation, err := ParseMACList(macsRaw)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"panic":     rec,
				"mac_count": len(validation.Valid),
			}).Error("Reconciliation aborted")
			outcome = nil
			err = fmt.Errorf("%w: %v", ErrReconciliationFailed, rec)
		}
	}()

	start := time.Now()
	lines := splitInventoryLines(inventoryText)
	targets := make([]targetMAC, 0, len(validation.Valid))
	for _, raw := range validation.Valid {
		targets = append(targets, newTargetMAC(raw))
	}

	var index lineIndex
	if len(lines) > indexMinLines && len(targets) > indexMinMACs {
		index = indexLines(lines)
	}

	result := models.NewReconciliationResult()
	for _, target := range targets {
		r.reconcileOne(lines, index, target, result)
	}

	elapsed := time.Since(start)
	outcome = &models.ReconciliationOutcome{
		Result:     result,
		Validation: validation,
		Warnings:   validation.Warnings(),
		Indexed:    index != nil,
		LineCount:  len(lines),
		Elapsed:    elapsed,
		ElapsedMS:  elapsed.Milliseconds(),
		Slow:       r.SlowThreshold > 0 && elapsed >= r.SlowThreshold,
	}

	fields := logrus.Fields{
		"macs":      len(targets),
		"lines":     len(lines),
		"indexed":   outcome.Indexed,
		"found":     result.FoundCount(),
		"unmatched": len(result.Unmatched),
		"elapsed":   elapsed.String(),
	}
	if outcome.Slow {
		r.logger.WithFields(fields).Warn("Slow MAC reconciliation")
	} else {
		r.logger.WithFields(fields).Debug("MAC reconciliation finished")
	}

	return outcome, nil
}

// reconcileOne resolves a single MAC. A failure here only affects this MAC.
func (r *MACReconciler) reconcileOne(lines []string, index lineIndex, target targetMAC, result *models.ReconciliationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithFields(logrus.Fields{
				"mac":   target.raw,
				"panic": rec,
			}).Error("Failed to reconcile MAC, marking as unmatched")
			result.AddUnmatched(target.raw)
		}
	}()

	lineNo := lookupLine(lines, index, target)
	if lineNo < 0 {
		result.AddUnmatched(target.raw)
		return
	}

	location, status := r.inspectWindow(lines, lineNo)
	if status != statusInStock {
		result.AddUnmatched(target.raw)
		return
	}

	if location == "" {
		location = models.UnidentifiedLocation
	}
	result.AddFound(location, target.raw)
}

// findMACLine returns the first line mentioning target, or -1.
// With an index only the indexed lines are inspected.
func findMACLine(lines []string, index lineIndex, target targetMAC) int {
	if index != nil {
		for _, i := range index[target.normalized] {
			if target.foundIn(lines[i]) {
				return i
			}
		}
		return -1
	}

	for i, line := range lines {
		if target.foundIn(line) {
			return i
		}
	}
	return -1
}

// inspectWindow looks around lineNo for the first location line and the first status line
func (r *MACReconciler) inspectWindow(lines []string, lineNo int) (location, status string) {
	from := max(0, lineNo-windowBefore)
	to := min(len(lines)-1, lineNo+windowAfter)

	for _, line := range lines[from : to+1] {
		if location == "" && strings.Contains(strings.ToLower(line), "local estoque:") {
			if m := r.locationPattern.FindStringSubmatch(line); m != nil {
				location = strings.TrimSpace(m[1])
			}
		}

		if status == "" {
			switch strings.TrimSpace(line) {
			case statusInStock, statusOnLoan:
				status = strings.TrimSpace(line)
			}
		}

		if location != "" && status != "" {
			break
		}
	}

	return location, status
}

func buildLineIndex(lines []string) lineIndex {
	index := make(lineIndex)
	for i, line := range lines {
		for j := 0; j < len(line); j++ {
			key, _, ok := macAt(line, j)
			if !ok {
				continue
			}
			positions := index[key]
			if len(positions) > 0 && positions[len(positions)-1] == i {
				continue
			}
			index[key] = append(positions, i)
		}
	}
	return index
}

// macAt reads a MAC spelled at s[i:]: twelve contiguous hex digits, or six hex
// pairs joined by one repeated ':', '-' or ' '. It returns the normalized form
// and the number of bytes consumed.
func macAt(s string, i int) (string, int, bool) {
	if i+12 <= len(s) && allHex(s[i:i+12]) {
		return strings.ToLower(s[i : i+12]), 12, true
	}
	if i+17 > len(s) {
		return "", 0, false
	}

	sep := s[i+2]
	if sep != ':' && sep != '-' && sep != ' ' {
		return "", 0, false
	}

	var b strings.Builder
	for g := 0; g < 6; g++ {
		p := i + g*3
		if !allHex(s[p:p+2]) || (g < 5 && s[p+2] != sep) {
			return "", 0, false
		}
		b.WriteString(s[p : p+2])
	}
	return strings.ToLower(b.String()), 17, true
}

func allHex(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isHexDigit(rune(s[i])) {
			return false
		}
	}
	return true
}

// splitInventoryLines splits on newlines, dropping carriage returns so
// end-of-line anchors behave the same for CRLF dumps
func splitInventoryLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}
