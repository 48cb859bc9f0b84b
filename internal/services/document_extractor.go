package services

import (
	"regexp"
	"strings"

	"github.com/foxxcyber/equiptrack/internal/models"
)

// DocumentExtractor turns pasted or OCR'd transfer receipts into a DocumentSummary.
// Every rule is a loose pattern match; rows that don't fit are skipped, never rejected.
type DocumentExtractor struct {
	responsiblePattern *regexp.Regexp
	datePattern        *regexp.Regexp
	originPattern      *regexp.Regexp
	tableRowPattern    *regexp.Regexp
	macPattern         *regexp.Regexp
	tableEndMarkers    []string
}

// NewDocumentExtractor creates a new document extractor
func NewDocumentExtractor() *DocumentExtractor {
	return &DocumentExtractor{
		// "Eu, João Silva, responsável pelo..."
		responsiblePattern: regexp.MustCompile(`Eu,\s*([^,]+)`),
		datePattern:        regexp.MustCompile(`(\d{2}/\d{2}/\d{4})`),
		// "Estoque de origem Almoxarifado Central: ..."
		originPattern: regexp.MustCompile(`(?i)origem\s+([^:]+)`),
		// Rows without a header start with item number and quantity
		tableRowPattern: regexp.MustCompile(`^\s*\d+\s+\d+\s+`),
		macPattern:      macTextPattern,
		tableEndMarkers: []string{"por meio desta", "atenciosamente", "responsável"},
	}
}

// Extract parses document text. It always returns a summary; an empty
// EquipmentEntries list means nothing in the text looked like an equipment row.
func (e *DocumentExtractor) Extract(text string) *models.DocumentSummary {
	lines := splitNonEmptyLines(text)

	summary := &models.DocumentSummary{}
	e.scanHeader(lines, summary)

	entries := e.scanTable(lines)
	summary.EquipmentEntries = entries
	for _, entry := range entries {
		summary.TotalUnits += entry.Quantity
	}

	return summary
}

// scanHeader captures responsible party, movement date and origin in one pass.
// Each field keeps the first value found.
func (e *DocumentExtractor) scanHeader(lines []string, summary *models.DocumentSummary) {
	for _, line := range lines {
		if summary.Responsible == nil && strings.Contains(line, "Eu,") {
			if m := e.responsiblePattern.FindStringSubmatch(line); m != nil {
				summary.Responsible = nonEmpty(m[1])
			}
		}

		if summary.MovementDate == nil {
			if m := e.datePattern.FindStringSubmatch(line); m != nil {
				date := m[1]
				summary.MovementDate = &date
			}
		}

		if summary.Origin == nil {
			lower := strings.ToLower(line)
			if strings.Contains(lower, "estoque") && strings.Contains(lower, "origem") {
				if m := e.originPattern.FindStringSubmatch(line); m != nil {
					summary.Origin = nonEmpty(m[1])
				}
			}
		}
	}
}

// scanTable finds the equipment table and aggregates its rows by uppercased model
func (e *DocumentExtractor) scanTable(lines []string) []models.EquipmentEntry {
	acc := newEntryAccumulator()
	inTable := false

	for _, line := range lines {
		lower := strings.ToLower(line)

		if !inTable {
			if !e.isTableStart(line, lower) {
				continue
			}
			// The opening line may already be a data row
			inTable = true
		} else if e.isTableEnd(lower) {
			break
		}

		row, ok := parseTableRow(line)
		if !ok || row.model == "" {
			continue
		}

		acc.add(row, e.macPattern.FindAllString(line, -1))
	}

	return acc.entries()
}

func (e *DocumentExtractor) isTableStart(line, lower string) bool {
	if strings.Contains(lower, "produto") && strings.Contains(lower, "quantidade") {
		return true
	}
	return e.tableRowPattern.MatchString(line)
}

func (e *DocumentExtractor) isTableEnd(lower string) bool {
	for _, marker := range e.tableEndMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// tableRow is a qualifying data row: item number, quantity, product code, model.
// Model is the fourth whitespace token, so multi-word models keep only their first word.
type tableRow struct {
	quantity    int
	productCode string
	model       string
}

func parseTableRow(line string) (tableRow, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 3 {
		return tableRow{}, false
	}

	if _, ok := parseLeadingInt(tokens[0]); !ok {
		return tableRow{}, false
	}
	quantity, ok := parseLeadingInt(tokens[1])
	if !ok || quantity <= 0 {
		return tableRow{}, false
	}

	row := tableRow{
		quantity:    quantity,
		productCode: tokens[2],
	}
	if len(tokens) > 3 {
		row.model = tokens[3]
	}
	return row, true
}

// parseLeadingInt reads an optional sign followed by leading digits, ignoring
// whatever follows them ("5x" is 5). It fails when no digit leads the token.
func parseLeadingInt(s string) (int, bool) {
	i := 0
	negative := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		negative = s[i] == '-'
		i++
	}

	start := i
	n := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		// Cap to keep absurd OCR digit runs from overflowing
		if n < 1<<31 {
			n = n*10 + int(s[i]-'0')
		}
		i++
	}
	if i == start {
		return 0, false
	}

	if negative {
		n = -n
	}
	return n, true
}

// entryAccumulator aggregates rows by uppercased model, keeping first-seen order
type entryAccumulator struct {
	order   []string
	byModel map[string]*models.EquipmentEntry
}

func newEntryAccumulator() *entryAccumulator {
	return &entryAccumulator{
		byModel: make(map[string]*models.EquipmentEntry),
	}
}

func (a *entryAccumulator) add(row tableRow, macs []string) {
	key := strings.ToUpper(row.model)

	if existing, ok := a.byModel[key]; ok {
		existing.Quantity += row.quantity
		existing.MACAddresses = append(existing.MACAddresses, macs...)
		return
	}

	code := row.productCode
	entry := &models.EquipmentEntry{
		Model:        key,
		Quantity:     row.quantity,
		MACAddresses: append([]string{}, macs...),
		ProductCode:  &code,
	}
	a.byModel[key] = entry
	a.order = append(a.order, key)
}

func (a *entryAccumulator) entries() []models.EquipmentEntry {
	out := make([]models.EquipmentEntry, 0, len(a.order))
	for _, key := range a.order {
		out = append(out, *a.byModel[key])
	}
	return out
}

// splitNonEmptyLines splits text into trimmed, non-empty lines
func splitNonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
