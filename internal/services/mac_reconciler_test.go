package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxxcyber/equiptrack/internal/models"
)

// inventoryRecord renders one equipment record the way the stock system dumps it.
// Records are long enough that a neighbour never falls inside the lookup window.
func inventoryRecord(mac, status, location string) string {
	return strings.Join([]string{
		"ONU GPON 100",
		mac,
		status,
		"LOCAL ESTOQUE: " + location,
		"Fabricante: Genérico",
		"EPI: não",
		"----",
		"",
	}, "\n")
}

// failLookupFor makes the per-MAC lookup panic for mac until the test ends
func failLookupFor(t *testing.T, mac string) {
	t.Helper()
	orig := lookupLine
	lookupLine = func(lines []string, index lineIndex, target targetMAC) int {
		if target.raw == mac {
			panic("window out of range")
		}
		return orig(lines, index, target)
	}
	t.Cleanup(func() { lookupLine = orig })
}

func newTestReconciler(t *testing.T) (*MACReconciler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewMACReconciler(logger), hook
}

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"AA:BB:CC:DD:EE:FF", "aabbccddeeff", true},
		{"aa-bb-cc-dd-ee-01", "aabbccddee01", true},
		{"AABBCCDDEE02", "aabbccddee02", true},
		{"AA BB CC DD EE 03", "aabbccddee03", true},
		{"000000000000", "", false},
		{"FF:FF:FF:FF:FF:FF", "", false},
		{"ffffffffffff", "", false},
		{"777777777777", "", false},
		{"AABBCCDDEE", "", false},
		{"AABBCCDDEEFF00", "", false},
		{"GGBBCCDDEEFF", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeMAC(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMACColons(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", FormatMACColons("aabbccddeeff"))
}

func TestParseMACList_SeparatorsAndDuplicates(t *testing.T) {
	raw := "AABBCCDDEEFF, aabbccddeeff\n11:22:33:44:55:66;112233445567|zzz\t000000000000\n\n"

	validation, err := ParseMACList(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF", "11:22:33:44:55:66", "112233445567"}, validation.Valid)
	assert.Equal(t, []string{"aabbccddeeff"}, validation.Duplicates)
	assert.Equal(t, []string{"zzz", "000000000000"}, validation.Invalid)

	warnings := validation.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "2 invalid")
	assert.Contains(t, warnings[1], "1 duplicate")
}

func TestParseMACList_NoValid(t *testing.T) {
	validation, err := ParseMACList("000000000000\nnot-a-mac")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoValidMACs))

	var listErr *MACListError
	require.True(t, errors.As(err, &listErr))
	assert.Equal(t, []string{"000000000000", "not-a-mac"}, listErr.Validation.Invalid)
	assert.Empty(t, validation.Valid)
}

func TestParseMACList_Empty(t *testing.T) {
	_, err := ParseMACList("  \n ")
	assert.ErrorIs(t, err, ErrEmptyMACList)
}

func TestMACValidation_WarningSample(t *testing.T) {
	v := &models.MACValidation{Invalid: []string{"a", "b", "c", "d", "e", "f", "g"}}

	warnings := v.Warnings()

	require.Len(t, warnings, 1)
	assert.Equal(t, "7 invalid MAC address(es) ignored: a, b, c, d, e (and 2 more)", warnings[0])
}

func TestReconcile_InStockGroupedByLocation(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group("Galpão 1"))
	assert.Empty(t, outcome.Result.Unmatched)
	assert.False(t, outcome.Indexed)
}

func TestReconcile_OnLoanIsUnmatched(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AABBCCDDEEFF", "Comodato", "Galpão 2")

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Nil(t, outcome.Result.Group("Galpão 2"))
	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Unmatched)
}

func TestReconcile_KeepsOriginalFormatting(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("aa:bb:cc:dd:ee:ff", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"aa:bb:cc:dd:ee:ff"}, outcome.Result.Group("Galpão 1"))
}

func TestReconcile_MatchesColonFormattedInventory(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AA:BB:CC:DD:EE:FF", "Estoque", "Sala 3")

	outcome, err := r.Reconcile("aabbccddeeff", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"aabbccddeeff"}, outcome.Result.Group("Sala 3"))
}

func TestReconcile_MatchesDelimitedInventoryInOtherCase(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		inventory string
	}{
		{"lower hyphens vs upper", "aa-bb-cc-dd-ee-ff", "AA-BB-CC-DD-EE-FF"},
		{"upper hyphens vs lower", "AA-BB-CC-DD-EE-FF", "aa-bb-cc-dd-ee-ff"},
		{"lower spaces vs upper", "aa bb cc dd ee ff", "AA BB CC DD EE FF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReconciler(t)
			inventory := tt.inventory + "\nEstoque\nLOCAL ESTOQUE: Galpão 1"

			outcome, err := r.Reconcile(tt.requested, inventory)
			require.NoError(t, err)

			assert.Equal(t, []string{tt.requested}, outcome.Result.Group("Galpão 1"))
			assert.Empty(t, outcome.Result.Unmatched)
		})
	}
}

func TestReconcile_DuplicatesProcessedOnce(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("AABBCCDDEEFF, aabbccddeeff", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group("Galpão 1"))
	assert.Empty(t, outcome.Result.Unmatched)
	assert.Equal(t, []string{"aabbccddeeff"}, outcome.Validation.Duplicates)
	require.Len(t, outcome.Warnings, 1)
	assert.Contains(t, outcome.Warnings[0], "duplicate")
}

func TestReconcile_InvalidNeverReachesResult(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := "000000000000\nEstoque\nLOCAL ESTOQUE: Galpão 1\n" + inventoryRecord("112233445566", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("000000000000\n112233445566", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"000000000000"}, outcome.Validation.Invalid)
	assert.Equal(t, []string{"112233445566"}, outcome.Result.Group("Galpão 1"))
	assert.NotContains(t, outcome.Result.Unmatched, "000000000000")
}

func TestReconcile_OnlyInvalidAborts(t *testing.T) {
	r, _ := newTestReconciler(t)

	outcome, err := r.Reconcile("000000000000", "anything")

	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrNoValidMACs)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	r, _ := newTestReconciler(t)

	_, err := r.Reconcile("", "inventory")
	assert.ErrorIs(t, err, ErrEmptyMACList)

	_, err = r.Reconcile("AABBCCDDEEFF", "   ")
	assert.ErrorIs(t, err, ErrEmptyInventory)
}

func TestReconcile_NotFound(t *testing.T) {
	r, _ := newTestReconciler(t)

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventoryRecord("112233445566", "Estoque", "Galpão 1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Unmatched)
	assert.Empty(t, outcome.Result.Groups)
}

func TestReconcile_NoStatusIsUnmatched(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := "AABBCCDDEEFF\nLOCAL ESTOQUE: Galpão 1\nEstoque disponível"

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Unmatched)
}

func TestReconcile_MissingLocationUsesFallback(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := "AABBCCDDEEFF\nEstoque"

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group(models.UnidentifiedLocation))
}

func TestReconcile_WindowBounds(t *testing.T) {
	r, _ := newTestReconciler(t)

	// Status four lines after the MAC is outside the window
	inventory := "AABBCCDDEEFF\nx\ny\nz\nEstoque\nLOCAL ESTOQUE: Longe"
	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)
	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Unmatched)

	// Five lines before is still inside
	inventory = "LOCAL ESTOQUE: Perto\nEstoque\na\nb\nc\nAABBCCDDEEFF"
	outcome, err = r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)
	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group("Perto"))
}

func TestReconcile_LocationPattern(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"plain", "LOCAL ESTOQUE: Galpão 1", "Galpão 1"},
		{"lowercase label", "local estoque:   Depósito B  ", "Depósito B"},
		{"stops at numero", "Local Estoque: Sala 4 Número de série: X1", "Sala 4"},
		{"stops at epi", "Local Estoque: Sala 5 EPI: não", "Sala 5"},
		{"stops at id proprio", "Local Estoque: Sala 6 ID Próprio 998", "Sala 6"},
		{"stops at tab", "Local Estoque: Sala 7\tOutro campo", "Sala 7"},
		{"crlf", "Local Estoque: Sala 8\r", "Sala 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestReconciler(t)
			inventory := "AABBCCDDEEFF\nEstoque\n" + tt.line

			outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
			require.NoError(t, err)

			assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group(tt.want))
		})
	}
}

func TestReconcile_FirstLineMatchWins(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := inventoryRecord("AABBCCDDEEFF", "Comodato", "Cliente X") + "\n\n\n\n\n\n\n\n\n" +
		inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Unmatched)
	assert.Empty(t, outcome.Result.Groups)
}

func TestReconcile_GroupsKeepDiscoveryOrder(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := strings.Join([]string{
		inventoryRecord("111111111112", "Estoque", "B"),
		inventoryRecord("111111111113", "Estoque", "A"),
		inventoryRecord("111111111114", "Estoque", "B"),
	}, "\n")

	outcome, err := r.Reconcile("111111111112\n111111111113\n111111111114", inventory)
	require.NoError(t, err)

	require.Len(t, outcome.Result.Groups, 2)
	assert.Equal(t, "B", outcome.Result.Groups[0].Location)
	assert.Equal(t, []string{"111111111112", "111111111114"}, outcome.Result.Groups[0].MACs)
	assert.Equal(t, "A", outcome.Result.Groups[1].Location)
}

// largeInventory builds enough records to cross the indexing threshold
func largeInventory(macs []string) string {
	var b strings.Builder
	for i, mac := range macs {
		status := "Estoque"
		if i%4 == 1 {
			status = "Comodato"
		}
		b.WriteString(inventoryRecord(mac, status, fmt.Sprintf("Galpão %d", i%4)))
		b.WriteString("\n")
	}
	return b.String()
}

func TestReconcile_IndexedMatchesLinear(t *testing.T) {
	var present, requested []string
	for i := 0; i < 250; i++ {
		present = append(present, fmt.Sprintf("0A1B2C%06X", i+1))
	}
	// Spellings that only a substring search would find without care
	present[0] = "AA BB CC DD EE 01"
	present[3] = "aa-bb-cc-dd-ee-02"
	present[6] = "SN00AABBCCDDEE0300"
	present[12] = "de AA:BB:CC:DD:EE:04"
	for i := 0; i < 80; i++ {
		requested = append(requested, present[i*3])
	}
	requested[0] = "AA BB CC DD EE 01"
	requested[1] = "AA-BB-CC-DD-EE-02"
	requested[2] = "aabbccddee03"
	requested[4] = "aa:bb:cc:dd:ee:04"
	requested = append(requested, "DEADBEEF0001", "de:ad:be:ef:00:02", "AABB:CCDDEE05")
	inventory := largeInventory(present)
	macs := strings.Join(requested, "\n")

	r, _ := newTestReconciler(t)
	indexed, err := r.Reconcile(macs, inventory)
	require.NoError(t, err)
	require.True(t, indexed.Indexed, "expected %d lines to trigger the index", indexed.LineCount)

	// Same input below the MAC threshold runs linearly, one chunk at a time
	linear := models.NewReconciliationResult()
	for start := 0; start < len(requested); start += 40 {
		end := min(start+40, len(requested))
		out, err := r.Reconcile(strings.Join(requested[start:end], "\n"), inventory)
		require.NoError(t, err)
		require.False(t, out.Indexed)
		for _, g := range out.Result.Groups {
			for _, mac := range g.MACs {
				linear.AddFound(g.Location, mac)
			}
		}
		linear.Unmatched = append(linear.Unmatched, out.Result.Unmatched...)
	}

	assert.ElementsMatch(t, linear.Unmatched, indexed.Result.Unmatched)
	for _, g := range linear.Groups {
		assert.ElementsMatch(t, g.MACs, indexed.Result.Group(g.Location), g.Location)
	}
	assert.Contains(t, indexed.Result.Unmatched, "DEADBEEF0001")
	assert.Contains(t, indexed.Result.Group("Galpão 0"), "AA BB CC DD EE 01")
	assert.Contains(t, indexed.Result.Group("Galpão 3"), "AA-BB-CC-DD-EE-02")
	assert.Contains(t, indexed.Result.Group("Galpão 2"), "aabbccddee03")
	assert.Contains(t, indexed.Result.Group("Galpão 0"), "aa:bb:cc:dd:ee:04")
	assert.Contains(t, indexed.Result.Unmatched, "AABB:CCDDEE05")
}

func TestMACAt(t *testing.T) {
	tests := []struct {
		in        string
		at        int
		want      string
		wantWidth int
		wantOK    bool
	}{
		{"AABBCCDDEEFF", 0, "aabbccddeeff", 12, true},
		{"x AA:BB:CC:DD:EE:FF", 2, "aabbccddeeff", 17, true},
		{"aa-bb-cc-dd-ee-ff", 0, "aabbccddeeff", 17, true},
		{"AA BB CC DD EE FF", 0, "aabbccddeeff", 17, true},
		{"00AABBCCDDEEFF00", 2, "aabbccddeeff", 12, true},
		{"AA:BB-CC:DD:EE:FF", 0, "", 0, false},
		{"AA  BB CC DD EE FF", 0, "", 0, false},
		{"AABB:CCDDEEFF", 0, "", 0, false},
		{"AA:BB:CC", 0, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, width, ok := macAt(tt.in, tt.at)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantWidth, width)
		})
	}
}

func TestReconcile_TopLevelFailureReturnsNoResult(t *testing.T) {
	orig := indexLines
	indexLines = func([]string) lineIndex { panic("index corrupted") }
	t.Cleanup(func() { indexLines = orig })

	var present, requested []string
	for i := 0; i < 200; i++ {
		present = append(present, fmt.Sprintf("0C0D0E%06X", i+1))
	}
	requested = present[:60]

	r, hook := newTestReconciler(t)
	outcome, err := r.Reconcile(strings.Join(requested, "\n"), largeInventory(present))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReconciliationFailed)
	assert.Nil(t, outcome)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Reconciliation aborted", hook.LastEntry().Message)
}

func TestReconcile_EveryMACLandsInOneBucket(t *testing.T) {
	var present []string
	for i := 0; i < 30; i++ {
		present = append(present, fmt.Sprintf("00AA00BB%04X", i+1))
	}
	requested := append([]string{}, present...)
	requested = append(requested, "CAFEBABE0001", "CAFEBABE0002")

	r, _ := newTestReconciler(t)
	outcome, err := r.Reconcile(strings.Join(requested, ","), largeInventory(present))
	require.NoError(t, err)

	seen := map[string]int{}
	for _, g := range outcome.Result.Groups {
		for _, mac := range g.MACs {
			seen[mac]++
		}
	}
	for _, mac := range outcome.Result.Unmatched {
		seen[mac]++
	}

	require.Len(t, seen, len(requested))
	for _, mac := range requested {
		assert.Equal(t, 1, seen[mac], mac)
	}
}

func TestReconcile_PerMACFailureIsIsolated(t *testing.T) {
	r, hook := newTestReconciler(t)
	failLookupFor(t, "112233445566")
	inventory := inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1") + "\n" +
		inventoryRecord("112233445566", "Estoque", "Galpão 1")

	outcome, err := r.Reconcile("112233445566\nAABBCCDDEEFF", inventory)
	require.NoError(t, err)

	assert.Equal(t, []string{"112233445566"}, outcome.Result.Unmatched)
	assert.Equal(t, []string{"AABBCCDDEEFF"}, outcome.Result.Group("Galpão 1"))

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["mac"] == "112233445566" {
			logged = true
		}
	}
	assert.True(t, logged, "per-MAC failure should be logged")
}

func TestReconcile_SlowRunIsLogged(t *testing.T) {
	r, hook := newTestReconciler(t)
	r.SlowThreshold = time.Nanosecond
	orig := lookupLine
	lookupLine = func(lines []string, index lineIndex, target targetMAC) int {
		time.Sleep(time.Millisecond)
		return orig(lines, index, target)
	}
	t.Cleanup(func() { lookupLine = orig })

	outcome, err := r.Reconcile("AABBCCDDEEFF", inventoryRecord("AABBCCDDEEFF", "Estoque", "Galpão 1"))
	require.NoError(t, err)
	assert.True(t, outcome.Slow)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "Slow MAC reconciliation", hook.LastEntry().Message)
}

func TestReconcile_Idempotent(t *testing.T) {
	r, _ := newTestReconciler(t)
	inventory := largeInventory([]string{"AABBCCDDEE01", "AABBCCDDEE02", "AABBCCDDEE03"})

	first, err := r.Reconcile("AABBCCDDEE01\nAABBCCDDEE02\nAABBCCDDEE03\nAABBCCDDEE04", inventory)
	require.NoError(t, err)
	second, err := r.Reconcile("AABBCCDDEE01\nAABBCCDDEE02\nAABBCCDDEE03\nAABBCCDDEE04", inventory)
	require.NoError(t, err)

	assert.Equal(t, first.Result, second.Result)
}

func TestReconciliationResult_AddFoundSkipsRepeats(t *testing.T) {
	result := models.NewReconciliationResult()
	result.AddFound("Galpão 1", "AABBCCDDEEFF")
	result.AddFound("Galpão 1", "AABBCCDDEEFF")

	assert.Equal(t, []string{"AABBCCDDEEFF"}, result.Group("Galpão 1"))
	assert.Equal(t, 1, result.FoundCount())
}
