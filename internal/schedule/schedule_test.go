package schedule

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEngine() *Engine {
	n := 0
	return &Engine{
		NewID: func() string {
			n++
			return fmt.Sprintf("inst-%d", n)
		},
		Now:  func() time.Time { return time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC) },
		Lang: "fr",
	}
}

func ptr[T any](v T) *T { return &v }

func phaseLines() []LineItem {
	return []LineItem{
		{ID: "a", Amount: 4000, IsIncluded: true, LineType: LineTypePhase, PhaseName: "Esquisse"},
		{ID: "b", Amount: 3000, IsIncluded: true, LineType: LineTypePhase, PhaseName: "APS"},
		{ID: "c", Amount: 3000, IsIncluded: true, LineType: LineTypePhase, PhaseName: "APD"},
	}
}

func numbers(list []Installment) []int {
	out := make([]int, len(list))
	for i, inst := range list {
		out[i] = inst.ScheduleNumber
	}
	return out
}

func percentages(list []Installment) []float64 {
	out := make([]float64, len(list))
	for i, inst := range list {
		out[i] = inst.Percentage
	}
	return out
}

func TestGenerateFromPhases_EndToEnd(t *testing.T) {
	e := testEngine()
	list := e.GenerateFromPhases(phaseLines(), 10000, 20)

	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, numbers(list))
	assert.InDeltaSlice(t, []float64{40, 30, 30}, percentages(list), 1e-9)
	wantHT := []float64{4000, 3000, 3000}
	wantTTC := []float64{4800, 3600, 3600}
	for i, inst := range list {
		assert.InDelta(t, wantHT[i], inst.AmountHT, 1e-9)
		assert.InDelta(t, wantTTC[i], inst.AmountTTC, 1e-6)
		assert.Equal(t, 20.0, inst.VATRate)
	}
	assert.Equal(t, "Acompte Esquisse", list[0].Title)
	assert.Equal(t, "Esquisse", list[0].Milestone)
	assert.Equal(t, []string{"a"}, list[0].PhaseIDs)

	s := Summarize(list, Document{TotalAmount: 10000, VATRate: 20}, phaseLines())
	assert.InDelta(t, 10000, s.TotalHT, 1e-9)
	assert.InDelta(t, 10000, s.IncludedLinesTotal, 1e-9)
	assert.False(t, s.HasCoverageGap)
	assert.True(t, s.IsBalanced)
}

func TestGenerateFromPhases_NoBillableLines(t *testing.T) {
	e := testEngine()
	lines := []LineItem{
		{ID: "x", Amount: 500, IsIncluded: false, LineType: LineTypePhase, PhaseName: "Option"},
		{ID: "d", Amount: -200, IsIncluded: true, LineType: LineTypeDiscount},
	}
	list := e.GenerateFromPhases(lines, 8000, 20)

	require.Len(t, list, 1)
	assert.Equal(t, "Acompte global", list[0].Title)
	assert.Equal(t, "Signature du contrat", list[0].Milestone)
	assert.Equal(t, 100.0, list[0].Percentage)
	assert.Equal(t, 8000.0, list[0].AmountHT)
	assert.InDelta(t, 9600, list[0].AmountTTC, 1e-6)
	assert.Equal(t, 1, list[0].ScheduleNumber)
}

func TestGenerateFromPhases_BillableWithoutPhases(t *testing.T) {
	e := testEngine()
	lines := []LineItem{{ID: "s", Amount: 1200, IsIncluded: true, LineType: "service"}}
	list := e.GenerateFromPhases(lines, 1200, 20)
	assert.Empty(t, list)
}

func TestGenerateFromPhases_ZeroTotal(t *testing.T) {
	e := testEngine()
	list := e.GenerateFromPhases(phaseLines(), 0, 20)
	for _, inst := range list {
		assert.Equal(t, 0.0, inst.Percentage)
		assert.False(t, math.IsNaN(inst.Percentage) || math.IsInf(inst.Percentage, 0))
	}
}

func TestGenerateFromGroups(t *testing.T) {
	e := testEngine()
	g1, g2 := "g1", "g2"
	lines := []LineItem{
		{ID: g1, LineType: LineTypeGroup, PhaseName: "Conception"},
		{ID: "l1", Amount: 2000, IsIncluded: true, LineType: LineTypePhase, GroupID: &g1},
		{ID: "l2", Amount: 1000, IsIncluded: true, LineType: "service", GroupID: &g1},
		{ID: "l3", Amount: 700, IsIncluded: false, LineType: "service", GroupID: &g1},
		{ID: g2, LineType: LineTypeGroup},
		{ID: "l4", Amount: 5000, IsIncluded: true, LineType: "service", GroupID: &g2},
		{ID: "l5", Amount: -300, IsIncluded: true, LineType: LineTypeDiscount, GroupID: &g2},
		{ID: "l6", Amount: 2000, IsIncluded: true, LineType: "service"},
	}
	list := e.GenerateFromGroups(lines, 10000, 20)

	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, numbers(list))

	assert.Equal(t, "Acompte Conception", list[0].Title)
	assert.Equal(t, 3000.0, list[0].AmountHT)
	assert.InDelta(t, 30, list[0].Percentage, 1e-9)
	assert.Equal(t, []string{"l1", "l2"}, list[0].PhaseIDs)

	assert.Equal(t, "Acompte Groupe 2", list[1].Title)
	assert.Equal(t, 5000.0, list[1].AmountHT)
	assert.Equal(t, []string{"l4"}, list[1].PhaseIDs)

	assert.Equal(t, "Autres prestations", list[2].Title)
	assert.Equal(t, 2000.0, list[2].AmountHT)
	assert.Equal(t, []string{"l6"}, list[2].PhaseIDs)
}

func TestGenerateFromGroups_NoUngroupedRemainder(t *testing.T) {
	e := testEngine()
	g := "g"
	lines := []LineItem{
		{ID: g, LineType: LineTypeGroup, PhaseName: "Lot 1"},
		{ID: "l1", Amount: 900, IsIncluded: true, LineType: "service", GroupID: &g},
	}
	list := e.GenerateFromGroups(lines, 900, 10)
	require.Len(t, list, 1)
	assert.Equal(t, 100.0, list[0].Percentage)
}

func TestGenerateFromGroups_DanglingGroupIsUngrouped(t *testing.T) {
	e := testEngine()
	g, gone := "g", "gone"
	lines := []LineItem{
		{ID: g, LineType: LineTypeGroup, PhaseName: "Lot 2"},
		{ID: "l1", Amount: 1000, IsIncluded: true, LineType: "service", GroupID: &g},
		{ID: "l2", Amount: 2000, IsIncluded: true, LineType: "service", GroupID: &gone},
	}
	list := e.GenerateFromGroups(lines, 3000, 20)
	require.Len(t, list, 2)
	assert.Equal(t, "Acompte Lot 2", list[0].Title)
	assert.Equal(t, "Autres prestations", list[1].Title)
	assert.Equal(t, 2000.0, list[1].AmountHT)
	assert.Equal(t, []string{"l2"}, list[1].PhaseIDs)
}

func TestGenerateFromGroups_FallsBackToPhases(t *testing.T) {
	lines := append(phaseLines(), LineItem{ID: "s", Amount: 100, IsIncluded: true, LineType: "service"})

	fromGroups := testEngine().GenerateFromGroups(lines, 10100, 5.5)
	fromPhases := testEngine().GenerateFromPhases(lines, 10100, 5.5)
	assert.Equal(t, fromPhases, fromGroups)
}

func TestGenerateEqualSplit(t *testing.T) {
	e := testEngine()
	for _, count := range []int{1, 2, 3, 4, 6, 7, 12, 99, 150} {
		t.Run(fmt.Sprint(count), func(t *testing.T) {
			list, err := e.GenerateEqualSplit(count, 12345.67, 20)
			require.NoError(t, err)
			require.Len(t, list, count)

			var sum float64
			for i, inst := range list {
				sum += inst.Percentage
				assert.Equal(t, i+1, inst.ScheduleNumber)
				assert.Equal(t, fmt.Sprintf("Acompte %d", i+1), inst.Title)
				assert.InDelta(t, 12345.67*inst.Percentage/100, inst.AmountHT, 1e-6)
				assert.Empty(t, inst.Milestone)
				assert.Empty(t, inst.PlannedDate)
			}
			assert.Equal(t, 100.0, sum)
		})
	}
}

func TestGenerateEqualSplit_FirstAbsorbsRemainder(t *testing.T) {
	list, err := testEngine().GenerateEqualSplit(3, 9000, 20)
	require.NoError(t, err)
	assert.Equal(t, []float64{34, 33, 33}, percentages(list))
}

func TestGenerateEqualSplit_InvalidCount(t *testing.T) {
	_, err := testEngine().GenerateEqualSplit(0, 100, 20)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestGenerateMonthlySplit(t *testing.T) {
	e := testEngine()
	start := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	list, err := e.GenerateMonthlySplit(3, 9000, 20, start)
	require.NoError(t, err)

	require.Len(t, list, 3)
	assert.Equal(t, []float64{34, 33, 33}, percentages(list))
	assert.Equal(t, "2025-01-31", list[0].PlannedDate)
	assert.Equal(t, "2025-02-28", list[1].PlannedDate)
	assert.Equal(t, "2025-03-31", list[2].PlannedDate)
	assert.Equal(t, "janvier 2025", list[0].Milestone)
	assert.Equal(t, "Facture mois 2", list[1].Title)
	assert.InDelta(t, 3060, list[0].AmountHT, 1e-9)
}

func TestGenerateMonthlySplit_CrossesYearAndLeapFebruary(t *testing.T) {
	e := testEngine().WithLang("en")
	start := time.Date(2023, time.December, 31, 0, 0, 0, 0, time.UTC)
	list, err := e.GenerateMonthlySplit(3, 300, 0, start)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", list[0].PlannedDate)
	assert.Equal(t, "2024-01-31", list[1].PlannedDate)
	assert.Equal(t, "2024-02-29", list[2].PlannedDate)
	assert.Equal(t, "February 2024", list[2].Milestone)
}

func TestStartDate(t *testing.T) {
	e := testEngine()
	expected := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	requested := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, requested, e.StartDate(Document{ExpectedStartDate: &expected}, &requested))
	assert.Equal(t, expected, e.StartDate(Document{ExpectedStartDate: &expected}, nil))
	assert.Equal(t, e.Now(), e.StartDate(Document{}, nil))
}

func TestAddInstallment(t *testing.T) {
	e := testEngine()
	list := e.GenerateFromPhases(phaseLines(), 10000, 20)
	out := e.AddInstallment(list, 10)

	require.Len(t, out, 4)
	require.Len(t, list, 3, "input must not be mutated")
	added := out[3]
	assert.Equal(t, 4, added.ScheduleNumber)
	assert.Equal(t, "Acompte 4", added.Title)
	assert.Zero(t, added.Percentage)
	assert.Zero(t, added.AmountHT)
	assert.Zero(t, added.AmountTTC)
	assert.Equal(t, 10.0, added.VATRate)
	assert.NotEmpty(t, added.ID)
}

func TestRemoveInstallment_Renumbers(t *testing.T) {
	e := testEngine()
	for n := 1; n <= 6; n++ {
		list, err := e.GenerateEqualSplit(n, 1000, 20)
		require.NoError(t, err)
		for _, victim := range list {
			out := RemoveInstallment(list, victim.ID)
			require.Len(t, out, n-1)
			want := make([]int, n-1)
			for i := range want {
				want[i] = i + 1
			}
			assert.Equal(t, want, numbers(out))
			for _, inst := range out {
				assert.NotEqual(t, victim.ID, inst.ID)
			}
		}
	}
}

func TestRemoveInstallment_UnknownID(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	assert.Equal(t, list, RemoveInstallment(list, "missing"))
	assert.Empty(t, RemoveInstallment(nil, "missing"))
}

func TestMoveInstallment(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)

	out := MoveInstallment(list, list[2].ID, 1)
	assert.Equal(t, []string{list[2].ID, list[0].ID, list[1].ID}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, []int{1, 2, 3}, numbers(out))

	out = MoveInstallment(list, list[0].ID, 99)
	assert.Equal(t, list[0].ID, out[2].ID)
	assert.Equal(t, []int{1, 2, 3}, numbers(out))

	assert.Equal(t, list, MoveInstallment(list, "missing", 1))
	assert.Equal(t, "Acompte Esquisse", list[0].Title, "input must not be mutated")
}

func TestUpdateInstallment_Percentage(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	for _, pct := range []float64{0, 12.5, 33.333, 100} {
		out := UpdateInstallment(list, list[1].ID, Patch{Percentage: ptr(pct)}, 10000)
		got := out[1]
		assert.InDelta(t, 10000*pct/100, got.AmountHT, 1e-6)
		assert.InDelta(t, got.AmountHT*1.2, got.AmountTTC, 1e-6)
		assert.Equal(t, list[0], out[0])
		assert.Equal(t, list[2], out[2])
	}
}

func TestUpdateInstallment_AmountHT(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	out := UpdateInstallment(list, list[0].ID, Patch{AmountHT: ptr(2500.0)}, 10000)
	assert.InDelta(t, 25, out[0].Percentage, 1e-9)
	assert.InDelta(t, 3000, out[0].AmountTTC, 1e-6)
	assert.Equal(t, list[1], out[1])

	out = UpdateInstallment(list, list[0].ID, Patch{AmountHT: ptr(2500.0)}, 0)
	assert.Zero(t, out[0].Percentage)
	assert.InDelta(t, 3000, out[0].AmountTTC, 1e-6)
}

func TestUpdateInstallment_PercentageWinsOverAmount(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	out := UpdateInstallment(list, list[0].ID, Patch{Percentage: ptr(10.0), AmountHT: ptr(9999.0)}, 10000)
	assert.Equal(t, 10.0, out[0].Percentage)
	assert.InDelta(t, 1000, out[0].AmountHT, 1e-9)
}

func TestUpdateInstallment_VATRateRecomputesTTC(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	out := UpdateInstallment(list, list[0].ID, Patch{VATRate: ptr(5.5)}, 10000)
	assert.Equal(t, 5.5, out[0].VATRate)
	assert.Equal(t, 4000.0, out[0].AmountHT)
	assert.InDelta(t, 4220, out[0].AmountTTC, 1e-6)
}

func TestUpdateInstallment_PassThroughFields(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	out := UpdateInstallment(list, list[0].ID, Patch{
		Title:       ptr("Acompte à la signature"),
		Description: ptr("30 jours fin de mois"),
		Milestone:   ptr("Signature"),
		PlannedDate: ptr("2025-05-31"),
	}, 10000)
	got := out[0]
	assert.Equal(t, "Acompte à la signature", got.Title)
	assert.Equal(t, "30 jours fin de mois", got.Description)
	assert.Equal(t, "Signature", got.Milestone)
	assert.Equal(t, "2025-05-31", got.PlannedDate)
	assert.Equal(t, list[0].AmountHT, got.AmountHT)
	assert.Equal(t, list[0].Percentage, got.Percentage)
}

func TestUpdateInstallment_TTCFollowsHT(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	list[0].AmountTTC = 1
	out := UpdateInstallment(list, list[0].ID, Patch{Title: ptr("Acompte signature")}, 10000)
	assert.Equal(t, 4000.0, out[0].AmountHT)
	assert.InDelta(t, 4800, out[0].AmountTTC, 1e-6)
	assert.Equal(t, 1.0, list[0].AmountTTC, "input must not be mutated")
}

func TestUpdateInstallment_UnknownID(t *testing.T) {
	list := testEngine().GenerateFromPhases(phaseLines(), 10000, 20)
	out := UpdateInstallment(list, "missing", Patch{Percentage: ptr(50.0)}, 10000)
	assert.Equal(t, list, out)
}

func TestSummarize_CoverageTolerance(t *testing.T) {
	lines := []LineItem{{ID: "l", Amount: 1000, IsIncluded: true, LineType: "service"}}
	doc := Document{TotalAmount: 1000, VATRate: 20}

	s := Summarize([]Installment{{AmountHT: 999.5, Percentage: 99.95}}, doc, lines)
	assert.InDelta(t, 0.5, s.MissingAmount, 1e-9)
	assert.False(t, s.HasCoverageGap)

	s = Summarize([]Installment{{AmountHT: 998.5, Percentage: 99.85}}, doc, lines)
	assert.True(t, s.HasCoverageGap)

	s = Summarize([]Installment{{AmountHT: 1200}}, doc, lines)
	assert.Zero(t, s.MissingAmount)
}

func TestSummarize_BalanceTolerance(t *testing.T) {
	s := Summarize([]Installment{{Percentage: 50}, {Percentage: 50.005}}, Document{}, nil)
	assert.True(t, s.IsBalanced)

	s = Summarize([]Installment{{Percentage: 50}, {Percentage: 50.02}}, Document{}, nil)
	assert.False(t, s.IsBalanced)

	s = Summarize(nil, Document{}, nil)
	assert.False(t, s.IsBalanced)
	assert.Zero(t, s.Count)
}

func TestDepositAmount(t *testing.T) {
	list := []Installment{{AmountHT: 0}, {AmountHT: 2500}}
	tests := []struct {
		name string
		list []Installment
		doc  Document
		want float64
	}{
		{"first installment is the deposit", list, Document{TotalAmount: 10000, RequiresDeposit: true}, 0},
		{"no amounts falls back to percentage", []Installment{{}}, Document{TotalAmount: 10000, RequiresDeposit: true, DepositPercentage: ptr(40.0)}, 4000},
		{"default 30 percent", nil, Document{TotalAmount: 10000, RequiresDeposit: true}, 3000},
		{"deposit not required", list, Document{TotalAmount: 10000, DepositPercentage: ptr(10.0)}, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DepositAmount(tt.list, tt.doc), 1e-9)
		})
	}
}

func TestRegenerate(t *testing.T) {
	e := testEngine()
	doc := Document{TotalAmount: 9000, VATRate: 20, ExpectedStartDate: ptr(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC))}
	existing := []Installment{{ID: "old", ScheduleNumber: 1}}

	_, err := e.Regenerate(existing, doc, nil, Request{Strategy: StrategyEqual, Count: 2}, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)

	list, err := e.Regenerate(existing, doc, nil, Request{Strategy: StrategyEqual, Count: 2}, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50}, percentages(list))

	list, err = e.Regenerate(nil, doc, nil, Request{Strategy: StrategyMonthly, Months: 3}, false)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-31", list[0].PlannedDate)

	list, err = e.Regenerate(nil, doc, phaseLines(), Request{Strategy: StrategyGroups}, false)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = e.Regenerate(nil, doc, nil, Request{Strategy: "weekly"}, false)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = e.Regenerate(nil, doc, nil, Request{Strategy: StrategyMonthly}, false)
	assert.ErrorIs(t, err, ErrInvalidCount)
}
