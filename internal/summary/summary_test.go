package summary

import (
	"reflect"
	"testing"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

func TestComputeProfitSummary(t *testing.T) {
	t.Parallel()

	doc := document.Document{
		"3.5": document.Section{
			"tablica_prihodi_god1_T2_1": document.Rows([]document.Row{
				{"naziv": "A", "godisnji_prihod": 24000.0},
				{"naziv": "B", "godisnji_prihod": 6000.0},
			}),
			"tablica_prihodi_god2_T2_2": document.Rows([]document.Row{{"naziv": "A", "godisnji_prihod": 40000.0}}),
		},
		"3.6": document.Section{
			"trosak_rada_god1_T3_1":     document.Rows([]document.Row{{"vrsta": "Plaća", "godisnji_iznos": 12000.0}}),
			"ostali_troskovi_god1_T4_1": document.Rows([]document.Row{{"naziv": "Najam", "godisnji_iznos": 8000.0}}),
		},
	}

	got := Compute(doc)
	want := Summary{TaxRate: 0.2, Years: []Year{
		{Income: 30000, LaborCosts: 12000, OtherCosts: 8000, TotalCosts: 20000, ProfitBeforeTax: 10000, Tax: 2000, NetProfit: 8000},
		{Income: 40000, ProfitBeforeTax: 40000, Tax: 8000, NetProfit: 32000},
	}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	lines := got.Lines()
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d", len(lines))
	}
	if !reflect.DeepEqual(lines[4].Values, []string{"8,000.00", "32,000.00"}) {
		t.Fatalf("unexpected net profit line: %+v", lines[4])
	}
}

func TestComputeEmptyDocument(t *testing.T) {
	t.Parallel()

	got := Compute(document.Document{})
	if len(got.Years) != 2 || got.Years[0] != (Year{}) || got.Years[1] != (Year{}) {
		t.Fatalf("expected zero years, got %+v", got)
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:           "0.00",
		12.5:        "12.50",
		999:         "999.00",
		1000:        "1,000.00",
		1234567.891: "1,234,567.89",
		-2500:       "-2,500.00",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestColumnOrder(t *testing.T) {
	t.Parallel()

	rows := []document.Row{
		{"naziv": "A", "cijena": 0.0, "broj_prodaja": 0.0, "mjesecni_prihod": 100.0, "godisnji_prihod": 1200.0},
		{"naziv": "", "napomena": "x"},
	}
	got := ColumnOrder(schema.RowIncome, rows)
	want := []string{"naziv", "cijena", "broj_prodaja", "mjesecni_prihod", "godisnji_prihod", "napomena"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	got = ColumnOrder(schema.RowWorkHistoryPayroll, []document.Row{{"razdoblje": "", "poslodavac": "", "zanimanje": "Kuhar"}})
	if !reflect.DeepEqual(got, []string{"zanimanje"}) {
		t.Fatalf("expected only populated columns, got %v", got)
	}
	if got := ColumnOrder(schema.RowIncome, nil); len(got) != 0 {
		t.Fatalf("expected no columns for empty table, got %v", got)
	}
}
