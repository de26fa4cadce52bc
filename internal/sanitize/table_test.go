package sanitize

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

func TestNormalizeTableStringHeuristics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		kind schema.RowKind
		line string
		want document.Row
	}{
		{
			name: "income four segments",
			kind: schema.RowIncome,
			line: "Usluge čišćenja - 24000 - 100 - 20",
			want: document.Row{"naziv": "Usluge čišćenja", "godisnji_prihod": 24000.0, "broj_prodaja": 100.0, "cijena": 20.0, "mjesecni_prihod": 2000.0},
		},
		{
			name: "income three segments",
			kind: schema.RowIncome,
			line: "1 - Savjetovanje - 12.000,00 €",
			want: document.Row{"naziv": "Savjetovanje", "godisnji_prihod": 12000.0, "broj_prodaja": 0.0, "cijena": 0.0, "mjesecni_prihod": 1000.0},
		},
		{
			name: "income two segments",
			kind: schema.RowIncome,
			line: "Prodaja - 10000",
			want: document.Row{"naziv": "Prodaja", "godisnji_prihod": 10000.0, "broj_prodaja": 0.0, "cijena": 0.0, "mjesecni_prihod": 833.0},
		},
		{
			name: "labor cost four segments",
			kind: schema.RowLaborCost,
			line: "Bruto plaća vlasnika - 14400 - 12 - 1200",
			want: document.Row{"vrsta": "Bruto plaća vlasnika", "godisnji_iznos": 14400.0, "mjesecni_iznos": 1200.0},
		},
		{
			name: "other cost two segments",
			kind: schema.RowOtherCost,
			line: "Knjigovodstvo - 1.200",
			want: document.Row{"naziv": "Knjigovodstvo", "godisnji_iznos": 1200.0, "mjesecni_iznos": 100.0},
		},
		{
			name: "budget amount first monthly",
			kind: schema.RowBudget,
			line: "500 - Zakup prostora - EUR - mjesečno",
			want: document.Row{"vrsta_troska": "Zakup prostora", "iznos": 6000.0},
		},
		{
			name: "budget name first",
			kind: schema.RowBudget,
			line: "Laptop - 1.500 EUR",
			want: document.Row{"vrsta_troska": "Laptop", "iznos": 1500.0},
		},
		{
			name: "equipment ignores extra segments",
			kind: schema.RowEquipment,
			line: "Osobni automobil - 2015 - vlastiti",
			want: document.Row{"naziv": "Osobni automobil"},
		},
		{
			name: "work history three segments",
			kind: schema.RowWorkHistoryPayroll,
			line: "2018-2023 - Čistoća d.o.o. - Voditelj smjene - nadzor",
			want: document.Row{"razdoblje": "2018-2023", "poslodavac": "Čistoća d.o.o.", "zanimanje": "Voditelj smjene - nadzor"},
		},
		{
			name: "work history two segments",
			kind: schema.RowWorkHistoryOther,
			line: "Fotograf - 2 godine",
			want: document.Row{"razdoblje": "2 godine", "poslodavac": "", "zanimanje": "Fotograf"},
		},
		{
			name: "ownership percent",
			kind: schema.RowOwnership,
			line: "Ana Anić - 51%",
			want: document.Row{"ime_prezime": "Ana Anić", "udio": 51.0},
		},
		{
			name: "activity code joins rest",
			kind: schema.RowActivityCode,
			line: "81.21 - Osnovno čišćenje - zgrade",
			want: document.Row{"nkd_kod": "81.21", "naziv_djelatnosti": "Osnovno čišćenje - zgrade"},
		},
		{
			name: "activity simple keeps line",
			kind: schema.RowActivitySimple,
			line: "- 73.11 - Reklamne agencije",
			want: document.Row{"nkd_djelatnost": "73.11 - Reklamne agencije"},
		},
		{
			name: "profit derives dobit",
			kind: schema.RowProfit,
			line: "2026 - 30000 - 18000",
			want: document.Row{"godina": "2026", "prihodi": 30000.0, "troskovi": 18000.0, "dobit": 12000.0},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rows, issue := normalizeTable(tc.kind, []any{tc.line})
			if issue != nil {
				t.Fatalf("unexpected issue: %+v", issue)
			}
			if len(rows) != 1 {
				t.Fatalf("expected one row, got %v", rows)
			}
			if !reflect.DeepEqual(rows[0], tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, rows[0])
			}
		})
	}
}

func TestNormalizeTableObjects(t *testing.T) {
	t.Parallel()

	t.Run("partial object defaults missing columns", func(t *testing.T) {
		t.Parallel()
		rows, issue := normalizeTable(schema.RowBudget, []any{map[string]any{"vrsta_troska": "Laptop"}})
		if issue != nil || len(rows) != 1 {
			t.Fatalf("expected one row without issue, got %v %+v", rows, issue)
		}
		want := document.Row{"vrsta_troska": "Laptop", "iznos": 0.0}
		if !reflect.DeepEqual(rows[0], want) {
			t.Fatalf("expected %v, got %v", want, rows[0])
		}
	})

	t.Run("aliases and typed cells", func(t *testing.T) {
		t.Parallel()
		rows, issue := normalizeTable(schema.RowBudget, map[string]any{"Naziv": "Stroj", "Iznos_bez_PDV": "2.500,00", "napomena": "x"})
		if issue != nil || len(rows) != 1 {
			t.Fatalf("expected one row without issue, got %v %+v", rows, issue)
		}
		want := document.Row{"vrsta_troska": "Stroj", "iznos": 2500.0}
		if !reflect.DeepEqual(rows[0], want) {
			t.Fatalf("expected %v, got %v", want, rows[0])
		}
	})

	t.Run("activity code join", func(t *testing.T) {
		t.Parallel()
		rows, issue := normalizeTable(schema.RowActivitySimple, []any{
			map[string]any{"kod": "73.11", "naziv": "Reklamne agencije"},
			map[string]any{"nkd_kod": "62.01", "naziv_djelatnosti": "Računalno programiranje"},
			map[string]any{"naziv_djelatnosti": "Bez koda"},
		})
		if issue != nil {
			t.Fatalf("unexpected issue: %+v", issue)
		}
		want := []document.Row{
			{"nkd_djelatnost": "73.11 - Reklamne agencije"},
			{"nkd_djelatnost": "62.01 - Računalno programiranje"},
			{"nkd_djelatnost": "Bez koda"},
		}
		if !reflect.DeepEqual(rows, want) {
			t.Fatalf("expected %v, got %v", want, rows)
		}
	})

	t.Run("income derives from price and count", func(t *testing.T) {
		t.Parallel()
		rows, _ := normalizeTable(schema.RowIncome, []any{map[string]any{"naziv": "Kava", "cijena": 2.0, "broj_prodaja": 500.0}})
		want := document.Row{"naziv": "Kava", "cijena": 2.0, "broj_prodaja": 500.0, "mjesecni_prihod": 1000.0, "godisnji_prihod": 12000.0}
		if len(rows) != 1 || !reflect.DeepEqual(rows[0], want) {
			t.Fatalf("expected %v, got %v", want, rows)
		}
	})

	t.Run("supplied columns are not recomputed", func(t *testing.T) {
		t.Parallel()
		in := map[string]any{"naziv": "Kava", "cijena": 2.0, "broj_prodaja": 500.0, "mjesecni_prihod": 900.0, "godisnji_prihod": 0.0}
		rows, _ := normalizeTable(schema.RowIncome, []any{in})
		want := document.Row{"naziv": "Kava", "cijena": 2.0, "broj_prodaja": 500.0, "mjesecni_prihod": 900.0, "godisnji_prihod": 0.0}
		if len(rows) != 1 || !reflect.DeepEqual(rows[0], want) {
			t.Fatalf("expected %v, got %v", want, rows)
		}
	})
}

func TestNormalizeTableDropsAndCounts(t *testing.T) {
	t.Parallel()

	rows, issue := normalizeTable(schema.RowEquipment, []any{
		"Bušilica",
		"",
		nil,
		map[string]any{},
		map[string]any{"naziv": ""},
		map[string]any{"boja": "crvena"},
		42.0,
		[]any{"x"},
		true,
		map[string]any{"oprema": "Kombi"},
	})
	want := []document.Row{{"naziv": "Bušilica"}, {"naziv": "Kombi"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("expected %v, got %v", want, rows)
	}
	if issue == nil || issue.class != document.IssueShapeMismatch || issue.message != "4 rows could not be classified" {
		t.Fatalf("expected one counted table issue, got %+v", issue)
	}
}

func TestNormalizeTableOutOfRangeAmounts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		kind schema.RowKind
		raw  any
		want document.Row
	}{
		{
			name: "derived annual overflows",
			kind: schema.RowIncome,
			raw:  map[string]any{"naziv": "x", "mjesecni_prihod": 1e308},
			want: document.Row{"naziv": "x", "mjesecni_prihod": 1e308, "godisnji_prihod": 0.0, "broj_prodaja": 0.0, "cijena": 0.0},
		},
		{
			name: "price times sales overflows",
			kind: schema.RowIncome,
			raw:  map[string]any{"naziv": "x", "cijena": 1e200, "broj_prodaja": 1e200},
			want: document.Row{"naziv": "x", "mjesecni_prihod": 0.0, "godisnji_prihod": 0.0, "broj_prodaja": 1e200, "cijena": 1e200},
		},
		{
			name: "infinite input",
			kind: schema.RowOtherCost,
			raw:  map[string]any{"naziv": "Najam", "mjesecni_iznos": math.Inf(1)},
			want: document.Row{"naziv": "Najam", "mjesecni_iznos": 0.0, "godisnji_iznos": 0.0},
		},
		{
			name: "number literal beyond float range",
			kind: schema.RowOtherCost,
			raw:  map[string]any{"naziv": "Najam", "godisnji_iznos": json.Number("1e999")},
			want: document.Row{"naziv": "Najam", "mjesecni_iznos": 0.0, "godisnji_iznos": 0.0},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rows, issue := normalizeTable(tc.kind, []any{tc.raw, map[string]any{"naziv": "ok"}})
			if len(rows) != 2 || !reflect.DeepEqual(rows[0], tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, rows)
			}
			if issue == nil || issue.class != document.IssueShapeMismatch || issue.message != "1 rows had amounts out of range" {
				t.Fatalf("expected one out of range issue, got %+v", issue)
			}
			if _, err := json.Marshal(rows); err != nil {
				t.Fatalf("expected encodable rows, got %v", err)
			}
		})
	}

	_, issue := normalizeTable(schema.RowIncome, []any{
		map[string]any{"naziv": "x", "mjesecni_prihod": 1e308},
		map[string]any{"boja": "crvena"},
	})
	if issue == nil || issue.message != "1 rows could not be classified; 1 rows had amounts out of range" {
		t.Fatalf("expected combined table issue, got %+v", issue)
	}
}

func TestNormalizeTableContainerShapes(t *testing.T) {
	t.Parallel()

	rows, issue := normalizeTable(schema.RowEquipment, "Bušilica\n\n- Kombi\r\n")
	if issue != nil || !reflect.DeepEqual(rows, []document.Row{{"naziv": "Bušilica"}, {"naziv": "Kombi"}}) {
		t.Fatalf("unexpected multi-line result: %v %+v", rows, issue)
	}

	for _, raw := range []any{nil, "", "   "} {
		rows, issue := normalizeTable(schema.RowEquipment, raw)
		if issue != nil || rows == nil || len(rows) != 0 {
			t.Fatalf("expected empty table without issue for %#v, got %v %+v", raw, rows, issue)
		}
	}

	for _, raw := range []any{12.0, true} {
		rows, issue := normalizeTable(schema.RowEquipment, raw)
		if issue == nil || issue.message != "expected a table" || len(rows) != 0 {
			t.Fatalf("expected shape mismatch for %#v, got %v %+v", raw, rows, issue)
		}
	}
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "24000", want: 24000, ok: true},
		{in: "24000.5", want: 24000.5, ok: true},
		{in: "24.000,50", want: 24000.5, ok: true},
		{in: "24,000.50", want: 24000.5, ok: true},
		{in: "24 000 €", want: 24000, ok: true},
		{in: "15%", want: 15, ok: true},
		{in: "1.500", want: 1500, ok: true},
		{in: "12,5", want: 12.5, ok: true},
		{in: "-300", want: -300, ok: true},
		{in: "oko 40 komada", want: 40, ok: true},
		{in: "nije poznato", want: 0, ok: false},
	}
	for _, tc := range cases {
		got, ok := parseNumber(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("parseNumber(%q): expected %v %v, got %v %v", tc.in, tc.want, tc.ok, got, ok)
		}
	}

	if !isAmount("5.000 EUR") || isAmount("Laptop") || isAmount("2 laptopa") {
		t.Fatalf("unexpected isAmount classification")
	}
}
