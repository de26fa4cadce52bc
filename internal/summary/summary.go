package summary

import (
	"math"
	"strconv"
	"strings"

	"github.com/tiger/hzz-draft-assistant/api/document"
)

// TaxRate is the indicative profit tax used by the form, not a statutory rate.
const TaxRate = 0.20

type yearTables struct {
	income string
	labor  string
	other  string
}

var years = [2]yearTables{
	{income: "tablica_prihodi_god1_T2_1", labor: "trosak_rada_god1_T3_1", other: "ostali_troskovi_god1_T4_1"},
	{income: "tablica_prihodi_god2_T2_2", labor: "trosak_rada_god2_T3_2", other: "ostali_troskovi_god2_T4_2"},
}

// Sections holding the income and cost tables.
const (
	IncomeSection = "3.5"
	CostSection   = "3.6"
)

// Year is the profit calculation for one business year.
type Year struct {
	Income          float64 `json:"income"`
	LaborCosts      float64 `json:"labor_costs"`
	OtherCosts      float64 `json:"other_costs"`
	TotalCosts      float64 `json:"total_costs"`
	ProfitBeforeTax float64 `json:"profit_before_tax"`
	Tax             float64 `json:"tax"`
	NetProfit       float64 `json:"net_profit"`
}

// Summary is the computed profit table rendered for the profit summary field.
type Summary struct {
	TaxRate float64 `json:"tax_rate"`
	Years   []Year  `json:"years"`
}

// Compute derives the two-year profit summary from the income and cost tables
// of a sanitized document. Missing tables count as zero.
func Compute(doc document.Document) Summary {
	out := Summary{TaxRate: TaxRate, Years: make([]Year, 0, len(years))}
	for _, tables := range years {
		y := Year{
			Income:     sumColumn(doc, IncomeSection, tables.income, "godisnji_prihod"),
			LaborCosts: sumColumn(doc, CostSection, tables.labor, "godisnji_iznos"),
			OtherCosts: sumColumn(doc, CostSection, tables.other, "godisnji_iznos"),
		}
		y.TotalCosts = y.LaborCosts + y.OtherCosts
		y.ProfitBeforeTax = y.Income - y.TotalCosts
		y.Tax = y.ProfitBeforeTax * TaxRate
		y.NetProfit = y.ProfitBeforeTax - y.Tax
		out.Years = append(out.Years, y)
	}
	return out
}

func sumColumn(doc document.Document, section, field, column string) float64 {
	value, ok := doc[section][field]
	if !ok {
		return 0
	}
	total := 0.0
	for _, row := range value.Rows {
		total += row.Number(column)
	}
	return total
}

// Line is one labelled row of the rendered summary table.
type Line struct {
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

// Lines renders the summary in the order and wording of the form.
func (s Summary) Lines() []Line {
	pick := func(f func(Year) float64) []string {
		out := make([]string, 0, len(s.Years))
		for _, y := range s.Years {
			out = append(out, FormatAmount(f(y)))
		}
		return out
	}
	return []Line{
		{Label: "Godišnji prihodi od prodaje (tablica 2.1. i 2.2.)", Values: pick(func(y Year) float64 { return y.Income })},
		{Label: "Ukupni godišnji troškovi (tablica 3.1. i 3.2. + 4.1. i 4.2.)", Values: pick(func(y Year) float64 { return y.TotalCosts })},
		{Label: "Očekivana dobit prije oporezivanja (redak 1. umanjiti za redak 2.)", Values: pick(func(y Year) float64 { return y.ProfitBeforeTax })},
		{Label: "Porez na dobit (redak 3. pomnožiti s 0,20)", Values: pick(func(y Year) float64 { return y.Tax })},
		{Label: "Očekivana neto dobit (redak 3. umanjiti za redak 4.)", Values: pick(func(y Year) float64 { return y.NetProfit })},
	}
}

// FormatAmount renders v with two decimals and comma thousands grouping,
// e.g. 24000 -> "24,000.00".
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if v < 0 && s != "0.00" {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
