package sanitize

import (
	"math"
	"strings"

	"github.com/tiger/hzz-draft-assistant/api/document"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// segmentSeparator splits a prose table line into positional segments.
const segmentSeparator = " - "

// layout maps the segments of one line onto columns. It applies when the line
// has at least minSegments segments and match (if set) accepts them. A blank
// column skips its segment; joinRest folds every remaining segment into the
// last column.
type layout struct {
	minSegments int
	columns     []string
	joinRest    bool
	match       func(parts []string) bool
	// scale multiplies every number column after assignment.
	scale func(parts []string) float64
}

// joinRule concatenates two object keys into one display column.
type joinRule struct {
	target string
	first  []string
	second []string
}

// rowSpec is everything the normalizer knows about one row kind.
type rowSpec struct {
	aliases map[string]string
	join    *joinRule
	layouts []layout
	// derive fills computed columns. present lists the columns the raw row
	// supplied; derived values never overwrite them.
	derive func(row document.Row, present map[string]bool)
}

func cols(keys ...string) []string { return keys }

var workHistorySpec = rowSpec{
	aliases: map[string]string{
		"period":       "razdoblje",
		"datum":        "razdoblje",
		"trajanje":     "razdoblje",
		"tvrtka":       "poslodavac",
		"employer":     "poslodavac",
		"firma":        "poslodavac",
		"pozicija":     "zanimanje",
		"radno mjesto": "zanimanje",
		"opis":         "zanimanje",
		"opis poslova": "zanimanje",
	},
	layouts: []layout{
		{minSegments: 3, columns: cols("razdoblje", "poslodavac", "zanimanje"), joinRest: true},
		{minSegments: 2, columns: cols("zanimanje", "razdoblje")},
		{minSegments: 1, columns: cols("zanimanje")},
	},
}

var rowSpecs = map[schema.RowKind]rowSpec{
	schema.RowIncome: {
		aliases: map[string]string{
			"naziv proizvoda":       "naziv",
			"proizvod":              "naziv",
			"usluga":                "naziv",
			"name":                  "naziv",
			"jedinicna cijena":      "cijena",
			"cijena po jedinici":    "cijena",
			"price":                 "cijena",
			"kolicina":              "broj_prodaja",
			"broj":                  "broj_prodaja",
			"broj prodaja mjesecno": "broj_prodaja",
			"mjesecno":              "mjesecni_prihod",
			"mjesecni":              "mjesecni_prihod",
			"godisnje":              "godisnji_prihod",
			"godisnji":              "godisnji_prihod",
			"prihod":                "godisnji_prihod",
			"iznos":                 "godisnji_prihod",
		},
		layouts: []layout{
			{minSegments: 4, columns: cols("naziv", "godisnji_prihod", "broj_prodaja", "cijena")},
			{minSegments: 3, columns: cols("", "naziv", "godisnji_prihod")},
			{minSegments: 2, columns: cols("naziv", "godisnji_prihod")},
			{minSegments: 1, columns: cols("naziv")},
		},
		derive: deriveIncome,
	},
	schema.RowLaborCost: {
		aliases: map[string]string{
			"naziv":    "vrsta",
			"opis":     "vrsta",
			"pozicija": "vrsta",
			"mjesecno": "mjesecni_iznos",
			"mjesecni": "mjesecni_iznos",
			"placa":    "mjesecni_iznos",
			"godisnje": "godisnji_iznos",
			"godisnji": "godisnji_iznos",
			"iznos":    "godisnji_iznos",
		},
		layouts: []layout{
			{minSegments: 4, columns: cols("vrsta", "godisnji_iznos", "", "mjesecni_iznos")},
			{minSegments: 3, columns: cols("", "vrsta", "godisnji_iznos")},
			{minSegments: 2, columns: cols("vrsta", "godisnji_iznos")},
			{minSegments: 1, columns: cols("vrsta")},
		},
		derive: deriveMonthly("mjesecni_iznos", "godisnji_iznos"),
	},
	schema.RowOtherCost: {
		aliases: map[string]string{
			"vrsta":    "naziv",
			"opis":     "naziv",
			"trosak":   "naziv",
			"mjesecno": "mjesecni_iznos",
			"mjesecni": "mjesecni_iznos",
			"godisnje": "godisnji_iznos",
			"godisnji": "godisnji_iznos",
			"iznos":    "godisnji_iznos",
		},
		layouts: []layout{
			{minSegments: 4, columns: cols("naziv", "godisnji_iznos")},
			{minSegments: 3, columns: cols("", "naziv", "godisnji_iznos")},
			{minSegments: 2, columns: cols("naziv", "godisnji_iznos")},
			{minSegments: 1, columns: cols("naziv")},
		},
		derive: deriveMonthly("mjesecni_iznos", "godisnji_iznos"),
	},
	schema.RowBudget: {
		aliases: map[string]string{
			"naziv":          "vrsta_troska",
			"opis":           "vrsta_troska",
			"vrsta":          "vrsta_troska",
			"stavka":         "vrsta_troska",
			"iznos bez pdv":  "iznos",
			"iznos bez pdva": "iznos",
			"cijena":         "iznos",
			"amount":         "iznos",
		},
		layouts: []layout{
			{minSegments: 2, columns: cols("iznos", "vrsta_troska"), match: amountFirst, scale: monthlyToAnnual},
			{minSegments: 2, columns: cols("vrsta_troska", "iznos")},
			{minSegments: 1, columns: cols("vrsta_troska")},
		},
	},
	schema.RowInvestment: {
		aliases: map[string]string{
			"naziv":      "vrsta_ulaganja",
			"vrsta":      "vrsta_ulaganja",
			"opis":       "vrsta_ulaganja",
			"vrijednost": "iznos",
			"amount":     "iznos",
		},
		layouts: []layout{
			{minSegments: 2, columns: cols("vrsta_ulaganja", "iznos")},
			{minSegments: 1, columns: cols("vrsta_ulaganja")},
		},
	},
	schema.RowEquipment: {
		aliases: map[string]string{
			"oprema": "naziv",
			"opis":   "naziv",
			"vrsta":  "naziv",
		},
		layouts: []layout{
			{minSegments: 1, columns: cols("naziv")},
		},
	},
	schema.RowWorkHistoryPayroll: workHistorySpec,
	schema.RowWorkHistoryOther:   workHistorySpec,
	schema.RowOwnership: {
		aliases: map[string]string{
			"ime":        "ime_prezime",
			"vlasnik":    "ime_prezime",
			"naziv":      "ime_prezime",
			"postotak":   "udio",
			"udio posto": "udio",
		},
		layouts: []layout{
			{minSegments: 2, columns: cols("ime_prezime", "udio")},
			{minSegments: 1, columns: cols("ime_prezime")},
		},
	},
	schema.RowActivityCode: {
		aliases: map[string]string{
			"kod":        "nkd_kod",
			"sifra":      "nkd_kod",
			"naziv":      "naziv_djelatnosti",
			"djelatnost": "naziv_djelatnosti",
		},
		layouts: []layout{
			{minSegments: 2, columns: cols("nkd_kod", "naziv_djelatnosti"), joinRest: true},
			{minSegments: 1, columns: cols("naziv_djelatnosti")},
		},
	},
	schema.RowActivitySimple: {
		aliases: map[string]string{
			"djelatnost": "nkd_djelatnost",
			"nkd":        "nkd_djelatnost",
		},
		join: &joinRule{
			target: "nkd_djelatnost",
			first:  []string{"kod", "nkd_kod", "sifra"},
			second: []string{"naziv", "naziv_djelatnosti"},
		},
		layouts: []layout{
			{minSegments: 1, columns: cols("nkd_djelatnost"), joinRest: true},
		},
	},
	schema.RowProfit: {
		aliases: map[string]string{
			"year":    "godina",
			"prihod":  "prihodi",
			"trosak":  "troskovi",
			"rashodi": "troskovi",
			"dobitak": "dobit",
			"dohodak": "dobit",
			"profit":  "dobit",
		},
		layouts: []layout{
			{minSegments: 3, columns: cols("godina", "prihodi", "troskovi")},
			{minSegments: 1, columns: cols("godina")},
		},
		derive: deriveProfit,
	},
}

func amountFirst(parts []string) bool {
	return isAmount(parts[0]) && !isAmount(parts[1])
}

// monthlyToAnnual scales an amount-first budget line flagged as monthly.
func monthlyToAnnual(parts []string) float64 {
	for _, part := range parts[2:] {
		key := foldKey(part)
		if strings.HasPrefix(key, "mjesec") || key == "monthly" {
			return 12
		}
	}
	return 1
}

func deriveIncome(row document.Row, present map[string]bool) {
	annual := row.Number("godisnji_prihod")
	monthly := row.Number("mjesecni_prihod")
	if !present["godisnji_prihod"] && annual == 0 {
		if monthly == 0 && !present["mjesecni_prihod"] {
			monthly = row.Number("cijena") * row.Number("broj_prodaja")
			row["mjesecni_prihod"] = monthly
		}
		annual = monthly * 12
		row["godisnji_prihod"] = annual
	}
	if !present["mjesecni_prihod"] && monthly == 0 {
		row["mjesecni_prihod"] = math.Round(annual / 12)
	}
}

func deriveMonthly(monthlyCol, annualCol string) func(document.Row, map[string]bool) {
	return func(row document.Row, present map[string]bool) {
		annual := row.Number(annualCol)
		monthly := row.Number(monthlyCol)
		switch {
		case !present[monthlyCol] && monthly == 0:
			row[monthlyCol] = math.Round(annual / 12)
		case !present[annualCol] && annual == 0:
			row[annualCol] = monthly * 12
		}
	}
}

func deriveProfit(row document.Row, present map[string]bool) {
	if !present["dobit"] {
		row["dobit"] = row.Number("prihodi") - row.Number("troskovi")
	}
}
