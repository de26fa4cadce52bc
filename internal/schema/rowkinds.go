package schema

import "fmt"

// RowKind selects the fixed column set of a table field.
type RowKind string

const (
	RowIncome             RowKind = "prihodi"
	RowLaborCost          RowKind = "trosak_rada"
	RowOtherCost          RowKind = "ostali_troskovi"
	RowBudget             RowKind = "troskovnik"
	RowInvestment         RowKind = "ulaganja_drugi_izvori"
	RowEquipment          RowKind = "postojeca_oprema"
	RowWorkHistoryPayroll RowKind = "radno_iskustvo_ugovor"
	RowWorkHistoryOther   RowKind = "radno_iskustvo_ostalo"
	RowOwnership          RowKind = "struktura_vlasnistva"
	RowActivityCode       RowKind = "nkd_lista"
	RowActivitySimple     RowKind = "nkd_lista_simple"
	RowProfit             RowKind = "izracun_dobiti"
)

// ColumnType is the canonical cell type of a column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
)

// Column is one declared table column.
type Column struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Type  ColumnType `json:"type"`
}

// Zero returns the default cell for the column type.
func (c Column) Zero() any {
	if c.Type == ColumnNumber {
		return float64(0)
	}
	return ""
}

func text(key, label string) Column   { return Column{Key: key, Label: label, Type: ColumnText} }
func number(key, label string) Column { return Column{Key: key, Label: label, Type: ColumnNumber} }

var workHistoryColumns = []Column{
	text("razdoblje", "Razdoblje zaposlenja"),
	text("poslodavac", "Poslodavac"),
	text("zanimanje", "Zanimanje - opis poslova"),
}

// Column order follows the rendered table order.
var rowKindColumns = map[RowKind][]Column{
	RowIncome: {
		text("naziv", "Naziv proizvoda/usluge"),
		number("cijena", "Cijena pojedinog proizvoda/usluge"),
		number("broj_prodaja", "Broj očekivanih prodaja u jednom mjesecu"),
		number("mjesecni_prihod", "Očekivani mjesečni prihod od prodaje"),
		number("godisnji_prihod", "Očekivani godišnji prihod od prodaje"),
	},
	RowLaborCost: {
		text("vrsta", "Trošak rada"),
		number("mjesecni_iznos", "Mjesečni iznos"),
		number("godisnji_iznos", "Godišnji iznos"),
	},
	RowOtherCost: {
		text("naziv", "Ostali troškovi"),
		number("mjesecni_iznos", "Iznos mjesečni"),
		number("godisnji_iznos", "Iznos godišnji"),
	},
	RowBudget: {
		text("vrsta_troska", "Vrsta troška"),
		number("iznos", "Iznos bez PDV-a"),
	},
	RowInvestment: {
		text("vrsta_ulaganja", "Vrsta ulaganja"),
		number("iznos", "Iznos"),
	},
	RowEquipment: {
		text("naziv", "Postojeća oprema/prijevozna sredstva"),
	},
	RowWorkHistoryPayroll: workHistoryColumns,
	RowWorkHistoryOther:   workHistoryColumns,
	RowOwnership: {
		text("ime_prezime", "Ime i prezime"),
		number("udio", "Postotak"),
	},
	RowActivityCode: {
		text("nkd_kod", "NKD kod"),
		text("naziv_djelatnosti", "Naziv djelatnosti"),
	},
	RowActivitySimple: {
		text("nkd_djelatnost", "NKD kod i naziv djelatnosti"),
	},
	RowProfit: {
		text("godina", "Godina"),
		number("prihodi", "Ukupni prihodi (€)"),
		number("troskovi", "Ukupni troškovi (€)"),
		number("dobit", "Očekivana dobit/dohodak (€)"),
	},
}

// Validate enforces the fixed row kind set.
func (k RowKind) Validate() error {
	if _, ok := rowKindColumns[k]; !ok {
		return fmt.Errorf("unsupported table_type: %q", k)
	}
	return nil
}

// Columns returns the declared column set of the row kind, in render order.
func (k RowKind) Columns() []Column {
	cols := rowKindColumns[k]
	out := make([]Column, len(cols))
	copy(out, cols)
	return out
}

// Column looks up one declared column.
func (k RowKind) Column(key string) (Column, bool) {
	for _, c := range rowKindColumns[k] {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

// RowKinds returns every supported row kind in declaration order.
func RowKinds() []RowKind {
	return []RowKind{
		RowIncome, RowLaborCost, RowOtherCost, RowBudget, RowInvestment, RowEquipment,
		RowWorkHistoryPayroll, RowWorkHistoryOther, RowOwnership, RowActivityCode,
		RowActivitySimple, RowProfit,
	}
}
