// Package intake holds the applicant questionnaire that seeds a draft: the
// personal section, the applicant-owned fields of generated sections and the
// prompt sent to draft providers.
package intake

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/tiger/hzz-draft-assistant/internal/sanitize"
	"github.com/tiger/hzz-draft-assistant/internal/schema"
)

// ErrInvalidIntake reports questionnaire data that cannot seed a draft.
var ErrInvalidIntake = errors.New("invalid intake")

// Data is the intake questionnaire.
type Data struct {
	Ime                 string `json:"ime"`
	Prezime             string `json:"prezime"`
	OIB                 string `json:"oib"`
	KontaktEmail        string `json:"kontakt_email"`
	KontaktTel          string `json:"kontakt_tel"`
	CVText              string `json:"cv_text,omitempty"`
	RadnoIskustvo       string `json:"radno_iskustvo,omitempty"`
	PoslovnaIdeja       string `json:"poslovna_ideja"`
	VrstaDjelatnosti    string `json:"vrsta_djelatnosti"`
	VrstaSubjekta       string `json:"vrsta_subjekta"`
	Lokacija            string `json:"lokacija"`
	IznosTrazenePotpore string `json:"iznos_trazene_potpore"`
	DodatneInformacije  string `json:"dodatne_informacije,omitempty"`
}

// Keys returns every intake key a catalog field may reference.
func Keys() []string {
	return []string{
		"ime", "prezime", "oib", "kontakt_email", "kontakt_tel", "cv_text", "radno_iskustvo",
		"poslovna_ideja", "vrsta_djelatnosti", "vrsta_subjekta", "lokacija",
		"iznos_trazene_potpore", "dodatne_informacije",
	}
}

// Value returns the answer stored under an intake key.
func (d Data) Value(key string) (string, bool) {
	switch key {
	case "ime":
		return d.Ime, true
	case "prezime":
		return d.Prezime, true
	case "oib":
		return d.OIB, true
	case "kontakt_email":
		return d.KontaktEmail, true
	case "kontakt_tel":
		return d.KontaktTel, true
	case "cv_text":
		return d.CVText, true
	case "radno_iskustvo":
		return d.RadnoIskustvo, true
	case "poslovna_ideja":
		return d.PoslovnaIdeja, true
	case "vrsta_djelatnosti":
		return d.VrstaDjelatnosti, true
	case "vrsta_subjekta":
		return d.VrstaSubjekta, true
	case "lokacija":
		return d.Lokacija, true
	case "iznos_trazene_potpore":
		return d.IznosTrazenePotpore, true
	case "dodatne_informacije":
		return d.DodatneInformacije, true
	default:
		return "", false
	}
}

// Set stores value under an intake key and reports whether the key exists.
func (d *Data) Set(key, value string) bool {
	var p *string
	switch key {
	case "ime":
		p = &d.Ime
	case "prezime":
		p = &d.Prezime
	case "oib":
		p = &d.OIB
	case "kontakt_email":
		p = &d.KontaktEmail
	case "kontakt_tel":
		p = &d.KontaktTel
	case "cv_text":
		p = &d.CVText
	case "radno_iskustvo":
		p = &d.RadnoIskustvo
	case "poslovna_ideja":
		p = &d.PoslovnaIdeja
	case "vrsta_djelatnosti":
		p = &d.VrstaDjelatnosti
	case "vrsta_subjekta":
		p = &d.VrstaSubjekta
	case "lokacija":
		p = &d.Lokacija
	case "iznos_trazene_potpore":
		p = &d.IznosTrazenePotpore
	case "dodatne_informacije":
		p = &d.DodatneInformacije
	default:
		return false
	}
	*p = value
	return true
}

func (d Data) trimmed() Data {
	for _, p := range []*string{
		&d.Ime, &d.Prezime, &d.OIB, &d.KontaktEmail, &d.KontaktTel, &d.CVText, &d.RadnoIskustvo,
		&d.PoslovnaIdeja, &d.VrstaDjelatnosti, &d.VrstaSubjekta, &d.Lokacija,
		&d.IznosTrazenePotpore, &d.DodatneInformacije,
	} {
		*p = strings.TrimSpace(*p)
	}
	return d
}

// Validate checks the answers that a draft depends on.
func (d Data) Validate() error {
	d = d.trimmed()
	if d.PoslovnaIdeja == "" {
		return fmt.Errorf("%w: poslovna_ideja is required", ErrInvalidIntake)
	}
	if d.OIB != "" && !ValidOIB(d.OIB) {
		return fmt.Errorf("%w: oib %q is not a valid OIB", ErrInvalidIntake, d.OIB)
	}
	if d.KontaktEmail != "" {
		if _, err := mail.ParseAddress(d.KontaktEmail); err != nil {
			return fmt.Errorf("%w: kontakt_email: %v", ErrInvalidIntake, err)
		}
	}
	if d.IznosTrazenePotpore != "" {
		amount, ok := sanitize.ParseAmount(d.IznosTrazenePotpore)
		if !ok || amount < 0 {
			return fmt.Errorf("%w: iznos_trazene_potpore %q is not an amount", ErrInvalidIntake, d.IznosTrazenePotpore)
		}
	}
	return nil
}

// Normalize validates d and returns it with answers trimmed, the amount in
// canonical decimal form and enumerated answers mapped onto the option
// values of the catalog fields they seed.
func (d Data) Normalize(reg *schema.Registry) (Data, error) {
	if err := d.Validate(); err != nil {
		return Data{}, err
	}
	d = d.trimmed()
	if d.IznosTrazenePotpore != "" {
		amount, _ := sanitize.ParseAmount(d.IznosTrazenePotpore)
		d.IznosTrazenePotpore = strconv.FormatFloat(amount, 'f', -1, 64)
	}
	for _, section := range reg.Sections() {
		for _, field := range section.Fields {
			if field.Intake == "" || field.Kind != schema.KindSingleChoice {
				continue
			}
			raw, _ := d.Value(field.Intake)
			if raw == "" {
				continue
			}
			value, ok := sanitize.ResolveOption(field, raw)
			if !ok {
				return Data{}, fmt.Errorf("%w: %s %q is not one of the %s options", ErrInvalidIntake, field.Intake, raw, field.Label)
			}
			d.set(field.Intake, value)
		}
	}
	return d, nil
}

func (d *Data) set(key, value string) {
	switch key {
	case "vrsta_subjekta":
		d.VrstaSubjekta = value
	case "vrsta_djelatnosti":
		d.VrstaDjelatnosti = value
	}
}

// ValidOIB checks an 11-digit OIB with the ISO 7064 MOD 11,10 check digit.
func ValidOIB(oib string) bool {
	if len(oib) != 11 {
		return false
	}
	product := 10
	for i := 0; i < 10; i++ {
		c := oib[i]
		if c < '0' || c > '9' {
			return false
		}
		sum := (int(c-'0') + product) % 10
		if sum == 0 {
			sum = 10
		}
		product = (sum * 2) % 11
	}
	last := oib[10]
	if last < '0' || last > '9' {
		return false
	}
	check := 11 - product
	if check == 10 {
		check = 0
	}
	return int(last-'0') == check
}
