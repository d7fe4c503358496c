package snapshot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rxledger/rxledger/internal/domain/prescription"
)

// ErrEmptyVersion is returned when a document is requested for a version
// that has no items. Cosmetic inputs may be missing; items may not.
var ErrEmptyVersion = errors.New("version has no items")

// DefaultTaxRate is applied when the caller does not configure one.
const DefaultTaxRate = 0.05

// Clinic is the letterhead block. When LogoURL is empty, Name doubles as the
// textual placeholder, so a missing logo asset never blocks rendering.
type Clinic struct {
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// Params are the render-time inputs that are not part of the version itself.
// GeneratedAt is carried into the document verbatim and affects nothing else.
type Params struct {
	Clinic      Clinic
	TaxRate     float64
	Token       string
	GeneratedAt time.Time
}

type Header struct {
	RecordNo    int64     `json:"record_no"`
	PatientName string    `json:"patient_name"`
	Age         *int      `json:"age,omitempty"`
	Gender      *string   `json:"gender,omitempty"`
	Weight      *float64  `json:"weight,omitempty"`
	ContactNo   *string   `json:"contact_no,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Symptoms    *string   `json:"symptoms,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
	VisitDate   time.Time `json:"visit_date"`
}

type ItemRow struct {
	Label        string  `json:"label"`
	DosageForm   *string `json:"dosage_form,omitempty"`
	Dose         *string `json:"dose,omitempty"`
	Duration     *int    `json:"duration,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	Total        float64 `json:"total"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	TaxRate  float64 `json:"tax_rate"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Document is the structured snapshot handed to external encoders. It is a
// pure function of (header, items, params): rendering the same version twice
// yields identical content apart from GeneratedAt.
type Document struct {
	Clinic      Clinic    `json:"clinic"`
	Header      Header    `json:"header"`
	BatchNo     int64     `json:"batch_no"`
	Items       []ItemRow `json:"items"`
	LabTests    []string  `json:"lab_tests,omitempty"`
	Totals      Totals    `json:"totals"`
	Token       string    `json:"token,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Render projects one version of a prescription into a Document. Items must
// arrive in entry order; stored line totals are taken as-is, never recomputed
// from catalog prices.
func Render(p *prescription.Prescription, items []*prescription.PrescriptionItem, params Params) (*Document, error) {
	if len(items) == 0 {
		return nil, ErrEmptyVersion
	}

	rate := params.TaxRate
	if rate == 0 {
		rate = DefaultTaxRate
	}

	doc := &Document{
		Clinic:  params.Clinic,
		BatchNo: items[0].BatchNo,
		Header: Header{
			RecordNo:    p.ID,
			PatientName: p.PatientName,
			Age:         p.Age,
			Gender:      p.Gender,
			Weight:      p.Weight,
			ContactNo:   p.ContactNo,
			Location:    p.Location,
			Symptoms:    p.Symptoms,
			Notes:       p.Notes,
			VisitDate:   p.VisitDate,
		},
		Token:       params.Token,
		GeneratedAt: params.GeneratedAt,
	}

	var subtotal float64
	seenTests := make(map[string]bool)
	for _, it := range items {
		doc.Items = append(doc.Items, ItemRow{
			Label:        itemLabel(it),
			DosageForm:   it.DosageForm,
			Dose:         it.Dose,
			Duration:     it.Duration,
			Instructions: it.Instructions,
			Quantity:     it.Quantity,
			Price:        it.Price,
			Total:        it.Total,
		})
		subtotal += it.Total

		// Lab tests keep first-seen order and drop repeats.
		if it.TestRequired != nil && *it.TestRequired && it.TestName != nil && *it.TestName != "" {
			if !seenTests[*it.TestName] {
				seenTests[*it.TestName] = true
				doc.LabTests = append(doc.LabTests, *it.TestName)
			}
		}
	}

	subtotal = round2(subtotal)
	tax := round2(subtotal * rate)
	doc.Totals = Totals{
		Subtotal: subtotal,
		TaxRate:  rate,
		Tax:      tax,
		Total:    round2(subtotal + tax),
	}
	return doc, nil
}

func itemLabel(it *prescription.PrescriptionItem) string {
	switch {
	case it.MedicineName != nil && *it.MedicineName != "":
		return *it.MedicineName
	case it.TestName != nil && *it.TestName != "":
		return *it.TestName
	default:
		return fmt.Sprintf("item #%d", it.ID)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
