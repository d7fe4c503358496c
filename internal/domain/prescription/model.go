package prescription

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a prescription, or a requested version of its
// items, does not exist.
var ErrNotFound = errors.New("not found")

// Prescription maps to the prescriptions table. It is the patient-facing
// header of a clinical record; the actual medication content lives in
// versioned batches of PrescriptionItem rows.
type Prescription struct {
	ID          int64     `db:"id" json:"id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	Age         *int      `db:"age" json:"age,omitempty"`
	Gender      *string   `db:"gender" json:"gender,omitempty"`
	Weight      *float64  `db:"weight" json:"weight,omitempty"`
	ContactNo   *string   `db:"contact_no" json:"contact_no,omitempty"`
	Location    *string   `db:"location" json:"location,omitempty"`
	Symptoms    *string   `db:"symptoms" json:"symptoms,omitempty"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	VisitDate   time.Time `db:"visit_date" json:"visit_date"`
	TotalAmount *float64  `db:"total_amount" json:"total_amount,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// PrescriptionItem maps to the prescription_items table. One row is a single
// line item of one version of a prescription.
//
// BatchNo is the version marker: every item written by one append call
// carries the same batch number, and the number is immutable once assigned.
// Items are never updated in place; a new batch supersedes the old one
// without touching it.
type PrescriptionItem struct {
	ID             int64     `db:"id" json:"id"`
	PrescriptionID int64     `db:"prescription_id" json:"prescription_id"`
	MedicineID     *int64    `db:"medicine_id" json:"medicine_id,omitempty"`
	Quantity       int       `db:"quantity" json:"quantity"`
	Price          float64   `db:"price" json:"price"`
	Total          float64   `db:"total" json:"total"`
	Dose           *string   `db:"dose" json:"dose,omitempty"`
	Duration       *int      `db:"duration" json:"duration,omitempty"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	TestRequired   *bool     `db:"test_required" json:"test_required,omitempty"`
	TestName       *string   `db:"test_name" json:"test_name,omitempty"`
	BatchNo        int64     `db:"batch_no" json:"batch_no"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	// Display fields hydrated from the medicine catalog at read time.
	// The catalog itself is managed elsewhere; only the lookup happens here.
	MedicineName *string `db:"-" json:"medicine_name,omitempty"`
	DosageForm   *string `db:"-" json:"dosage_form,omitempty"`
}

// ItemSpec describes one line item to be written by Append or Overwrite.
// Total is stored as given and treated as authoritative from then on; it is
// never recomputed from the current catalog price.
type ItemSpec struct {
	MedicineID   *int64  `json:"medicine_id,omitempty"`
	Quantity     int     `json:"quantity"`
	Price        float64 `json:"price"`
	Total        float64 `json:"total"`
	Dose         *string `json:"dose,omitempty"`
	Duration     *int    `json:"duration,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	TestRequired *bool   `json:"test_required,omitempty"`
	TestName     *string `json:"test_name,omitempty"`
}

// Version summarizes one batch of a prescription's history. CreatedAt is a
// display timestamp only; ordering and identity come from BatchNo.
type Version struct {
	BatchNo   int64     `json:"batch_no"`
	CreatedAt time.Time `json:"created_at"`
	ItemCount int       `json:"item_count"`
}

// PatientSummary is the flattened header view used by patient listings.
type PatientSummary struct {
	ID          int64     `json:"id"`
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

// SetVisitDate parses a visit date given as an ISO date or an RFC 3339
// timestamp. Empty input defaults to today.
func (p *Prescription) SetVisitDate(s string) error {
	if s == "" {
		p.VisitDate = time.Now().UTC().Truncate(24 * time.Hour)
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			p.VisitDate = t
			return nil
		}
	}
	return fmt.Errorf("invalid visit_date: %q", s)
}

// Summary returns the patient-facing view of a prescription header.
func (p *Prescription) Summary() PatientSummary {
	return PatientSummary{
		ID:          p.ID,
		PatientName: p.PatientName,
		Age:         p.Age,
		Gender:      p.Gender,
		Weight:      p.Weight,
		ContactNo:   p.ContactNo,
		Location:    p.Location,
		Symptoms:    p.Symptoms,
		Notes:       p.Notes,
		VisitDate:   p.VisitDate,
	}
}
