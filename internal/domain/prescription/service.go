package prescription

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SaveRequest is the write payload shared by the create and update paths.
// ID is zero for creates.
type SaveRequest struct {
	ID          int64      `json:"id,omitempty"`
	PatientName string     `json:"patient_name"`
	Age         *int       `json:"age,omitempty"`
	Gender      *string    `json:"gender,omitempty"`
	Weight      *float64   `json:"weight,omitempty"`
	ContactNo   *string    `json:"contact_no,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Symptoms    *string    `json:"symptoms,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	VisitDate   string     `json:"visit_date,omitempty"`
	TotalAmount *float64   `json:"total_amount,omitempty"`
	Items       []ItemSpec `json:"items"`
}

func validateSpecs(specs []ItemSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, s := range specs {
		if s.Quantity <= 0 {
			return fmt.Errorf("item %d: quantity must be positive", i)
		}
		if s.Price < 0 {
			return fmt.Errorf("item %d: price must not be negative", i)
		}
	}
	return nil
}

// Append writes the specs as a new version of the prescription, leaving all
// prior versions untouched. Returns the new version's batch number.
func (s *Service) Append(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error) {
	if err := validateSpecs(specs); err != nil {
		return 0, err
	}
	return s.repo.AppendBatch(ctx, prescriptionID, specs)
}

// Overwrite destroys the prescription's entire item history and writes the
// specs as the single remaining version. Callers wanting history preserved
// must use Append instead.
func (s *Service) Overwrite(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error) {
	if err := validateSpecs(specs); err != nil {
		return 0, err
	}
	return s.repo.ReplaceAll(ctx, prescriptionID, specs)
}

func (s *Service) LatestVersion(ctx context.Context, prescriptionID int64) ([]*PrescriptionItem, error) {
	return s.repo.LatestBatch(ctx, prescriptionID)
}

func (s *Service) VersionAt(ctx context.Context, prescriptionID, batchNo int64) ([]*PrescriptionItem, error) {
	return s.repo.ItemsByBatch(ctx, prescriptionID, batchNo)
}

// ListVersions returns the prescription's version history, newest first.
func (s *Service) ListVersions(ctx context.Context, prescriptionID int64) ([]Version, error) {
	if _, err := s.repo.GetHeader(ctx, prescriptionID); err != nil {
		return nil, err
	}
	items, err := s.repo.AllItems(ctx, prescriptionID)
	if err != nil {
		return nil, err
	}
	return BuildVersionIndex(items), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Prescription, error) {
	return s.repo.GetHeader(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListHeaders(ctx, limit, offset)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]PatientSummary, int, error) {
	headers, total, err := s.repo.ListHeaders(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	patients := make([]PatientSummary, 0, len(headers))
	for _, h := range headers {
		patients = append(patients, h.Summary())
	}
	return patients, total, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteCascade(ctx, id)
}

// Save is the create-or-revise path. Without an id it creates the header and
// appends the first version; with an id it updates the header and appends a
// new version on top of the existing history. It never discards versions;
// that is Replace's contract. Header write and item write share one
// transaction, so a failed item write leaves no orphan header behind.
func (s *Service) Save(ctx context.Context, req *SaveRequest) (*Prescription, int64, error) {
	var (
		p       *Prescription
		batchNo int64
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.applyHeader(ctx, req); err != nil {
			return err
		}
		batchNo, err = s.Append(ctx, p.ID, req.Items)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return p, batchNo, nil
}

// Replace is the destructive revision path: header update plus Overwrite of
// the item history, in one transaction.
func (s *Service) Replace(ctx context.Context, id int64, req *SaveRequest) (*Prescription, int64, error) {
	req.ID = id
	var (
		p       *Prescription
		batchNo int64
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.applyHeader(ctx, req); err != nil {
			return err
		}
		batchNo, err = s.Overwrite(ctx, p.ID, req.Items)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return p, batchNo, nil
}

func (s *Service) applyHeader(ctx context.Context, req *SaveRequest) (*Prescription, error) {
	if err := validateSpecs(req.Items); err != nil {
		return nil, err
	}

	if req.ID == 0 {
		if req.PatientName == "" {
			return nil, fmt.Errorf("patient_name is required")
		}
		p := &Prescription{
			PatientName: req.PatientName,
			Age:         req.Age,
			Gender:      req.Gender,
			Weight:      req.Weight,
			ContactNo:   req.ContactNo,
			Location:    req.Location,
			Symptoms:    req.Symptoms,
			Notes:       req.Notes,
			TotalAmount: req.TotalAmount,
		}
		if err := p.SetVisitDate(req.VisitDate); err != nil {
			return nil, err
		}
		if err := s.repo.CreateHeader(ctx, p); err != nil {
			return nil, fmt.Errorf("create prescription: %w", err)
		}
		return p, nil
	}

	p, err := s.repo.GetHeader(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.PatientName != "" {
		p.PatientName = req.PatientName
	}
	if req.Age != nil {
		p.Age = req.Age
	}
	if req.Gender != nil {
		p.Gender = req.Gender
	}
	if req.Weight != nil {
		p.Weight = req.Weight
	}
	if req.ContactNo != nil {
		p.ContactNo = req.ContactNo
	}
	if req.Location != nil {
		p.Location = req.Location
	}
	if req.Symptoms != nil {
		p.Symptoms = req.Symptoms
	}
	if req.Notes != nil {
		p.Notes = req.Notes
	}
	if req.TotalAmount != nil {
		p.TotalAmount = req.TotalAmount
	}
	if req.VisitDate != "" {
		if err := p.SetVisitDate(req.VisitDate); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateHeader(ctx, p); err != nil {
		return nil, fmt.Errorf("update prescription: %w", err)
	}
	return p, nil
}
