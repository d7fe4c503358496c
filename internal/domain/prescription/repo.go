package prescription

import "context"

// Repository is the storage contract for prescriptions and their versioned
// items. AppendBatch and ReplaceAll must be atomic: either every item of the
// call is committed under one batch number, or none are. Batch numbers are
// strictly monotonically increasing per prescription, including across
// ReplaceAll calls.
type Repository interface {
	// InTx runs fn inside one storage transaction; repository calls made
	// with the context fn receives join it.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Header operations
	CreateHeader(ctx context.Context, p *Prescription) error
	GetHeader(ctx context.Context, id int64) (*Prescription, error)
	UpdateHeader(ctx context.Context, p *Prescription) error
	ListHeaders(ctx context.Context, limit, offset int) ([]*Prescription, int, error)
	DeleteCascade(ctx context.Context, id int64) error

	// Item ledger operations
	AppendBatch(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error)
	ReplaceAll(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error)
	LatestBatch(ctx context.Context, prescriptionID int64) ([]*PrescriptionItem, error)
	ItemsByBatch(ctx context.Context, prescriptionID, batchNo int64) ([]*PrescriptionItem, error)
	AllItems(ctx context.Context, prescriptionID int64) ([]*PrescriptionItem, error)
}
