package prescription

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxledger/rxledger/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.RunInTx(ctx, r.pool, fn)
}

const headerCols = `id, patient_name, age, gender, weight, contact_no, location,
	symptoms, notes, visit_date, total_amount, created_at`

func scanHeader(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientName, &p.Age, &p.Gender, &p.Weight, &p.ContactNo,
		&p.Location, &p.Symptoms, &p.Notes, &p.VisitDate, &p.TotalAmount, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) CreateHeader(ctx context.Context, p *Prescription) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (patient_name, age, gender, weight, contact_no,
			location, symptoms, notes, visit_date, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at`,
		p.PatientName, p.Age, p.Gender, p.Weight, p.ContactNo,
		p.Location, p.Symptoms, p.Notes, p.VisitDate, p.TotalAmount).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *repoPG) GetHeader(ctx context.Context, id int64) (*Prescription, error) {
	return scanHeader(r.conn(ctx).QueryRow(ctx,
		`SELECT `+headerCols+` FROM prescriptions WHERE id = $1`, id))
}

func (r *repoPG) UpdateHeader(ctx context.Context, p *Prescription) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET patient_name=$2, age=$3, gender=$4, weight=$5,
			contact_no=$6, location=$7, symptoms=$8, notes=$9, visit_date=$10,
			total_amount=$11
		WHERE id = $1`,
		p.ID, p.PatientName, p.Age, p.Gender, p.Weight,
		p.ContactNo, p.Location, p.Symptoms, p.Notes, p.VisitDate, p.TotalAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListHeaders returns prescriptions ordered by most recent item activity,
// so records with freshly written batches surface first.
func (r *repoPG) ListHeaders(ctx context.Context, limit, offset int) ([]*Prescription, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM prescriptions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.Query(ctx, `
		SELECT p.id, p.patient_name, p.age, p.gender, p.weight, p.contact_no,
			p.location, p.symptoms, p.notes, p.visit_date, p.total_amount, p.created_at
		FROM prescriptions p
		LEFT JOIN prescription_items i ON i.prescription_id = p.id
		GROUP BY p.id
		ORDER BY MAX(i.created_at) DESC NULLS LAST, p.id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var headers []*Prescription
	for rows.Next() {
		p, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		headers = append(headers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return headers, total, nil
}

// DeleteCascade removes the prescription and every item of every version in
// one transaction. The item delete is explicit rather than left to a
// foreign-key cascade.
func (r *repoPG) DeleteCascade(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if _, err := q.Exec(ctx, `DELETE FROM prescription_items WHERE prescription_id = $1`, id); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `DELETE FROM prescriptions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendBatch writes all specs under one fresh batch number inside a single
// transaction. The prescription row is locked first, so concurrent appends
// on the same prescription serialize and the max-plus-one batch number stays
// strictly monotonic.
func (r *repoPG) AppendBatch(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error) {
	var batchNo int64
	err := db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if err := lockHeader(ctx, q, prescriptionID); err != nil {
			return err
		}
		var err error
		batchNo, err = nextBatchNo(ctx, q, prescriptionID)
		if err != nil {
			return err
		}
		return insertBatch(ctx, q, prescriptionID, batchNo, specs)
	})
	if err != nil {
		return 0, err
	}
	return batchNo, nil
}

// ReplaceAll deletes every existing item and writes the specs as the single
// surviving version. The new batch number is computed before the delete so
// markers never repeat even across destructive rewrites.
func (r *repoPG) ReplaceAll(ctx context.Context, prescriptionID int64, specs []ItemSpec) (int64, error) {
	var batchNo int64
	err := db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)
		if err := lockHeader(ctx, q, prescriptionID); err != nil {
			return err
		}
		var err error
		batchNo, err = nextBatchNo(ctx, q, prescriptionID)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM prescription_items WHERE prescription_id = $1`, prescriptionID); err != nil {
			return err
		}
		return insertBatch(ctx, q, prescriptionID, batchNo, specs)
	})
	if err != nil {
		return 0, err
	}
	return batchNo, nil
}

func lockHeader(ctx context.Context, q queryable, prescriptionID int64) error {
	var id int64
	err := q.QueryRow(ctx, `SELECT id FROM prescriptions WHERE id = $1 FOR UPDATE`, prescriptionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func nextBatchNo(ctx context.Context, q queryable, prescriptionID int64) (int64, error) {
	var next int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(MAX(batch_no), 0) + 1 FROM prescription_items WHERE prescription_id = $1`,
		prescriptionID).Scan(&next)
	return next, err
}

func insertBatch(ctx context.Context, q queryable, prescriptionID, batchNo int64, specs []ItemSpec) error {
	for _, s := range specs {
		_, err := q.Exec(ctx, `
			INSERT INTO prescription_items (prescription_id, medicine_id, quantity,
				price, total, dose, duration, instructions, test_required, test_name, batch_no)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			prescriptionID, s.MedicineID, s.Quantity,
			s.Price, s.Total, s.Dose, s.Duration, s.Instructions, s.TestRequired, s.TestName, batchNo)
		if err != nil {
			return err
		}
	}
	return nil
}

const itemCols = `i.id, i.prescription_id, i.medicine_id, i.quantity, i.price, i.total,
	i.dose, i.duration, i.instructions, i.test_required, i.test_name, i.batch_no, i.created_at,
	m.medicine_name, m.dosage_form`

func scanItems(rows pgx.Rows) ([]*PrescriptionItem, error) {
	var items []*PrescriptionItem
	for rows.Next() {
		var it PrescriptionItem
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID, &it.Quantity,
			&it.Price, &it.Total, &it.Dose, &it.Duration, &it.Instructions,
			&it.TestRequired, &it.TestName, &it.BatchNo, &it.CreatedAt,
			&it.MedicineName, &it.DosageForm); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repoPG) LatestBatch(ctx context.Context, prescriptionID int64) ([]*PrescriptionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+`
		FROM prescription_items i
		LEFT JOIN medicines m ON m.id = i.medicine_id
		WHERE i.prescription_id = $1
		  AND i.batch_no = (SELECT MAX(batch_no) FROM prescription_items
		                    WHERE prescription_id = $1)
		ORDER BY i.id ASC`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

func (r *repoPG) ItemsByBatch(ctx context.Context, prescriptionID, batchNo int64) ([]*PrescriptionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+`
		FROM prescription_items i
		LEFT JOIN medicines m ON m.id = i.medicine_id
		WHERE i.prescription_id = $1 AND i.batch_no = $2
		ORDER BY i.id ASC`, prescriptionID, batchNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

func (r *repoPG) AllItems(ctx context.Context, prescriptionID int64) ([]*PrescriptionItem, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+itemCols+`
		FROM prescription_items i
		LEFT JOIN medicines m ON m.id = i.medicine_id
		WHERE i.prescription_id = $1
		ORDER BY i.id ASC`, prescriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}
