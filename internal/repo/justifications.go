package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const justificationCols = `id,requisition_id,reason,new_due_date,days_overdue,author,created_at`

func (r Repo) InsertJustification(ctx context.Context, tx *sql.Tx, j domain.Justification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO justifications(`+justificationCols+`) VALUES (?,?,?,?,?,?,?)`,
		j.ID, j.RequisitionID, j.Reason, j.NewDueDate, j.DaysOverdue, j.Author, j.CreatedAt)
	return err
}

func scanJustification(scan func(dest ...any) error) (domain.Justification, error) {
	var j domain.Justification
	err := scan(&j.ID, &j.RequisitionID, &j.Reason, &j.NewDueDate, &j.DaysOverdue, &j.Author, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return j, ErrNotFound
	}
	return j, err
}

// LatestJustification returns the authoritative (most recent) justification
// for a requisition.
func (r Repo) LatestJustification(ctx context.Context, requisitionID string) (domain.Justification, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+justificationCols+` FROM justifications WHERE requisition_id=? ORDER BY created_at DESC, id DESC LIMIT 1`, requisitionID)
	return scanJustification(row.Scan)
}

func (r Repo) ListJustifications(ctx context.Context, requisitionID string) ([]domain.Justification, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+justificationCols+` FROM justifications WHERE requisition_id=? ORDER BY created_at DESC, id DESC`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Justification
	for rows.Next() {
		j, err := scanJustification(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, rows.Err()
}
