package repo

import (
	"context"
	"database/sql"
	"strings"

	"hireline/internal/domain"
)

const candidateCols = `id,requisition_id,name,stage,position,created_at`

func scanCandidate(scan func(dest ...any) error) (domain.Candidate, error) {
	var c domain.Candidate
	err := scan(&c.ID, &c.RequisitionID, &c.Name, &c.Stage, &c.Position, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) InsertCandidate(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO candidates(`+candidateCols+`) VALUES (?,?,?,?,?,?)`,
		c.ID, c.RequisitionID, c.Name, c.Stage, c.Position, c.CreatedAt)
	return err
}

func (r Repo) GetCandidate(ctx context.Context, id string) (domain.Candidate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+candidateCols+` FROM candidates WHERE id=?`, id)
	return scanCandidate(row.Scan)
}

func (r Repo) UpdateCandidateStage(ctx context.Context, tx *sql.Tx, id, stage string, position int) error {
	res, err := tx.ExecContext(ctx, `UPDATE candidates SET stage=?, position=? WHERE id=?`, stage, position, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteCandidate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM candidates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type CandidateFilters struct {
	RequisitionID string
	Stage         string
}

func (r Repo) ListCandidates(ctx context.Context, f CandidateFilters) ([]domain.Candidate, error) {
	var clauses []string
	var args []any
	if f.RequisitionID != "" {
		clauses = append(clauses, "requisition_id=?")
		args = append(args, f.RequisitionID)
	}
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+candidateCols+` FROM candidates `+where+` ORDER BY stage, position, created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
