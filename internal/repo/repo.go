package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hireline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const requisitionCols = `id,title,stage,delayed,position,due_date,created_at,archived_at`

func scanRequisition(scan func(dest ...any) error) (domain.Requisition, error) {
	var r domain.Requisition
	var delayed int
	var dueDate, archivedAt sql.NullString
	err := scan(&r.ID, &r.Title, &r.Stage, &delayed, &r.Position, &dueDate, &r.CreatedAt, &archivedAt)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.Delayed = delayed != 0
	if dueDate.Valid {
		r.DueDate = &dueDate.String
	}
	if archivedAt.Valid {
		r.ArchivedAt = &archivedAt.String
	}
	return r, nil
}

func (r Repo) InsertRequisition(ctx context.Context, tx *sql.Tx, req domain.Requisition) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO requisitions(`+requisitionCols+`) VALUES (?,?,?,?,?,?,?,?)`,
		req.ID, req.Title, req.Stage, boolInt(req.Delayed), req.Position, nullableStringPtr(req.DueDate), req.CreatedAt, nullableStringPtr(req.ArchivedAt))
	return err
}

func (r Repo) GetRequisition(ctx context.Context, id string) (domain.Requisition, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requisitionCols+` FROM requisitions WHERE id=?`, id)
	return scanRequisition(row.Scan)
}

func (r Repo) GetRequisitionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Requisition, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requisitionCols+` FROM requisitions WHERE id=?`, id)
	return scanRequisition(row.Scan)
}

// UpdateRequisition writes back all mutable fields.
func (r Repo) UpdateRequisition(ctx context.Context, tx *sql.Tx, req domain.Requisition) error {
	res, err := tx.ExecContext(ctx, `UPDATE requisitions SET title=?, stage=?, delayed=?, position=?, due_date=?, archived_at=? WHERE id=?`,
		req.Title, req.Stage, boolInt(req.Delayed), req.Position, nullableStringPtr(req.DueDate), nullableStringPtr(req.ArchivedAt), req.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type RequisitionFilters struct {
	Stage   string
	Delayed *bool
}

func (r Repo) ListRequisitions(ctx context.Context, f RequisitionFilters) ([]domain.Requisition, error) {
	var clauses []string
	var args []any
	if f.Stage != "" {
		clauses = append(clauses, "stage=?")
		args = append(args, f.Stage)
	}
	if f.Delayed != nil {
		clauses = append(clauses, "delayed=?")
		args = append(args, boolInt(*f.Delayed))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + requisitionCols + ` FROM requisitions ` + where + ` ORDER BY stage, position, created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Requisition
	for rows.Next() {
		req, err := scanRequisition(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, req)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRequisition(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM requisitions WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOpenTasks counts tasks still referencing a requisition that are
// neither done nor archived.
func (r Repo) CountOpenTasks(ctx context.Context, requisitionID string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE requisition_id=? AND status NOT IN ('done','archived')`, requisitionID)
	var n int
	err := row.Scan(&n)
	return n, err
}

// --- briefings ---

func (r Repo) UpsertBriefing(ctx context.Context, tx *sql.Tx, b domain.Briefing) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO briefings(requisition_id,role,compensation,requirements,headcount,created_at,updated_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(requisition_id) DO UPDATE SET role=excluded.role, compensation=excluded.compensation, requirements=excluded.requirements, headcount=excluded.headcount, updated_at=excluded.updated_at`,
		b.RequisitionID, b.Role, nullable(b.Compensation), nullable(b.Requirements), b.Headcount, b.CreatedAt, b.UpdatedAt)
	return err
}

func (r Repo) GetBriefing(ctx context.Context, requisitionID string) (domain.Briefing, error) {
	var b domain.Briefing
	var compensation, requirements sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT requisition_id,role,compensation,requirements,headcount,created_at,updated_at FROM briefings WHERE requisition_id=?`, requisitionID).
		Scan(&b.RequisitionID, &b.Role, &compensation, &requirements, &b.Headcount, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if compensation.Valid {
		b.Compensation = compensation.String
	}
	if requirements.Valid {
		b.Requirements = requirements.String
	}
	return b, nil
}

// --- campaign allocations ---

func (r Repo) InsertAllocation(ctx context.Context, tx *sql.Tx, a domain.CampaignAllocation) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO campaign_allocations(id,requisition_id,platform,created_at) VALUES (?,?,?,?)`,
		a.ID, a.RequisitionID, a.Platform, a.CreatedAt)
	return err
}

func (r Repo) ListAllocations(ctx context.Context, requisitionID string) ([]domain.CampaignAllocation, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,requisition_id,platform,created_at FROM campaign_allocations WHERE requisition_id=? ORDER BY created_at, id`, requisitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CampaignAllocation
	for rows.Next() {
		var a domain.CampaignAllocation
		if err := rows.Scan(&a.ID, &a.RequisitionID, &a.Platform, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// --- activity ---

type ActivityFilters struct {
	RequisitionID string
	Action        string
	EntityKind    string
	EntityID      string
	Limit         int
	Cursor        int64
}

func (r Repo) LatestActivity(ctx context.Context, f ActivityFilters) ([]domain.ActivityEntry, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.RequisitionID != "" {
		clauses = append(clauses, "requisition_id=?")
		args = append(args, f.RequisitionID)
	}
	if f.Action != "" {
		clauses = append(clauses, "action=?")
		args = append(args, f.Action)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,action,requisition_id,entity_kind,entity_id,actor_id,payload_json FROM activity %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ActivityAfter returns activity entries with IDs greater than the cursor in
// ascending order, for webhook delivery.
func (r Repo) ActivityAfter(ctx context.Context, limit int, cursor int64) ([]domain.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,action,requisition_id,entity_kind,entity_id,actor_id,payload_json FROM activity WHERE id>? ORDER BY id ASC LIMIT ?`, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestActivityID returns the most recent activity entry ID.
func (r Repo) LatestActivityID(ctx context.Context) (int64, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM activity`)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func scanActivity(scan func(dest ...any) error) (domain.ActivityEntry, error) {
	var e domain.ActivityEntry
	var reqID, entityID, payload sql.NullString
	if err := scan(&e.ID, &e.TS, &e.Action, &reqID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
		return e, err
	}
	if reqID.Valid {
		e.RequisitionID = reqID.String
	}
	if entityID.Valid {
		e.EntityID = entityID.String
	}
	if payload.Valid {
		e.Payload = payload.String
	}
	return e, nil
}

// --- actors ---

func (r Repo) EnsureActor(ctx context.Context, tx *sql.Tx, a domain.Actor, now string) error {
	if a.ID == "" {
		return errors.New("actor id required")
	}
	exec := func(query string, args ...any) (sql.Result, error) {
		if tx != nil {
			return tx.ExecContext(ctx, query, args...)
		}
		return r.DB.ExecContext(ctx, query, args...)
	}
	_, err := exec(`INSERT INTO actors(id,name,role,created_at) VALUES (?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=COALESCE(excluded.name,name), role=COALESCE(excluded.role,role)`,
		a.ID, nullable(a.Name), nullable(a.Role), now)
	return err
}

func (r Repo) GetActor(ctx context.Context, id string) (domain.Actor, error) {
	var a domain.Actor
	var name, role sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,role FROM actors WHERE id=?`, id).Scan(&a.ID, &name, &role)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if name.Valid {
		a.Name = name.String
	}
	if role.Valid {
		a.Role = role.String
	}
	return a, nil
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
