package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/ctxutil"
	"github.com/Krishna180104/cse-leave/internal/models"
)

const leaveColumns = `l.id, l.account_id, l.reason, l.start_date, l.end_date, l.status, l.rejection_reason, l.document_path, l.applied_at, l.decided_at, l.decided_by`

const ownerColumns = `a.id, a.name, a.email, a.registration_number`

type LeaveRepo struct {
	db *sql.DB
}

func NewLeaveRepo(database *sql.DB) *LeaveRepo {
	return &LeaveRepo{db: database}
}

func scanLeave(row rowScanner, extra ...any) (*models.LeaveRequest, error) {
	var (
		l         models.LeaveRequest
		status    string
		rejection sql.NullString
		docPath   sql.NullString
		decidedAt sql.NullTime
		decidedBy sql.NullInt64
	)
	dest := []any{&l.ID, &l.AccountID, &l.Reason, &l.StartDate, &l.EndDate, &status, &rejection, &docPath, &l.AppliedAt, &decidedAt, &decidedBy}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.Status = models.LeaveStatus(status)
	if rejection.Valid {
		l.RejectionReason = &rejection.String
	}
	if docPath.Valid {
		l.DocumentPath = &docPath.String
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		l.DecidedAt = &t
	}
	if decidedBy.Valid {
		id := decidedBy.Int64
		l.DecidedBy = &id
	}
	return &l, nil
}

func scanLeaveWithOwner(row rowScanner) (*models.LeaveWithOwner, error) {
	var (
		o     models.Owner
		regNo sql.NullString
	)
	l, err := scanLeave(row, &o.ID, &o.Name, &o.Email, &regNo)
	if err != nil {
		return nil, err
	}
	if regNo.Valid {
		o.RegistrationNumber = &regNo.String
	}
	return &models.LeaveWithOwner{LeaveRequest: *l, Student: o}, nil
}

// Create сохраняет заявку в статусе pending.
func (r *LeaveRepo) Create(ctx context.Context, nl models.NewLeave) (*models.LeaveRequest, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	l, err := scanLeave(r.db.QueryRowContext(ctx, `
		INSERT INTO leave_requests AS l (account_id, reason, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING `+leaveColumns,
		nl.AccountID, nl.Reason, dateOnly(nl.StartDate), dateOnly(nl.EndDate)))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, apperr.NotFound("account")
		}
		return nil, fmt.Errorf("create leave request: %w", err)
	}
	return l, nil
}

func (r *LeaveRepo) Get(ctx context.Context, id int64) (*models.LeaveWithOwner, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	l, err := scanLeaveWithOwner(r.db.QueryRowContext(ctx, `
		SELECT `+leaveColumns+`, `+ownerColumns+`
		FROM leave_requests l
		JOIN accounts a ON a.id = l.account_id
		WHERE l.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("leave request")
	}
	if err != nil {
		return nil, fmt.Errorf("get leave request: %w", err)
	}
	return l, nil
}

// List — заявки с данными владельца; status == "" означает все.
func (r *LeaveRepo) List(ctx context.Context, status models.LeaveStatus) ([]models.LeaveWithOwner, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	q := `
		SELECT ` + leaveColumns + `, ` + ownerColumns + `
		FROM leave_requests l
		JOIN accounts a ON a.id = l.account_id`
	args := []any{}
	if status != "" {
		q += ` WHERE l.status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY l.applied_at, l.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list leave requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.LeaveWithOwner{}
	for rows.Next() {
		l, err := scanLeaveWithOwner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *LeaveRepo) ListByAccount(ctx context.Context, accountID int64) ([]models.LeaveRequest, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_requests l
		WHERE l.account_id = $1
		ORDER BY l.applied_at DESC, l.id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list own leave requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.LeaveRequest{}
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// Transition — атомарный переход из pending в терминальный статус.
// Если заявку уже решили, ничего не меняет и возвращает ErrInvalidState.
func (r *LeaveRepo) Transition(ctx context.Context, d models.Decision, documentPath *string) (*models.LeaveRequest, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var rejection *string
	if d.Status == models.LeaveRejected {
		rejection = &d.RejectionReason
	}
	var decidedBy sql.NullInt64
	if d.DecidedBy > 0 {
		decidedBy = sql.NullInt64{Int64: d.DecidedBy, Valid: true}
	}

	l, err := scanLeave(r.db.QueryRowContext(ctx, `
		UPDATE leave_requests AS l
		SET status = $2, rejection_reason = $3, document_path = $4, decided_at = now(), decided_by = $5
		WHERE l.id = $1 AND l.status = 'pending'
		RETURNING `+leaveColumns,
		d.RequestID, string(d.Status), nullString(rejection), nullString(documentPath), decidedBy))
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition leave request: %w", err)
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM leave_requests WHERE id = $1`, d.RequestID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("leave request")
	}
	if err != nil {
		return nil, fmt.Errorf("transition leave request: %w", err)
	}
	return nil, apperr.InvalidState("leave request is already %s", current)
}

// DeleteByStatus — массовая очистка. Возвращает число удалённых заявок и пути
// их писем, собранные тем же DELETE.
func (r *LeaveRepo) DeleteByStatus(ctx context.Context, status models.LeaveStatus) (int64, []string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		DELETE FROM leave_requests WHERE status = $1
		RETURNING COALESCE(document_path, '')`, string(status))
	if err != nil {
		return 0, nil, fmt.Errorf("purge leave requests: %w", err)
	}
	paths, err := scanStrings(rows)
	if err != nil {
		return 0, nil, fmt.Errorf("purge leave requests: %w", err)
	}
	var letters []string
	for _, p := range paths {
		if p != "" {
			letters = append(letters, p)
		}
	}
	return int64(len(paths)), letters, nil
}

func (r *LeaveRepo) CountByStatus(ctx context.Context, status models.LeaveStatus) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leave_requests WHERE status = $1`, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count leave requests: %w", err)
	}
	return n, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
