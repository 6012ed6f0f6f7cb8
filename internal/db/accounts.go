package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/ctxutil"
	"github.com/Krishna180104/cse-leave/internal/models"
)

// ключ advisory-lock, под которым сериализуется регистрация
const registerLockKey = 7_301_001

const accountColumns = `id, name, registration_number, email, password_hash, id_card_image, is_approved, role, created_at, updated_at`

type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(database *sql.DB) *AccountRepo {
	return &AccountRepo{db: database}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a     models.Account
		regNo sql.NullString
		image sql.NullString
		role  string
	)
	if err := row.Scan(&a.ID, &a.Name, &regNo, &a.Email, &a.PasswordHash, &image, &a.IsApproved, &role, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	if regNo.Valid {
		a.RegistrationNumber = &regNo.String
	}
	if image.Valid {
		a.IDCardImage = &image.String
	}
	return &a, nil
}

func scanAccounts(rows *sql.Rows) ([]models.Account, error) {
	defer func() { _ = rows.Close() }()
	out := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Create сохраняет аккаунт. Самый первый аккаунт в пустой таблице
// одобряется сразу (bootstrap admin), все остальные ждут одобрения.
func (r *AccountRepo) Create(ctx context.Context, na models.NewAccount) (*models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, registerLockKey); err != nil {
		return nil, fmt.Errorf("register lock: %w", err)
	}

	var emailTaken, regNoTaken, empty bool
	err = tx.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1)),
			$2::text IS NOT NULL AND EXISTS (
				SELECT 1 FROM accounts WHERE upper(registration_number) = upper($2::text)
			),
			NOT EXISTS (SELECT 1 FROM accounts)
	`, na.Email, nullString(na.RegistrationNumber)).Scan(&emailTaken, &regNoTaken, &empty)
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	if regNoTaken {
		return nil, apperr.ErrDuplicateRegistrationNumber
	}
	if emailTaken {
		return nil, apperr.ErrDuplicateEmail
	}
	// без одобренного админа никто не сможет одобрять остальных
	if empty && na.Role != models.Admin {
		return nil, apperr.Validation("the first account must be an admin")
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO accounts (name, registration_number, email, password_hash, id_card_image, is_approved, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+accountColumns,
		na.Name, nullString(na.RegistrationNumber), na.Email, na.PasswordHash,
		nullString(na.IDCardImage), empty, string(na.Role),
	)
	a, err := scanAccount(row)
	if err != nil {
		return nil, classifyAccountErr(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyAccountErr(err)
	}
	return a, nil
}

func classifyAccountErr(err error) error {
	if constraint, ok := isUniqueViolation(err); ok {
		if strings.Contains(constraint, "registration_number") {
			return apperr.ErrDuplicateRegistrationNumber
		}
		return apperr.ErrDuplicateEmail
	}
	return fmt.Errorf("insert account: %w", err)
}

func (r *AccountRepo) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// Approve одобряет аккаунт через CAS по is_approved. changed=false, если он
// уже был одобрен: письмо об одобрении уходит один раз.
func (r *AccountRepo) Approve(ctx context.Context, id int64) (*models.Account, bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET is_approved = TRUE, updated_at = now()
		WHERE id = $1 AND is_approved = FALSE
		RETURNING `+accountColumns, id))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("approve account: %w", err)
	}
	a, err = scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, apperr.NotFound("account")
	}
	if err != nil {
		return nil, false, fmt.Errorf("approve account: %w", err)
	}
	return a, false, nil
}

// DeleteUnapproved удаляет заявку на регистрацию, только если аккаунт ещё не одобрен.
func (r *AccountRepo) DeleteUnapproved(ctx context.Context, id int64) (*models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	a, err := scanAccount(r.db.QueryRowContext(ctx, `
		DELETE FROM accounts WHERE id = $1 AND is_approved = FALSE
		RETURNING `+accountColumns, id))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reject account: %w", err)
	}
	var approved bool
	err = r.db.QueryRowContext(ctx, `SELECT is_approved FROM accounts WHERE id = $1`, id).Scan(&approved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("reject account: %w", err)
	}
	return nil, apperr.InvalidState("approved accounts cannot be rejected")
}

// Delete удаляет аккаунт вместе с заявками и возвращает пути их писем.
func (r *AccountRepo) Delete(ctx context.Context, id int64) (*models.Account, []string, error) {
	gone, letters, err := r.deleteAccounts(ctx, []int64{id})
	if err != nil {
		return nil, nil, err
	}
	if len(gone) == 0 {
		return nil, nil, apperr.NotFound("account")
	}
	return &gone[0], letters, nil
}

// DeleteMany удаляет пачку аккаунтов и возвращает удалённые строки.
func (r *AccountRepo) DeleteMany(ctx context.Context, ids []int64) ([]models.Account, []string, error) {
	return r.deleteAccounts(ctx, ids)
}

// deleteAccounts сначала явно удаляет заявки, чтобы забрать document_path
// в той же транзакции; каскад в схеме остаётся страховкой.
func (r *AccountRepo) deleteAccounts(ctx context.Context, ids []int64) ([]models.Account, []string, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM leave_requests
		WHERE account_id = ANY($1) AND document_path IS NOT NULL
		RETURNING document_path`, pq.Array(ids))
	if err != nil {
		return nil, nil, fmt.Errorf("delete account letters: %w", err)
	}
	letters, err := scanStrings(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("delete account letters: %w", err)
	}

	rows, err = tx.QueryContext(ctx, `DELETE FROM accounts WHERE id = ANY($1) RETURNING `+accountColumns, pq.Array(ids))
	if err != nil {
		return nil, nil, fmt.Errorf("delete accounts: %w", err)
	}
	gone, err := scanAccounts(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("delete accounts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("delete accounts: %w", err)
	}
	return gone, letters, nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SearchByRegPrefix — поиск по началу номера зачётки без учёта регистра.
func (r *AccountRepo) SearchByRegPrefix(ctx context.Context, prefix string) ([]models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE registration_number IS NOT NULL
		  AND upper(registration_number) LIKE upper($1) ESCAPE '\'
		ORDER BY id`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}
	return scanAccounts(rows)
}

func (r *AccountRepo) List(ctx context.Context, onlyPending bool) ([]models.Account, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	q := `SELECT ` + accountColumns + ` FROM accounts`
	if onlyPending {
		q += ` WHERE is_approved = FALSE`
	}
	rows, err := r.db.QueryContext(ctx, q+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return scanAccounts(rows)
}

func (r *AccountRepo) CountApprovedStudents(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM accounts WHERE role = 'student' AND is_approved = TRUE`)
}

func (r *AccountRepo) CountPending(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM accounts WHERE is_approved = FALSE`)
}

func (r *AccountRepo) count(ctx context.Context, q string) (int, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()
	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
