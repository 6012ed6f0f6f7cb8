package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/identity"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/models"
	"github.com/Krishna180104/cse-leave/internal/notify"
)

type RegisterResult struct {
	Account   *models.Account
	Bootstrap bool
}

// Register создаёт аккаунт; о новой заявке на регистрацию сообщаем админам.
func (e *Engine) Register(ctx context.Context, r identity.Registration) (*RegisterResult, error) {
	a, err := e.accounts.Register(ctx, r)
	if err != nil {
		return nil, err
	}
	if a.IsApproved {
		metrics.Transition("account", "bootstrap")
		return &RegisterResult{Account: a, Bootstrap: true}, nil
	}
	metrics.Transition("account", "pending")
	e.alert(ctx, fmt.Sprintf("New %s signup awaiting approval: %s (%s) %s", a.Role, a.Name, regNoOrDash(a), a.Email))
	return &RegisterResult{Account: a}, nil
}

type Session struct {
	Token     string
	ExpiresIn time.Duration
	Account   *models.Account
}

func (e *Engine) Login(ctx context.Context, email, password string) (*Session, error) {
	a, err := e.accounts.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tok, err := e.tokens.Issue(a)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, ExpiresIn: e.tokens.TTL(), Account: a}, nil
}

type AccountResult struct {
	Account      *models.Account `json:"account"`
	Changed      bool            `json:"changed"`
	Notification Notification    `json:"notification"`
}

func (e *Engine) ApproveAccount(ctx context.Context, actor *models.Account, id int64) (*AccountResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	a, changed, err := e.accounts.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	res := &AccountResult{Account: a, Changed: changed}
	if changed {
		metrics.Transition("account", "approved")
		res.Notification = e.email(ctx, a.Email, notify.AccountApproved(a.Name))
	}
	return res, nil
}

func (e *Engine) RejectAccount(ctx context.Context, actor *models.Account, id int64) (*AccountResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == actor.ID {
		return nil, apperr.InvalidState("you cannot reject your own account")
	}
	a, err := e.accounts.Reject(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.Transition("account", "rejected")
	return &AccountResult{Account: a, Changed: true, Notification: e.email(ctx, a.Email, notify.SignupRejected(a.Name))}, nil
}

func (e *Engine) DeleteAccount(ctx context.Context, actor *models.Account, id int64) (*models.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if id == actor.ID {
		return nil, apperr.InvalidState("you cannot delete your own account")
	}
	a, err := e.accounts.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.Transition("account", "deleted")
	return a, nil
}

func (e *Engine) BulkDeleteAccounts(ctx context.Context, actor *models.Account, ids []int64) ([]models.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id == actor.ID {
			return nil, apperr.InvalidState("you cannot delete your own account")
		}
	}
	gone, err := e.accounts.BulkDelete(ctx, ids)
	if err != nil {
		return nil, err
	}
	for range gone {
		metrics.Transition("account", "deleted")
	}
	logging.For(ctx, e.log).Info("bulk delete", zap.Int("deleted", len(gone)))
	return gone, nil
}

func (e *Engine) SearchAccounts(ctx context.Context, actor *models.Account, prefix string) ([]models.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return e.accounts.Search(ctx, prefix)
}

func (e *Engine) ListAccounts(ctx context.Context, actor *models.Account, onlyPending bool) ([]models.Account, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return e.accounts.List(ctx, onlyPending)
}

func (e *Engine) Stats(ctx context.Context, actor *models.Account) (*models.AccountCounts, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var (
		c   models.AccountCounts
		err error
	)
	if c.ApprovedStudents, err = e.accounts.CountApprovedStudents(ctx); err != nil {
		return nil, err
	}
	if c.PendingAccounts, err = e.accounts.CountPending(ctx); err != nil {
		return nil, err
	}
	if c.PendingLeaveRequests, err = e.leaves.CountPending(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

// Account — текущий аккаунт по id из токена; удалённый аккаунт означает недействительный токен.
func (e *Engine) Account(ctx context.Context, id int64) (*models.Account, error) {
	a, err := e.accounts.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: account no longer exists", apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func regNoOrDash(a *models.Account) string {
	if r := a.RegNo(); r != "" {
		return r
	}
	return "-"
}
