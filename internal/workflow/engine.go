// Package workflow orchestrates account and leave request transitions:
// role check, store mutation, document generation and notification, in
// that order. Notifications never undo a committed transition.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/identity"
	"github.com/Krishna180104/cse-leave/internal/leave"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/models"
	"github.com/Krishna180104/cse-leave/internal/notify"
	"github.com/Krishna180104/cse-leave/internal/observability"
)

type Accounts interface {
	Register(ctx context.Context, r identity.Registration) (*models.Account, error)
	Authenticate(ctx context.Context, email, password string) (*models.Account, error)
	Approve(ctx context.Context, id int64) (*models.Account, bool, error)
	Reject(ctx context.Context, id int64) (*models.Account, error)
	Delete(ctx context.Context, id int64) (*models.Account, error)
	BulkDelete(ctx context.Context, ids []int64) ([]models.Account, error)
	Search(ctx context.Context, prefix string) ([]models.Account, error)
	Get(ctx context.Context, id int64) (*models.Account, error)
	List(ctx context.Context, onlyPending bool) ([]models.Account, error)
	CountApprovedStudents(ctx context.Context) (int, error)
	CountPending(ctx context.Context) (int, error)
}

type Leaves interface {
	Submit(ctx context.Context, in leave.Submission) (*models.LeaveRequest, error)
	Decide(ctx context.Context, d models.Decision) (*models.LeaveWithOwner, error)
	Get(ctx context.Context, id int64) (*models.LeaveWithOwner, error)
	ListPending(ctx context.Context) ([]models.LeaveWithOwner, error)
	List(ctx context.Context, status string) ([]models.LeaveWithOwner, error)
	Mine(ctx context.Context, accountID int64) ([]models.LeaveRequest, error)
	CountPending(ctx context.Context) (int, error)
	DeleteAllWithStatus(ctx context.Context, status models.LeaveStatus) (int64, error)
}

type TokenIssuer interface {
	Issue(a *models.Account) (string, error)
	TTL() time.Duration
}

type Options struct {
	// PublicBaseURL — адрес API для ссылок в письмах, без завершающего "/".
	PublicBaseURL string
	// Department подписывает письма об отказе.
	Department string
}

type Engine struct {
	accounts Accounts
	leaves   Leaves
	tokens   TokenIssuer
	mail     notify.Sender
	alerts   notify.Alerter
	log      *zap.Logger
	opts     Options
}

func New(accounts Accounts, leaves Leaves, tokens TokenIssuer, mail notify.Sender, alerts notify.Alerter, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if mail == nil {
		mail = notify.LogSender{Log: log}
	}
	if alerts == nil {
		alerts = notify.NopAlerter{}
	}
	if opts.Department == "" {
		opts.Department = "Department of Computer Science and Engineering"
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")
	return &Engine{accounts: accounts, leaves: leaves, tokens: tokens, mail: mail, alerts: alerts, log: log, opts: opts}
}

// Notification — итог попытки уведомить владельца.
type Notification struct {
	Channel   string `json:"channel"`
	Attempted bool   `json:"attempted"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

func requireAdmin(actor *models.Account) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	if !actor.IsApproved {
		return apperr.ErrNotApproved
	}
	if !actor.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

func requireActor(actor *models.Account) error {
	if actor == nil {
		return apperr.ErrUnauthorized
	}
	if !actor.IsApproved {
		return apperr.ErrNotApproved
	}
	return nil
}

// email — best effort: ошибка логируется, считается и уходит в Sentry, но не возвращается.
func (e *Engine) email(ctx context.Context, to string, msg notify.Email) Notification {
	n := Notification{Channel: "email", Attempted: true}
	err := e.mail.Send(ctx, to, msg.Subject, msg.Body)
	metrics.Notification("email", err)
	if err != nil {
		n.Error = apperr.Code(err)
		logging.For(ctx, e.log).Warn("notification failed", zap.String("subject", msg.Subject), zap.Error(err))
		observability.CaptureCtx(ctx, err)
		return n
	}
	n.Delivered = true
	return n
}

func (e *Engine) alert(ctx context.Context, text string) {
	if err := e.alerts.Alert(ctx, text); err != nil {
		logging.For(ctx, e.log).Warn("admin alert failed", zap.Error(err))
	}
}

func (e *Engine) documentLink(id int64) string {
	return fmt.Sprintf("%s/api/leave-requests/%d/document", e.opts.PublicBaseURL, id)
}
