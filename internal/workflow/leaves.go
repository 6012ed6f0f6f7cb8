package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/leave"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/models"
	"github.com/Krishna180104/cse-leave/internal/notify"
	"github.com/Krishna180104/cse-leave/internal/pdf"
)

// SubmitLeave — заявка от имени актора; владелец всегда сам актор.
func (e *Engine) SubmitLeave(ctx context.Context, actor *models.Account, in leave.Submission) (*models.LeaveRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.AccountID = actor.ID
	l, err := e.leaves.Submit(ctx, in)
	if err != nil {
		return nil, err
	}
	metrics.Transition("leave", string(models.LeavePending))
	e.alert(ctx, fmt.Sprintf("New leave request #%d from %s (%s): %s to %s",
		l.ID, actor.Name, regNoOrDash(actor), pdf.FormatDate(l.StartDate), pdf.FormatDate(l.EndDate)))
	return l, nil
}

func (e *Engine) MyLeaves(ctx context.Context, actor *models.Account) ([]models.LeaveRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return e.leaves.Mine(ctx, actor.ID)
}

func (e *Engine) ListPending(ctx context.Context, actor *models.Account) ([]models.LeaveWithOwner, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return e.leaves.ListPending(ctx)
}

func (e *Engine) ListLeaves(ctx context.Context, actor *models.Account, status string) ([]models.LeaveWithOwner, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return e.leaves.List(ctx, status)
}

// DecisionInput — решение по одной заявке, как его прислал админ.
type DecisionInput struct {
	RequestID       int64  `json:"id"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`
}

type DecisionResult struct {
	Request      *models.LeaveWithOwner `json:"request"`
	Notification Notification           `json:"notification"`
}

// Decide: роль → загрузка → (письмо-PDF) → CAS статуса → уведомление студента.
func (e *Engine) Decide(ctx context.Context, actor *models.Account, in DecisionInput) (*DecisionResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	status, ok := models.ParseLeaveStatus(in.Status)
	if !ok || !status.IsTerminal() {
		return nil, apperr.Validation("status must be approved or rejected")
	}
	l, err := e.leaves.Decide(ctx, models.Decision{
		RequestID:       in.RequestID,
		Status:          status,
		RejectionReason: in.RejectionReason,
		DecidedBy:       actor.ID,
	})
	if err != nil {
		return nil, err
	}
	metrics.Transition("leave", string(l.Status))

	var msg notify.Email
	if l.IsApproved() {
		msg = notify.LeaveApproved(l.Student.Name, e.documentLink(l.ID))
	} else {
		reason := ""
		if l.RejectionReason != nil {
			reason = *l.RejectionReason
		}
		msg = notify.LeaveRejected(l.Student.Name, reason, e.opts.Department)
	}
	return &DecisionResult{Request: l, Notification: e.email(ctx, l.Student.Email, msg)}, nil
}

type BulkOutcome struct {
	RequestID    int64         `json:"id"`
	OK           bool          `json:"ok"`
	Status       string        `json:"status,omitempty"`
	Error        string        `json:"error,omitempty"`
	Message      string        `json:"message,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
}

// BulkDecide обрабатывает решения по очереди; ошибка по одной заявке не останавливает остальные.
func (e *Engine) BulkDecide(ctx context.Context, actor *models.Account, items []DecisionInput) ([]BulkOutcome, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Validation("applications must not be empty")
	}
	out := make([]BulkOutcome, 0, len(items))
	failed := 0
	for _, it := range items {
		res, err := e.Decide(ctx, actor, it)
		if err != nil {
			failed++
			logging.For(ctx, e.log).Warn("bulk decision failed", zap.Int64("leave_id", it.RequestID), zap.Error(err))
			out = append(out, BulkOutcome{RequestID: it.RequestID, Error: apperr.Code(err), Message: apperr.Message(err)})
			continue
		}
		n := res.Notification
		out = append(out, BulkOutcome{RequestID: it.RequestID, OK: true, Status: string(res.Request.Status), Notification: &n})
	}
	logging.For(ctx, e.log).Info("bulk decisions processed", zap.Int("total", len(items)), zap.Int("failed", failed))
	return out, nil
}

// PurgeLeaves — явная очистка; по умолчанию решённые заявки хранятся.
func (e *Engine) PurgeLeaves(ctx context.Context, actor *models.Account, status string) (int64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	st, ok := models.ParseLeaveStatus(status)
	if !ok {
		return 0, apperr.Validation("unknown status %q", status)
	}
	return e.leaves.DeleteAllWithStatus(ctx, st)
}

// Document отдаёт путь к письму владельцу заявки или админу.
func (e *Engine) Document(ctx context.Context, actor *models.Account, id int64) (string, *models.LeaveWithOwner, error) {
	if err := requireActor(actor); err != nil {
		return "", nil, err
	}
	l, err := e.leaves.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !actor.IsAdmin() && l.AccountID != actor.ID {
		return "", nil, apperr.Forbidden("you can only view your own letters")
	}
	if !l.IsApproved() || !l.HasDocument() {
		return "", nil, apperr.NotFound("approval letter")
	}
	return *l.DocumentPath, l, nil
}
