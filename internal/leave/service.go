// Package leave keeps the leave request lifecycle: submission, the single
// terminal decision and the operational purge.
package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/models"
)

type Repo interface {
	Create(ctx context.Context, nl models.NewLeave) (*models.LeaveRequest, error)
	Get(ctx context.Context, id int64) (*models.LeaveWithOwner, error)
	List(ctx context.Context, status models.LeaveStatus) ([]models.LeaveWithOwner, error)
	ListByAccount(ctx context.Context, accountID int64) ([]models.LeaveRequest, error)
	Transition(ctx context.Context, d models.Decision, documentPath *string) (*models.LeaveRequest, error)
	DeleteByStatus(ctx context.Context, status models.LeaveStatus) (int64, []string, error)
	CountByStatus(ctx context.Context, status models.LeaveStatus) (int, error)
}

// DocumentGenerator рисует письмо-подтверждение и возвращает путь к нему.
type DocumentGenerator interface {
	Generate(ctx context.Context, l models.LeaveRequest, owner models.Owner) (string, error)
}

type FileRemover interface {
	Remove(path string) error
}

type Service struct {
	repo  Repo
	docs  DocumentGenerator
	files FileRemover
	log   *zap.Logger
}

func NewService(repo Repo, docs DocumentGenerator, files FileRemover, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, docs: docs, files: files, log: log}
}

// Submission — форма заявки; даты в формате YYYY-MM-DD.
type Submission struct {
	AccountID int64
	StartDate string
	EndDate   string
	Reason    string
}

func (s *Service) Submit(ctx context.Context, in Submission) (*models.LeaveRequest, error) {
	reason := strings.TrimSpace(in.Reason)
	if in.AccountID <= 0 || strings.TrimSpace(in.StartDate) == "" || strings.TrimSpace(in.EndDate) == "" || reason == "" {
		return nil, apperr.Validation("startDate, endDate and reason are required")
	}
	start, err := ParseDate(in.StartDate)
	if err != nil {
		return nil, apperr.Validation("startDate must be a date (YYYY-MM-DD)")
	}
	end, err := ParseDate(in.EndDate)
	if err != nil {
		return nil, apperr.Validation("endDate must be a date (YYYY-MM-DD)")
	}
	if end.Before(start) {
		return nil, apperr.Validation("endDate must not be before startDate")
	}

	l, err := s.repo.Create(ctx, models.NewLeave{AccountID: in.AccountID, StartDate: start, EndDate: end, Reason: reason})
	if err != nil {
		return nil, err
	}
	logging.For(ctx, s.log).Info("leave request submitted",
		zap.Int64("leave_id", l.ID), zap.Int64("account_id", l.AccountID))
	return l, nil
}

// ParseDate принимает YYYY-MM-DD или полный RFC3339 (берётся только дата).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Decide переводит заявку из pending в approved или rejected.
// Одобрение: сначала письмо, потом CAS по статусу, так что одобрения без документа не бывает.
func (s *Service) Decide(ctx context.Context, d models.Decision) (*models.LeaveWithOwner, error) {
	switch d.Status {
	case models.LeaveApproved:
	case models.LeaveRejected:
		d.RejectionReason = strings.TrimSpace(d.RejectionReason)
		if d.RejectionReason == "" {
			return nil, apperr.Validation("rejectionReason is required to reject a request")
		}
	default:
		return nil, apperr.Validation("status must be approved or rejected")
	}

	cur, err := s.repo.Get(ctx, d.RequestID)
	if err != nil {
		return nil, err
	}
	if !cur.IsPending() {
		return nil, apperr.InvalidState("leave request is already %s", cur.Status)
	}

	var doc *string
	if d.Status == models.LeaveApproved {
		path, err := s.docs.Generate(ctx, cur.LeaveRequest, cur.Student)
		if err != nil {
			logging.For(ctx, s.log).Error("approval letter failed, request stays pending",
				zap.Int64("leave_id", d.RequestID), zap.Error(err))
			return nil, err
		}
		doc = &path
	}

	updated, err := s.repo.Transition(ctx, d, doc)
	if err != nil {
		if doc != nil {
			s.dropStrayDocument(ctx, d.RequestID, *doc)
		}
		return nil, err
	}
	logging.For(ctx, s.log).Info("leave request decided",
		zap.Int64("leave_id", updated.ID), zap.String("status", string(updated.Status)))
	return &models.LeaveWithOwner{LeaveRequest: *updated, Student: cur.Student}, nil
}

// dropStrayDocument убирает письмо, если CAS проиграл и заявка не одобрена.
// Имя файла детерминировано, поэтому письмо победившего одобрения не трогаем.
func (s *Service) dropStrayDocument(ctx context.Context, id int64, path string) {
	if s.files == nil {
		return
	}
	cur, err := s.repo.Get(ctx, id)
	if err == nil && cur.IsApproved() {
		return
	}
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return
	}
	if err := s.files.Remove(path); err != nil {
		logging.For(ctx, s.log).Warn("remove stray letter", zap.String("path", path), zap.Error(err))
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*models.LeaveWithOwner, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPending(ctx context.Context) ([]models.LeaveWithOwner, error) {
	return s.repo.List(ctx, models.LeavePending)
}

// List — все заявки или только с указанным статусом ("" — все).
func (s *Service) List(ctx context.Context, status string) ([]models.LeaveWithOwner, error) {
	var st models.LeaveStatus
	if status != "" {
		var ok bool
		if st, ok = models.ParseLeaveStatus(status); !ok {
			return nil, apperr.Validation("unknown status %q", status)
		}
	}
	return s.repo.List(ctx, st)
}

func (s *Service) Mine(ctx context.Context, accountID int64) ([]models.LeaveRequest, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

func (s *Service) CountPending(ctx context.Context) (int, error) {
	return s.repo.CountByStatus(ctx, models.LeavePending)
}

// DeleteAllWithStatus — массовая очистка вместе с письмами удалённых заявок.
func (s *Service) DeleteAllWithStatus(ctx context.Context, status models.LeaveStatus) (int64, error) {
	if _, ok := models.ParseLeaveStatus(string(status)); !ok {
		return 0, apperr.Validation("unknown status %q", status)
	}
	n, docs, err := s.repo.DeleteByStatus(ctx, status)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", status, err)
	}
	for _, p := range docs {
		if s.files == nil {
			break
		}
		if err := s.files.Remove(p); err != nil {
			logging.For(ctx, s.log).Warn("remove purged letter", zap.String("path", p), zap.Error(err))
		}
	}
	logging.For(ctx, s.log).Info("leave requests purged", zap.String("status", string(status)), zap.Int64("count", n))
	return n, nil
}
