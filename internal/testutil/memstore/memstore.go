// Package memstore is an in-memory stand-in for the Postgres repositories.
// It keeps the same uniqueness, bootstrap and compare-and-set rules so the
// services can be tested without a database.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/models"
)

type Store struct {
	mu        sync.Mutex
	accounts  map[int64]models.Account
	leaves    map[int64]models.LeaveRequest
	nextAcc   int64
	nextLeave int64
	now       func() time.Time
}

func New() *Store {
	return &Store{
		accounts: map[int64]models.Account{},
		leaves:   map[int64]models.LeaveRequest{},
		now:      time.Now,
	}
}

func (s *Store) Accounts() *Accounts { return &Accounts{s: s} }

func (s *Store) Leaves() *Leaves { return &Leaves{s: s} }

type Accounts struct{ s *Store }

func (r *Accounts) Create(_ context.Context, na models.NewAccount) (*models.Account, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if na.RegistrationNumber != nil && a.RegistrationNumber != nil &&
			strings.EqualFold(*a.RegistrationNumber, *na.RegistrationNumber) {
			return nil, apperr.ErrDuplicateRegistrationNumber
		}
	}
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, na.Email) {
			return nil, apperr.ErrDuplicateEmail
		}
	}
	if len(s.accounts) == 0 && na.Role != models.Admin {
		return nil, apperr.Validation("the first account must be an admin")
	}
	s.nextAcc++
	now := s.now()
	a := models.Account{
		ID:                 s.nextAcc,
		Name:               na.Name,
		RegistrationNumber: na.RegistrationNumber,
		Email:              na.Email,
		PasswordHash:       na.PasswordHash,
		IDCardImage:        na.IDCardImage,
		IsApproved:         len(s.accounts) == 0,
		Role:               na.Role,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.accounts[a.ID] = a
	return &a, nil
}

func (r *Accounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account")
	}
	return &a, nil
}

func (r *Accounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("account")
}

func (r *Accounts) Approve(_ context.Context, id int64) (*models.Account, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false, apperr.NotFound("account")
	}
	if a.IsApproved {
		return &a, false, nil
	}
	a.IsApproved = true
	a.UpdatedAt = s.now()
	s.accounts[id] = a
	return &a, true, nil
}

func (r *Accounts) DeleteUnapproved(_ context.Context, id int64) (*models.Account, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, apperr.NotFound("account")
	}
	if a.IsApproved {
		return nil, apperr.InvalidState("approved accounts cannot be rejected")
	}
	s.deleteAccount(id)
	return &a, nil
}

func (r *Accounts) Delete(_ context.Context, id int64) (*models.Account, []string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, nil, apperr.NotFound("account")
	}
	letters := s.deleteAccount(id)
	return &a, letters, nil
}

func (r *Accounts) DeleteMany(_ context.Context, ids []int64) ([]models.Account, []string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Account{}
	var letters []string
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			letters = append(letters, s.deleteAccount(id)...)
			out = append(out, a)
		}
	}
	return out, letters, nil
}

// deleteAccount повторяет ON DELETE CASCADE / SET NULL и возвращает письма
// удалённых заявок. Вызывать под mu.
func (s *Store) deleteAccount(id int64) []string {
	var letters []string
	delete(s.accounts, id)
	for lid, l := range s.leaves {
		if l.AccountID == id {
			if l.HasDocument() {
				letters = append(letters, *l.DocumentPath)
			}
			delete(s.leaves, lid)
			continue
		}
		if l.DecidedBy != nil && *l.DecidedBy == id {
			l.DecidedBy = nil
			s.leaves[lid] = l
		}
	}
	return letters
}

func (r *Accounts) SearchByRegPrefix(_ context.Context, prefix string) ([]models.Account, error) {
	return r.filter(func(a models.Account) bool {
		return a.RegistrationNumber != nil &&
			strings.HasPrefix(strings.ToUpper(*a.RegistrationNumber), strings.ToUpper(prefix))
	}), nil
}

func (r *Accounts) List(_ context.Context, onlyPending bool) ([]models.Account, error) {
	return r.filter(func(a models.Account) bool { return !onlyPending || !a.IsApproved }), nil
}

func (r *Accounts) CountApprovedStudents(_ context.Context) (int, error) {
	return len(r.filter(func(a models.Account) bool { return a.IsApproved && a.Role == models.Student })), nil
}

func (r *Accounts) CountPending(_ context.Context) (int, error) {
	return len(r.filter(func(a models.Account) bool { return !a.IsApproved })), nil
}

func (r *Accounts) filter(keep func(models.Account) bool) []models.Account {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Account{}
	for _, a := range r.s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type Leaves struct{ s *Store }

func (r *Leaves) Create(_ context.Context, nl models.NewLeave) (*models.LeaveRequest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[nl.AccountID]; !ok {
		return nil, apperr.NotFound("account")
	}
	s.nextLeave++
	l := models.LeaveRequest{
		ID:        s.nextLeave,
		AccountID: nl.AccountID,
		Reason:    nl.Reason,
		StartDate: nl.StartDate,
		EndDate:   nl.EndDate,
		Status:    models.LeavePending,
		// порядок вставки должен совпадать с порядком applied_at
		AppliedAt: s.now().Add(time.Duration(s.nextLeave) * time.Microsecond),
	}
	s.leaves[l.ID] = l
	return &l, nil
}

func (r *Leaves) Get(_ context.Context, id int64) (*models.LeaveWithOwner, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leaves[id]
	if !ok {
		return nil, apperr.NotFound("leave request")
	}
	out := s.withOwner(l)
	return &out, nil
}

func (r *Leaves) List(_ context.Context, status models.LeaveStatus) ([]models.LeaveWithOwner, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LeaveWithOwner{}
	for _, l := range s.leaves {
		if status == "" || l.Status == status {
			out = append(out, s.withOwner(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Leaves) ListByAccount(_ context.Context, accountID int64) ([]models.LeaveRequest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.LeaveRequest{}
	for _, l := range s.leaves {
		if l.AccountID == accountID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Leaves) Transition(_ context.Context, d models.Decision, documentPath *string) (*models.LeaveRequest, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leaves[d.RequestID]
	if !ok {
		return nil, apperr.NotFound("leave request")
	}
	if l.Status != models.LeavePending {
		return nil, apperr.InvalidState("leave request is already %s", l.Status)
	}
	if d.Status == models.LeaveApproved && documentPath == nil {
		return nil, apperr.InvalidState("approval requires a document")
	}
	l.Status = d.Status
	if d.Status == models.LeaveRejected {
		reason := d.RejectionReason
		l.RejectionReason = &reason
	}
	l.DocumentPath = documentPath
	now := s.now()
	l.DecidedAt = &now
	if d.DecidedBy > 0 {
		by := d.DecidedBy
		l.DecidedBy = &by
	}
	s.leaves[l.ID] = l
	return &l, nil
}

func (r *Leaves) DeleteByStatus(_ context.Context, status models.LeaveStatus) (int64, []string, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		n       int64
		letters []string
	)
	for id, l := range s.leaves {
		if l.Status == status {
			if l.HasDocument() {
				letters = append(letters, *l.DocumentPath)
			}
			delete(s.leaves, id)
			n++
		}
	}
	return n, letters, nil
}

func (r *Leaves) CountByStatus(_ context.Context, status models.LeaveStatus) (int, error) {
	out, _ := r.List(context.Background(), status)
	return len(out), nil
}

func (s *Store) withOwner(l models.LeaveRequest) models.LeaveWithOwner {
	a := s.accounts[l.AccountID]
	return models.LeaveWithOwner{
		LeaveRequest: l,
		Student: models.Owner{
			ID:                 a.ID,
			Name:               a.Name,
			Email:              a.Email,
			RegistrationNumber: a.RegistrationNumber,
		},
	}
}
