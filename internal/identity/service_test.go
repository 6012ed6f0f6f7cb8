package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/models"
	"github.com/Krishna180104/cse-leave/internal/testutil/memstore"
)

type fakeFiles struct{ removed []string }

func (f *fakeFiles) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func newTestService() (*Service, *fakeFiles) {
	files := &fakeFiles{}
	return newService(memstore.New().Accounts(), files, nil, bcrypt.MinCost), files
}

func reg(name, regNo, email, role string) Registration {
	return Registration{Name: name, RegistrationNumber: regNo, Email: email, Password: "pw", Role: role}
}

func mustRegister(t *testing.T, s *Service, r Registration) *models.Account {
	t.Helper()
	a, err := s.Register(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRegister_BootstrapThenPending(t *testing.T) {
	s, _ := newTestService()
	head := mustRegister(t, s, reg("Head", "", "Head@CSE.edu", "admin"))
	if !head.IsApproved || head.Email != "head@cse.edu" {
		t.Fatalf("bootstrap account = %+v", head)
	}
	for _, r := range []Registration{
		reg("Second admin", "", "admin2@cse.edu", "admin"),
		reg("Asha", "21CS001", "asha@cse.edu", "student"),
	} {
		if a := mustRegister(t, s, r); a.IsApproved {
			t.Fatalf("%s must start unapproved", r.Email)
		}
	}
}

func TestRegister_FirstAccountMustBeAdmin(t *testing.T) {
	ctx := context.Background()
	s, files := newTestService()

	for _, r := range []Registration{
		reg("Asha", "21CS001", "asha@cse.edu", "student"),
		reg("Asha", "21CS001", "asha@cse.edu", ""),
	} {
		img := "uploads/card.jpg"
		r.IDCardImage = &img
		if _, err := s.Register(ctx, r); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("role %q as first account: want validation error, got %v", r.Role, err)
		}
	}
	if len(files.removed) != 2 {
		t.Fatalf("removed = %v", files.removed)
	}

	head := mustRegister(t, s, reg("Head", "", "head@cse.edu", "Admin"))
	if !head.IsApproved || head.Role != models.Admin {
		t.Fatalf("bootstrap account = %+v", head)
	}
	if a := mustRegister(t, s, reg("Asha", "21CS001", "asha@cse.edu", "")); a.IsApproved {
		t.Fatal("student after bootstrap must wait for approval")
	}
}

func TestRegister_Validation(t *testing.T) {
	cases := []struct {
		name string
		in   Registration
	}{
		{"no name", reg(" ", "21CS001", "a@cse.edu", "student")},
		{"bad email", reg("A", "21CS001", "nope", "student")},
		{"no password", Registration{Name: "A", RegistrationNumber: "21CS001", Email: "a@cse.edu"}},
		{"unknown role", reg("A", "21CS001", "a@cse.edu", "teacher")},
		{"student without reg no", reg("A", "", "a@cse.edu", "student")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, files := newTestService()
			img := "uploads/card.jpg"
			tc.in.IDCardImage = &img
			_, err := s.Register(context.Background(), tc.in)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
			if len(files.removed) != 1 {
				t.Fatal("uploaded image must be cleaned up on failure")
			}
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	mustRegister(t, s, reg("Asha", "21CS001", "asha@cse.edu", ""))

	if _, err := s.Register(context.Background(), reg("X", "21CS002", " ASHA@cse.edu ", "")); !errors.Is(err, apperr.ErrDuplicateEmail) {
		t.Fatalf("want duplicate email, got %v", err)
	}
	if _, err := s.Register(context.Background(), reg("X", "21cs001", "x@cse.edu", "")); !errors.Is(err, apperr.ErrDuplicateRegistrationNumber) {
		t.Fatalf("want duplicate reg no, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	mustRegister(t, s, reg("Asha", "21CS001", "asha@cse.edu", ""))

	if _, err := s.Authenticate(ctx, "HEAD@cse.edu", "pw"); err != nil {
		t.Fatalf("bootstrap login: %v", err)
	}

	_, unknown := s.Authenticate(ctx, "ghost@cse.edu", "pw")
	_, wrong := s.Authenticate(ctx, "head@cse.edu", "bad")
	if !errors.Is(unknown, apperr.ErrInvalidCredential) || !errors.Is(wrong, apperr.ErrInvalidCredential) {
		t.Fatalf("unknown=%v wrong=%v", unknown, wrong)
	}
	if unknown.Error() != wrong.Error() {
		t.Fatal("unknown email and wrong password must be indistinguishable")
	}

	if _, err := s.Authenticate(ctx, "asha@cse.edu", "pw"); !errors.Is(err, apperr.ErrNotApproved) {
		t.Fatalf("want not approved, got %v", err)
	}
	// неверный пароль к неодобренному аккаунту всё равно InvalidCredential
	if _, err := s.Authenticate(ctx, "asha@cse.edu", "bad"); !errors.Is(err, apperr.ErrInvalidCredential) {
		t.Fatalf("want invalid credential, got %v", err)
	}
}

func TestApprove_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	a := mustRegister(t, s, reg("Asha", "21CS001", "asha@cse.edu", ""))

	got, changed, err := s.Approve(ctx, a.ID)
	if err != nil || !changed || !got.IsApproved {
		t.Fatalf("first approve: %v changed=%v", err, changed)
	}
	_, changed, err = s.Approve(ctx, a.ID)
	if err != nil || changed {
		t.Fatalf("second approve must be a silent no-op: %v changed=%v", err, changed)
	}
	if _, _, err := s.Approve(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestApprove_ConcurrentReportsChangeOnce(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	a := mustRegister(t, s, reg("Asha", "21CS001", "asha@cse.edu", ""))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := s.Approve(ctx, a.ID)
			if err != nil {
				t.Error(err)
				return
			}
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if changes != 1 {
		t.Fatalf("changed reported %d times, want 1", changes)
	}
}

func TestDelete_RemovesImageAndLetters(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	files := &fakeFiles{}
	s := newService(store.Accounts(), files, nil, bcrypt.MinCost)

	head := mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	r := reg("Asha", "21CS001", "asha@cse.edu", "")
	r.IDCardImage = ptr("uploads/card.jpg")
	a := mustRegister(t, s, r)

	l, err := store.Leaves().Create(ctx, models.NewLeave{
		AccountID: a.ID, StartDate: time.Now(), EndDate: time.Now(), Reason: "Medical",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.Leaves().Transition(ctx, models.Decision{
		RequestID: l.ID, Status: models.LeaveApproved, DecidedBy: head.ID,
	}, ptr("uploads/leave_1.pdf"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"uploads/card.jpg": true, "uploads/leave_1.pdf": true}
	if len(files.removed) != len(want) {
		t.Fatalf("removed = %v", files.removed)
	}
	for _, p := range files.removed {
		if !want[p] {
			t.Fatalf("unexpected removal %q", p)
		}
	}
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	s, files := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	img := "uploads/card.jpg"
	r := reg("Asha", "21CS001", "asha@cse.edu", "")
	r.IDCardImage = &img
	a := mustRegister(t, s, r)

	other := mustRegister(t, s, Registration{Name: "Ravi", RegistrationNumber: "21CS002", Email: "ravi@cse.edu", Password: "pw", IDCardImage: ptr("uploads/ravi.jpg")})
	if _, _, err := s.Approve(ctx, other.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Reject(ctx, other.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("want invalid state, got %v", err)
	}
	if len(files.removed) != 0 {
		t.Fatal("image of an approved account must be kept")
	}

	if _, err := s.Reject(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if len(files.removed) != 1 || files.removed[0] != img {
		t.Fatalf("removed = %v", files.removed)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatal("rejected account must be gone")
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	a := mustRegister(t, s, reg("A", "21CS001", "a@cse.edu", ""))
	b := mustRegister(t, s, reg("B", "21CS002", "b@cse.edu", ""))
	mustRegister(t, s, reg("C", "22CS001", "c@cse.edu", ""))

	got, err := s.Search(ctx, "21cs")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != a.ID || got[1].ID != b.ID {
		t.Fatalf("got %+v", got)
	}
	none, err := s.Search(ctx, "ZZ")
	if err != nil || len(none) != 0 {
		t.Fatalf("want empty result, got %v %v", none, err)
	}
	if _, err := s.Search(ctx, "  "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestBulkDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService()
	mustRegister(t, s, reg("Head", "", "head@cse.edu", "admin"))
	a := mustRegister(t, s, reg("A", "21CS001", "a@cse.edu", ""))

	if _, err := s.BulkDelete(ctx, nil); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("empty list: want validation error, got %v", err)
	}
	gone, err := s.BulkDelete(ctx, []int64{a.ID, a.ID, 404})
	if err != nil {
		t.Fatal(err)
	}
	if len(gone) != 1 {
		t.Fatalf("deleted %d", len(gone))
	}
	n, _ := s.CountPending(ctx)
	if n != 0 {
		t.Fatalf("pending = %d", n)
	}
}

func ptr(s string) *string { return &s }
