package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestKindsClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{"validation", Validation("reason is required"), ErrValidation, "reason is required"},
		{"not_found", NotFound("leave request"), ErrNotFound, "leave request not found"},
		{"wrapped", fmt.Errorf("decide: %w", InvalidState("already decided")), ErrInvalidState, "already decided"},
		{"duplicate_email", fmt.Errorf("register: %w", ErrDuplicateEmail), ErrDuplicate, "duplicate: email already exists"},
		{"io", IO(os.ErrPermission), ErrIO, "document generation failed"},
		{"unknown", errors.New("pq: connection refused"), nil, "Server error."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.kind != nil && !errors.Is(c.err, c.kind) {
				t.Fatalf("errors.Is(%v, %v) = false", c.err, c.kind)
			}
			if got := Message(c.err); got != c.msg {
				t.Fatalf("Message() = %q, want %q", got, c.msg)
			}
		})
	}
}

func TestIOKeepsCause(t *testing.T) {
	err := IO(os.ErrPermission)
	if !errors.Is(err, os.ErrPermission) {
		t.Fatal("cause lost")
	}
}

func TestCode(t *testing.T) {
	cases := map[string]error{
		"DUPLICATE_EMAIL":               ErrDuplicateEmail,
		"DUPLICATE_REGISTRATION_NUMBER": fmt.Errorf("create: %w", ErrDuplicateRegistrationNumber),
		"VALIDATION_ERROR":              Validation("bad"),
		"NOT_FOUND":                     NotFound("account"),
		"INVALID_STATE":                 InvalidState("already %s", "approved"),
		"IO_ERROR":                      IO(errors.New("disk")),
		"INVALID_CREDENTIALS":           ErrInvalidCredential,
		"INTERNAL":                      errors.New("pq: connection refused"),
	}
	for want, err := range cases {
		if got := Code(err); got != want {
			t.Fatalf("Code(%v) = %s, want %s", err, got, want)
		}
	}
}
