package pdf

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/models"
)

func sample() (models.LeaveRequest, models.Owner) {
	reg := "21CS001"
	return models.LeaveRequest{
			ID:        7,
			Reason:    "Medical",
			StartDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Status:    models.LeavePending,
		}, models.Owner{
			ID: 2, Name: "Asha Rao", Email: "asha@cse.edu", RegistrationNumber: &reg,
		}
}

func assertPDF(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("%s is not a PDF", path)
	}
	return b
}

func TestGenerate_WithoutSignature(t *testing.T) {
	dir := t.TempDir()
	g := New(Options{Dir: dir, SignaturePath: filepath.Join(dir, "missing.png")}, nil)
	l, o := sample()

	path, err := g.Generate(context.Background(), l, o)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "leave_7.pdf" {
		t.Fatalf("name = %s", path)
	}
	assertPDF(t, path)

	// повторная генерация пишет в тот же файл
	again, err := g.Generate(context.Background(), l, o)
	if err != nil || again != path {
		t.Fatalf("regenerate: %s %v", again, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestGenerate_WithSignature(t *testing.T) {
	dir := t.TempDir()
	sig := filepath.Join(dir, "admin_signature.png")
	if err := imaging.Save(imaging.New(800, 200, color.NRGBA{A: 255}), sig); err != nil {
		t.Fatal(err)
	}
	plain := New(Options{Dir: t.TempDir()}, nil)
	signed := New(Options{Dir: dir, SignaturePath: sig}, nil)
	l, o := sample()

	p1, err := plain.Generate(context.Background(), l, o)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := signed.Generate(context.Background(), l, o)
	if err != nil {
		t.Fatal(err)
	}
	if len(assertPDF(t, p2)) <= len(assertPDF(t, p1)) {
		t.Fatal("signed letter should embed the image")
	}
}

func TestGenerate_IOFailure(t *testing.T) {
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	g := New(Options{Dir: notDir}, nil)
	l, o := sample()
	if _, err := g.Generate(context.Background(), l, o); !errors.Is(err, apperr.ErrIO) {
		t.Fatalf("want io error, got %v", err)
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)); got != "Mon Jan 01 2024" {
		t.Fatalf("got %q", got)
	}
}
