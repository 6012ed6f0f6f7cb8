package storage

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"github.com/Krishna180104/cse-leave/internal/apperr"
)

func pngBytes(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestSaveImage_ResizesAndRemoves(t *testing.T) {
	f, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f.now = func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) }

	path, err := f.SaveImage("my card.png", pngBytes(t, 2000, 100))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(path, "20240102-") || !strings.HasSuffix(path, "my_card.png") {
		t.Fatalf("unexpected name %s", path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != MaxImageWidth {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}

	if err := f.Remove(path); err != nil {
		t.Fatal(err)
	}
	if f.Exists(path) {
		t.Fatal("file still there")
	}
	// повторное удаление — не ошибка
	if err := f.Remove(path); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if err := f.Remove(""); err != nil {
		t.Fatal(err)
	}
}

func TestSaveImage_RejectsNonImage(t *testing.T) {
	f, _ := New(t.TempDir())
	_, err := f.SaveImage("doc.pdf", strings.NewReader("%PDF-1.4 nope"))
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestUniqueName(t *testing.T) {
	f := &Files{dir: "x", now: time.Now}
	a, b := f.UniqueName("../../etc/passwd"), f.UniqueName("../../etc/passwd")
	if a == b {
		t.Fatal("names must differ")
	}
	if strings.Contains(a, "/") || !strings.HasSuffix(a, "passwd") {
		t.Fatalf("unsafe name %s", a)
	}
	if got := f.UniqueName(""); !strings.HasSuffix(got, "upload") {
		t.Fatalf("empty name -> %s", got)
	}
}
