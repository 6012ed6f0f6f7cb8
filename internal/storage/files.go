// Package storage keeps uploaded images and generated letters on the local disk.
package storage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/Krishna180104/cse-leave/internal/apperr"
)

// MaxImageWidth — ширина, до которой ужимаются фото студбилетов.
const MaxImageWidth = 1600

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

type Files struct {
	dir string
	now func() time.Time
}

func New(dir string) (*Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Files{dir: dir, now: time.Now}, nil
}

func (f *Files) Dir() string { return f.dir }

// Path — путь файла внутри каталога загрузок.
func (f *Files) Path(name string) string {
	return filepath.Join(f.dir, filepath.Base(name))
}

// UniqueName строит имя вида 20240101-<uuid>-<safe name>.
func (f *Files) UniqueName(original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	safe := unsafeChars.ReplaceAllString(base, "_")
	if safe == "" || safe == "." || safe == "_" {
		safe = "upload"
	}
	return fmt.Sprintf("%s-%s-%s", f.now().Format("20060102"), uuid.New().String(), safe)
}

// SaveImage декодирует загрузку, поворачивает по EXIF, ужимает слишком широкие
// снимки и сохраняет под уникальным именем. Возвращает путь сохранённого файла.
func (f *Files) SaveImage(original string, r io.Reader) (string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return "", apperr.Validation("idCardImage must be a JPEG or PNG image")
	}
	if img.Bounds().Dx() > MaxImageWidth {
		img = imaging.Resize(img, MaxImageWidth, 0, imaging.Lanczos)
	}

	name := f.UniqueName(original)
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		name += ".jpg"
	}
	path := f.Path(name)
	if err := save(img, path); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

func save(img image.Image, path string) error {
	return imaging.Save(img, path, imaging.JPEGQuality(85))
}

// Remove удаляет файл; отсутствие файла ошибкой не считается.
func (f *Files) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := os.Remove(f.Path(path))
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("remove %s: %w", filepath.Base(path), err)
}

// Exists сообщает, лежит ли файл в каталоге.
func (f *Files) Exists(path string) bool {
	st, err := os.Stat(f.Path(path))
	return err == nil && !st.IsDir()
}
