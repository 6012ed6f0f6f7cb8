// Package pdf renders leave approval letters.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/metrics"
	"github.com/Krishna180104/cse-leave/internal/models"
)

// DateLayout — формат дат в письмах: "Mon Jan 01 2024".
const DateLayout = "Mon Jan 02 2006"

const signatureWidthPx = 300

type Options struct {
	Dir           string
	SignaturePath string
	Department    string
	ApproverTitle string
}

type Generator struct {
	opts Options
	log  *zap.Logger
}

func New(opts Options, log *zap.Logger) *Generator {
	if opts.Department == "" {
		opts.Department = "CSE Department"
	}
	if opts.ApproverTitle == "" {
		opts.ApproverTitle = "Admin"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{opts: opts, log: log}
}

// FileName — имя письма определяется только id заявки, повторная генерация перезаписывает файл.
func FileName(requestID int64) string {
	return fmt.Sprintf("leave_%d.pdf", requestID)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Generate пишет письмо в каталог и возвращает путь к нему.
// Любой сбой возвращается как apperr.ErrIO.
func (g *Generator) Generate(ctx context.Context, l models.LeaveRequest, owner models.Owner) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.IO(err)
	}
	start := time.Now()
	defer func() { metrics.ObserveDocument(time.Since(start)) }()

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")
	doc.SetTitle(g.opts.Department+" - Leave Approval Letter", true)
	doc.SetMargins(20, 25, 20)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(g.opts.Department+" - Leave Approval Letter"), "", 1, "C", false, 0, "")
	doc.Ln(12)

	regNo := ""
	if owner.RegistrationNumber != nil {
		regNo = *owner.RegistrationNumber
	}
	doc.SetFont("Helvetica", "", 12)
	lines := []string{
		"Student Name: " + owner.Name,
		"Registration Number: " + regNo,
		"Leave Dates: " + FormatDate(l.StartDate) + " to " + FormatDate(l.EndDate),
	}
	for _, s := range lines {
		doc.CellFormat(0, 8, tr(s), "", 1, "L", false, 0, "")
	}
	doc.MultiCell(0, 8, tr("Reason: "+l.Reason), "", "L", false)
	doc.Ln(12)
	doc.CellFormat(0, 8, tr("Approved by: "+g.opts.ApproverTitle), "", 1, "L", false, 0, "")

	g.addSignature(ctx, doc)

	if err := doc.Error(); err != nil {
		return "", apperr.IO(fmt.Errorf("render letter: %w", err))
	}

	path := filepath.Join(g.opts.Dir, FileName(l.ID))
	tmp := path + ".tmp"
	if err := doc.OutputFileAndClose(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.IO(fmt.Errorf("write letter: %w", err))
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", apperr.IO(fmt.Errorf("move letter: %w", err))
	}
	logging.For(ctx, g.log).Info("approval letter generated", zap.Int64("leave_id", l.ID), zap.String("path", path))
	return path, nil
}

// addSignature вставляет подпись, если файл есть. Без подписи письмо всё равно валидно.
func (g *Generator) addSignature(ctx context.Context, doc *fpdf.Fpdf) {
	if g.opts.SignaturePath == "" {
		return
	}
	img, err := imaging.Open(g.opts.SignaturePath)
	if errors.Is(err, fs.ErrNotExist) {
		logging.For(ctx, g.log).Warn("signature not found, letter rendered without it", zap.String("path", g.opts.SignaturePath))
		return
	}
	if err != nil {
		logging.For(ctx, g.log).Warn("signature unreadable, letter rendered without it", zap.Error(err))
		return
	}
	if img.Bounds().Dx() > signatureWidthPx {
		img = imaging.Resize(img, signatureWidthPx, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		logging.For(ctx, g.log).Warn("encode signature", zap.Error(err))
		return
	}
	opt := fpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	doc.RegisterImageOptionsReader("signature", opt, &buf)
	doc.ImageOptions("signature", doc.GetX(), doc.GetY()+2, 35, 0, true, opt, 0, "")
}
