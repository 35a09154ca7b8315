package pdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/pkg/storage"
)

// ErrConversion marks any failure to turn an uploaded PDF into page images.
// Callers can rely on the output directory being gone whenever it is returned.
var ErrConversion = errors.New("pdf conversion failed")

// ProgressFunc receives (pages completed, total pages). It is invoked when
// each page starts rendering and once more after the final page.
type ProgressFunc func(done, total int)

// Rasterizer renders uploaded PDFs into per-page PNGs through MuPDF.
//
// MuPDF allocates document memory outside the Go heap, so the document handle
// must be closed on every path, including abandoned renders.
type Rasterizer struct {
	store       *storage.PageStore
	dpi         float64
	pageTimeout time.Duration
	logger      *zap.Logger
}

// NewRasterizer constructs a Rasterizer writing into the given page store.
func NewRasterizer(store *storage.PageStore, dpi float64, pageTimeout time.Duration, logger *zap.Logger) *Rasterizer {
	if dpi <= 0 {
		dpi = 200
	}
	if pageTimeout <= 0 {
		pageTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rasterizer{store: store, dpi: dpi, pageTimeout: pageTimeout, logger: logger}
}

type pageRender struct {
	img image.Image
	err error
}

// Convert rasterizes every page of the PDF at srcPath into
// <materials>/<materialID>/page-NNN.png and returns the page count.
//
// Pages are written in increasing order. On any failure the partial output
// directory is removed before the error is returned, so a conversion never
// leaves half-written artifacts behind.
func (r *Rasterizer) Convert(ctx context.Context, srcPath, materialID string, onProgress ProgressFunc) (int, error) {
	doc, err := fitz.New(srcPath)
	if err != nil {
		return 0, fmt.Errorf("%w: open document: %v", ErrConversion, err)
	}
	abandoned := false
	defer func() {
		if !abandoned {
			doc.Close()
		}
	}()

	total := doc.NumPage()
	if total < 1 {
		return 0, fmt.Errorf("%w: document has no pages", ErrConversion)
	}

	outDir := r.store.DocumentDir(materialID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("%w: prepare output directory: %v", ErrConversion, err)
	}

	cleanup := func() {
		if err := r.store.DeleteDocument(materialID); err != nil {
			r.logger.Warn("failed to remove partial page artifacts",
				zap.String("material_id", materialID), zap.Error(err))
		}
	}

	for i := 0; i < total; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			cleanup()
			return 0, fmt.Errorf("%w: canceled at page %d: %v", ErrConversion, i+1, ctxErr)
		}
		if onProgress != nil {
			onProgress(i, total)
		}

		rendered := make(chan pageRender, 1)
		go func(pageIdx int) {
			img, renderErr := doc.ImageDPI(pageIdx, r.dpi)
			rendered <- pageRender{img: img, err: renderErr}
		}(i)

		select {
		case res := <-rendered:
			if res.err != nil {
				cleanup()
				return 0, fmt.Errorf("%w: render page %d: %v", ErrConversion, i+1, res.err)
			}
			if err := r.writePage(outDir, i+1, res.img); err != nil {
				cleanup()
				return 0, err
			}
		case <-ctx.Done():
			r.abandon(doc, rendered, materialID)
			abandoned = true
			return 0, fmt.Errorf("%w: canceled at page %d: %v", ErrConversion, i+1, ctx.Err())
		case <-time.After(r.pageTimeout):
			r.abandon(doc, rendered, materialID)
			abandoned = true
			return 0, fmt.Errorf("%w: page %d exceeded render timeout %s", ErrConversion, i+1, r.pageTimeout)
		}
	}

	if onProgress != nil {
		onProgress(total, total)
	}
	return total, nil
}

func (r *Rasterizer) writePage(outDir string, pageNumber int, img image.Image) error {
	name := fmt.Sprintf(storage.PageFilePattern, pageNumber)
	file, err := os.Create(filepath.Join(outDir, name))
	if err != nil {
		return fmt.Errorf("%w: create page file %s: %v", ErrConversion, name, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("%w: encode page file %s: %v", ErrConversion, name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%w: close page file %s: %v", ErrConversion, name, err)
	}
	return nil
}

// abandon lets an in-flight render finish in the background, then releases
// the native document handle and discards the partial output. MuPDF handles
// must not be closed while a render still uses them.
func (r *Rasterizer) abandon(doc *fitz.Document, rendered <-chan pageRender, materialID string) {
	go func() {
		<-rendered
		doc.Close()
		if err := r.store.DeleteDocument(materialID); err != nil {
			r.logger.Warn("failed to discard abandoned conversion",
				zap.String("material_id", materialID), zap.Error(err))
		}
	}()
}
