// Package render rasterizes PDF pages with the poppler command line tools.
package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dl-alexandre/drivemirror/internal/logging"
	"github.com/dl-alexandre/drivemirror/internal/utils"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

const (
	DefaultResolution = 110
	MinResolution     = 30
	MaxResolution     = 600
)

// PageError records one page that could not be rendered.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// Renderer shells out to pdfinfo and pdftoppm.
type Renderer struct {
	exec   vcs.Executor
	logger logging.Logger
}

func NewRenderer(exec vcs.Executor, logger logging.Logger) *Renderer {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Renderer{exec: exec, logger: logger}
}

// PageName is the image file name for a 1-based page number.
func PageName(page int) string {
	return fmt.Sprintf("page-%d.png", page)
}

// RenderPagesToImages writes page-N.png for every page of pdf into outDir
// and returns the written paths in page order. A page that fails is
// recorded as a *PageError and the remaining pages still render; the
// joined page errors are returned with the paths that succeeded.
func (r *Renderer) RenderPagesToImages(ctx context.Context, pdf []byte, outDir string, resolution int) ([]string, error) {
	if resolution == 0 {
		resolution = DefaultResolution
	}
	if resolution < MinResolution || resolution > MaxResolution {
		return nil, utils.NewValidationError(utils.ErrCodeInvalidArgument,
			fmt.Sprintf("resolution %d outside %d..%d", resolution, MinResolution, MaxResolution))
	}

	tmp, err := os.CreateTemp("", "drivemirror-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp pdf: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp pdf: %w", err)
	}

	pages, err := r.pageCount(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", outDir, err)
	}

	var (
		written []string
		errs    []error
	)
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out := filepath.Join(outDir, PageName(page))
		prefix := strings.TrimSuffix(out, ".png")
		n := strconv.Itoa(page)
		_, err := r.exec.Execute(ctx, "pdftoppm", []string{
			"-png", "-r", strconv.Itoa(resolution), "-f", n, "-l", n, "-singlefile", tmp.Name(), prefix,
		}, vcs.Options{Silent: true})
		if err != nil {
			r.logger.Warn("Failed to render page", logging.F("page", page), logging.F("error", err.Error()))
			errs = append(errs, &PageError{Page: page, Err: err})
			continue
		}
		written = append(written, out)
	}

	r.logger.Debug("Rendered pages",
		logging.F("outDir", outDir),
		logging.F("pages", pages),
		logging.F("written", len(written)))
	return written, errors.Join(errs...)
}

func (r *Renderer) pageCount(ctx context.Context, pdfPath string) (int, error) {
	res, err := r.exec.Execute(ctx, "pdfinfo", []string{pdfPath}, vcs.Options{Silent: true})
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	n, ok := ParsePageCount(res.Stdout)
	if !ok {
		return 0, fmt.Errorf("pdfinfo: no page count in output")
	}
	return n, nil
}

// ParsePageCount reads the "Pages:" line of pdfinfo output.
func ParsePageCount(info string) (int, bool) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		key, value, found := strings.Cut(sc.Text(), ":")
		if !found || strings.TrimSpace(key) != "Pages" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}
