package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivemirror/internal/testing/mocks"
	"github.com/dl-alexandre/drivemirror/internal/vcs"
)

func TestParsePageCount(t *testing.T) {
	tests := []struct {
		name  string
		info  string
		want  int
		found bool
	}{
		{"typical", "Producer: x\nPages:          3\nEncrypted: no\n", 3, true},
		{"zero", "Pages: 0\n", 0, true},
		{"missing", "Producer: x\n", 0, false},
		{"garbage", "Pages: many\n", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePageCount(tt.info)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// popplerStub answers pdfinfo with pages and creates the requested png for
// pdftoppm unless the page is in failPages.
func popplerStub(pages string, failPages map[string]bool) *mocks.MockExecutor {
	m := mocks.NewMockExecutor()
	m.ExecuteFunc = func(_ context.Context, name string, args []string, _ vcs.Options) (*vcs.Result, error) {
		switch name {
		case "pdfinfo":
			return &vcs.Result{Stdout: "Pages: " + pages + "\n"}, nil
		case "pdftoppm":
			page := args[4]
			if failPages[page] {
				return &vcs.Result{ExitCode: 1}, errors.New("pdftoppm exploded")
			}
			prefix := args[len(args)-1]
			return &vcs.Result{}, os.WriteFile(prefix+".png", []byte("png"), 0o644)
		}
		return nil, errors.New("unexpected command " + name)
	}
	return m
}

func TestRenderPagesToImages(t *testing.T) {
	out := filepath.Join(t.TempDir(), "brief--P1.pdf.pages")
	exec := popplerStub("2", nil)

	paths, err := NewRenderer(exec, nil).RenderPagesToImages(context.Background(), []byte("%PDF-1.4"), out, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(out, "page-1.png"),
		filepath.Join(out, "page-2.png"),
	}, paths)
	assert.FileExists(t, paths[0])
	assert.Equal(t, 1, exec.CallCount("pdfinfo"))
	assert.Equal(t, 2, exec.CallCount("pdftoppm"))

	args := exec.Calls()[1].Args
	assert.Equal(t, []string{"-png", "-r", "110", "-f", "1", "-l", "1", "-singlefile"}, args[:8])
}

func TestRenderPagesToImages_PageFailureContinues(t *testing.T) {
	out := t.TempDir()
	exec := popplerStub("3", map[string]bool{"2": true})

	paths, err := NewRenderer(exec, nil).RenderPagesToImages(context.Background(), []byte("%PDF-1.4"), out, 150)
	require.Error(t, err)

	var pageErr *PageError
	require.True(t, errors.As(err, &pageErr))
	assert.Equal(t, 2, pageErr.Page)
	assert.Equal(t, []string{filepath.Join(out, "page-1.png"), filepath.Join(out, "page-3.png")}, paths)
}

func TestRenderPagesToImages_RejectsResolution(t *testing.T) {
	exec := popplerStub("1", nil)
	_, err := NewRenderer(exec, nil).RenderPagesToImages(context.Background(), nil, t.TempDir(), 5)
	require.Error(t, err)
	assert.Empty(t, exec.Calls())
}

func TestRenderPagesToImages_PdfinfoFailure(t *testing.T) {
	exec := mocks.NewMockExecutor()
	exec.ExecuteFunc = func(context.Context, string, []string, vcs.Options) (*vcs.Result, error) {
		return nil, errors.New("not installed")
	}
	_, err := NewRenderer(exec, nil).RenderPagesToImages(context.Background(), []byte("x"), t.TempDir(), 0)
	require.Error(t, err)
	assert.Equal(t, 0, exec.CallCount("pdftoppm"))
}
