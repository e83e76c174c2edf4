// Package mask rewrites the text-bearing XML parts of an office document,
// replacing every occurrence of a flagged value with a fixed redaction
// marker while preserving the rest of the container byte-for-byte.
package mask

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/logger"
)

const wordDocumentPart = "word/document.xml"

var (
	// ErrNoMaskingData signals an empty masking value set. This is the
	// legitimate "no PII found" outcome, not a failure.
	ErrNoMaskingData = errors.New("no masking data")
	// ErrMasking is returned when the expected text-bearing XML part is
	// absent or the container cannot be rewritten.
	ErrMasking = errors.New("masking failed")
)

// Engine applies the masking value set to a document container
type Engine struct {
	outputDir string
	marker    string
	logger    *logger.Logger
}

// NewEngine creates a masking engine writing into cfg.OutputDir
func NewEngine(cfg config.MaskingConfig, log *logger.Logger) *Engine {
	marker := cfg.Marker
	if marker == "" {
		marker = "****"
	}
	return &Engine{
		outputDir: cfg.OutputDir,
		marker:    marker,
		logger:    log,
	}
}

// Mask produces a masked copy of the document at path, replacing every
// literal occurrence of every value with the marker inside the container's
// text nodes. Returns the output path.
//
// Values are applied in descending length order (ties lexicographic) so
// overlapping values mask deterministically with longer matches winning.
func (e *Engine) Mask(path string, values []string) (string, error) {
	values = sortValues(values)
	if len(values) == 0 {
		return "", ErrNoMaskingData
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrMasking, path, err)
	}
	defer zr.Close()

	targets, err := targetParts(&zr.Reader)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir: %v", ErrMasking, err)
	}

	// Stage into a scratch file and rename in only on success, so a failed
	// run leaves nothing in the output location.
	tmp, err := os.CreateTemp(e.outputDir, ".masked-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create scratch file: %v", ErrMasking, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	replace := func(text string) string {
		for _, v := range values {
			text = strings.ReplaceAll(text, v, e.marker)
		}
		return text
	}

	zw := zip.NewWriter(tmp)
	for _, f := range zr.File {
		tag, rewrite := targets[f.Name]
		if !rewrite {
			// Untouched entries keep their exact compressed bytes
			if err := zw.Copy(f); err != nil {
				return "", fmt.Errorf("%w: copy %s: %v", ErrMasking, f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrMasking, f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: read %s: %v", ErrMasking, f.Name, err)
		}

		masked := rewriteTextNodes(data, tag, replace)

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
		})
		if err != nil {
			return "", fmt.Errorf("%w: create %s: %v", ErrMasking, f.Name, err)
		}
		if _, err := w.Write(masked); err != nil {
			return "", fmt.Errorf("%w: write %s: %v", ErrMasking, f.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("%w: finalize container: %v", ErrMasking, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: close scratch file: %v", ErrMasking, err)
	}

	outPath := filepath.Join(e.outputDir, maskedName(filepath.Base(path)))
	if err := os.Rename(tmpPath, outPath); err != nil {
		return "", fmt.Errorf("%w: move output: %v", ErrMasking, err)
	}
	committed = true

	e.logger.Info("Document masked",
		zap.String("source", path),
		zap.String("output", outPath),
		zap.Int("values", len(values)),
	)

	return outPath, nil
}

// targetParts maps each text-bearing part of the container to the element
// tag whose text nodes must be rewritten. Word containers carry their body
// in word/document.xml (w:t runs); Excel containers carry shared strings
// and per-sheet inline strings (t nodes).
func targetParts(zr *zip.Reader) (map[string]string, error) {
	targets := make(map[string]string)

	for _, f := range zr.File {
		switch {
		case f.Name == wordDocumentPart:
			targets[f.Name] = "w:t"
		case f.Name == "xl/sharedStrings.xml":
			targets[f.Name] = "t"
		case strings.HasPrefix(f.Name, "xl/worksheets/") && strings.HasSuffix(f.Name, ".xml"):
			targets[f.Name] = "t"
		}
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: no text-bearing part in container", ErrMasking)
	}

	return targets, nil
}

// sortValues orders the masking value set by descending length, ties
// lexicographic, dropping empties. A fixed order keeps output reproducible
// and makes longer matches win over their substrings.
func sortValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// maskedName derives the output filename: the source base name with
// "(masked)" inserted before the extension.
func maskedName(base string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "(masked)" + ext
}
