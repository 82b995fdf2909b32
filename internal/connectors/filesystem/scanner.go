package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/radnorm/radnorm/internal/core/domain"
)

// mediaTypes maps file extensions to declared media types. Files with
// other extensions are skipped; the parser registry sniffs anything the
// declaration gets wrong.
var mediaTypes = map[string]string{
	".xml":  "application/xml",
	".json": "application/json",
}

// Scanner walks directory trees collecting annotation export files.
type Scanner struct {
	exts map[string]string
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithExtensions restricts the scan to the given extensions (with dots).
// Unknown extensions declare no media type and rely on content sniffing.
func WithExtensions(exts ...string) ScannerOption {
	return func(s *Scanner) {
		s.exts = make(map[string]string, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(ext)
			s.exts[ext] = mediaTypes[ext]
		}
	}
}

// NewScanner creates a scanner accepting .xml and .json files.
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{exts: mediaTypes}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and returns a raw input per matching file, in walk
// order. The context cancels a long walk between files.
func (s *Scanner) Scan(ctx context.Context, root string) ([]domain.RawInput, error) {
	var inputs []domain.RawInput

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isHidden(d.Name()) && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		input, ok, err := s.read(path)
		if err != nil {
			return err
		}
		if ok {
			inputs = append(inputs, input)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return inputs, nil
}

// read loads one file as a raw input. ok is false for extensions the
// scanner does not accept.
func (s *Scanner) read(path string) (domain.RawInput, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	mediaType, accepted := s.exts[ext]
	if !accepted {
		return domain.RawInput{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawInput{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.RawInput{}, false, fmt.Errorf("reading %s: %w", path, err)
	}

	return domain.RawInput{
		SourceIdentifier: path,
		MediaType:        mediaType,
		Content:          content,
		Metadata: map[string]any{
			"size_bytes":  info.Size(),
			"modified_at": info.ModTime().UTC(),
		},
	}, true, nil
}

// isHidden reports whether a file or directory name is dot-prefixed.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
