// Package output materializes generated files and metadata dumps on disk.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Yrrrrrf/ts-forge/internal/generator"
	"github.com/Yrrrrrf/ts-forge/internal/schema"
)

// Dump formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DumpFileName returns the metadata dump file name for format
func DumpFileName(format string) string {
	return "metadata." + strings.ToLower(format)
}

// Writer writes generated artifacts into one directory
type Writer struct {
	OutputDir string
	logger    *zap.Logger
}

// NewWriter creates a writer for outputDir
func NewWriter(outputDir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		OutputDir: outputDir,
		logger:    logger.Named("output"),
	}
}

// Write writes every file into the output directory, creating it if needed,
// and returns the written paths in order
func (w *Writer) Write(files []generator.File) ([]string, error) {
	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path, err := w.path(f.Path)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		w.logger.Debug("Wrote file", zap.String("path", path), zap.Int("bytes", len(f.Content)))
		written = append(written, path)
	}
	return written, nil
}

// WriteDump writes the full metadata snapshot as metadata.json or metadata.yaml
func (w *Writer) WriteDump(schemas []schema.SchemaMetadata, format string) (string, error) {
	var buf bytes.Buffer
	if err := EncodeDump(&buf, schemas, format); err != nil {
		return "", err
	}

	written, err := w.Write([]generator.File{{Path: DumpFileName(format), Content: buf.String()}})
	if err != nil {
		return "", err
	}
	return written[0], nil
}

// EncodeDump encodes schemas to out. JSON is tab-indented.
func EncodeDump(out io.Writer, schemas []schema.SchemaMetadata, format string) error {
	if schemas == nil {
		schemas = []schema.SchemaMetadata{}
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "\t")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(schemas); err != nil {
			return fmt.Errorf("failed to encode metadata as json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(schemas); err != nil {
			return fmt.Errorf("failed to encode metadata as yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode metadata as yaml: %w", err)
		}
	default:
		return fmt.Errorf("unsupported dump format %q (use %s or %s)", format, FormatJSON, FormatYAML)
	}
	return nil
}

// path resolves a generated file name inside the output directory; names
// that would escape it are rejected
func (w *Writer) path(name string) (string, error) {
	if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
		return "", fmt.Errorf("invalid output file name %q", name)
	}
	return filepath.Join(w.OutputDir, name), nil
}
