// Package source reads the scrape collaborator's output: fire-ban areas, the
// facilities directory, closure notices, and the optional structured impacts
// produced by the enrichment step. JSON and YAML files are both accepted.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/couchcryptid/forest-data-etl/internal/domain"
)

// ErrUnsupportedFormat is returned for files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// document is the on-disk shape. Timestamps and statuses stay as text here
// so that a malformed value degrades one notice, not the whole file.
type document struct {
	FireBanAreas   []domain.FireBanArea            `json:"fireBanAreas" yaml:"fireBanAreas"`
	Facilities     []domain.FacilityEntry          `json:"facilities" yaml:"facilities"`
	Closures       []notice                        `json:"closures" yaml:"closures"`
	ClosureImpacts map[string]domain.ClosureImpact `json:"closureImpacts" yaml:"closureImpacts"`
}

type notice struct {
	ID               string                `json:"id" yaml:"id"`
	Title            string                `json:"title" yaml:"title"`
	ForestNameHint   string                `json:"forestNameHint" yaml:"forestNameHint"`
	Status           string                `json:"status" yaml:"status"`
	ListedAt         string                `json:"listedAt" yaml:"listedAt"`
	UntilAt          string                `json:"untilAt" yaml:"untilAt"`
	DetailText       string                `json:"detailText" yaml:"detailText"`
	StructuredImpact *domain.ClosureImpact `json:"structuredImpact" yaml:"structuredImpact"`
}

// FileLoader loads SourceData from a file path.
type FileLoader struct {
	path   string
	logger *slog.Logger
}

// NewFileLoader creates a loader for path. The format is chosen by extension:
// .yaml/.yml for YAML, anything else is parsed as JSON.
func NewFileLoader(path string, logger *slog.Logger) *FileLoader {
	return &FileLoader{path: path, logger: logger}
}

// Load reads and decodes the source file.
func (l *FileLoader) Load(ctx context.Context) (domain.SourceData, error) {
	if err := ctx.Err(); err != nil {
		return domain.SourceData{}, err
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.SourceData{}, fmt.Errorf("read source %s: %w", l.path, err)
	}
	out, err := Decode(data, formatOf(l.path), l.logger)
	if err != nil {
		return domain.SourceData{}, fmt.Errorf("decode source %s: %w", l.path, err)
	}
	return out, nil
}

// Format identifies a source encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a source document.
func Decode(data []byte, format Format, logger *slog.Logger) (domain.SourceData, error) {
	var doc document
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return domain.SourceData{}, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return domain.SourceData{}, err
		}
	default:
		return domain.SourceData{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	out := domain.SourceData{
		FireBanAreas: doc.FireBanAreas,
		Facilities:   doc.Facilities,
		Closures:     make([]domain.ClosureNotice, 0, len(doc.Closures)),
	}
	for _, n := range doc.Closures {
		cn := domain.ClosureNotice{
			ID:               n.ID,
			Title:            n.Title,
			ForestNameHint:   n.ForestNameHint,
			Status:           domain.ParseClosureStatus(n.Status),
			DetailText:       n.DetailText,
			StructuredImpact: n.StructuredImpact,
		}
		if impact, ok := doc.ClosureImpacts[n.ID]; ok && cn.StructuredImpact == nil {
			cn.StructuredImpact = &impact
		}
		cn.ListedAt = parseTime(n.ListedAt, n.ID, "listedAt", logger)
		cn.UntilAt = parseTime(n.UntilAt, n.ID, "untilAt", logger)
		out.Closures = append(out.Closures, cn)
	}
	return out, nil
}

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime returns nil for blank or unparseable values. An unparseable
// bound is treated as absent, which widens the notice's active window.
func parseTime(raw, id, field string, logger *slog.Logger) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	logger.Warn("ignoring unparseable closure timestamp", "notice_id", id, "field", field, "value", raw)
	return nil
}
