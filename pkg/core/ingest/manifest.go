package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"statement_stitch/pkg/models"
)

// Manifest lists the filings of one entity:
//
//	entity: ACME
//	filings:
//	  - path: fy2023.xlsx
//	    period: FY2023
//	    filed_at: 2024-02-01
type Manifest struct {
	Entity  string          `yaml:"entity"`
	Filings []ManifestEntry `yaml:"filings"`

	// BaseDir resolves relative entry paths. LoadManifest sets it to the
	// manifest's directory.
	BaseDir string `yaml:"-"`
}

// ManifestEntry describes one source. Only Path is required.
type ManifestEntry struct {
	ID      string `yaml:"id"`
	Path    string `yaml:"path"`
	Format  string `yaml:"format"`
	Period  string `yaml:"period"`
	FiledAt string `yaml:"filed_at"`
	Entity  string `yaml:"entity"`
	Title   string `yaml:"title"`
}

// LoadManifest reads a YAML manifest from disk.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read manifest %s", path)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest %s", path)
	}
	m.BaseDir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	for i, e := range m.Filings {
		if e.Path == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i)
		}
	}
	return &m, nil
}

// EntryError is a manifest entry that failed to load. Failures do not stop
// the remaining entries.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }
func (e *EntryError) Unwrap() error { return e.Err }

// Result is the outcome of loading a manifest.
type Result struct {
	Filings  []models.Filing
	Failures []*EntryError
}

// Loader reads sources from disk or, through its fetcher, from http(s).
type Loader struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

// NewLoader creates a loader. A nil fetcher gets an uncached default.
func NewLoader(fetcher *Fetcher, logger *zap.Logger) *Loader {
	if fetcher == nil {
		fetcher = NewFetcher("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// Load reads every manifest entry with a default loader.
func Load(ctx context.Context, m *Manifest) Result {
	return NewLoader(nil, nil).Load(ctx, m)
}

// LoadFile reads one source. An empty format is detected from the path.
func (l *Loader) LoadFile(ctx context.Context, path string, format Format) ([]models.Filing, error) {
	if format == "" {
		f, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if IsRemote(path) {
		data, err := l.fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		return Decode(data, format, path)
	}
	switch format {
	case FormatXLSX:
		return LoadXLSX(path)
	case FormatXLS:
		return LoadXLS(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}
	return Decode(data, format, path)
}

// Load reads every entry, applying the entry's metadata to the filings it
// yields. A workbook entry with an explicit ID and several sheets gets
// "<id>/<sheet>" IDs.
func (l *Loader) Load(ctx context.Context, m *Manifest) Result {
	var res Result
	for _, e := range m.Filings {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, &EntryError{Path: e.Path, Err: err})
			continue
		}
		filings, err := l.loadEntry(ctx, m, e)
		if err != nil {
			l.logger.Warn("skipping manifest entry", zap.String("path", e.Path), zap.Error(err))
			res.Failures = append(res.Failures, &EntryError{Path: e.Path, Err: err})
			continue
		}
		l.logger.Debug("loaded manifest entry", zap.String("path", e.Path), zap.Int("filings", len(filings)))
		res.Filings = append(res.Filings, filings...)
	}
	return res
}

func (l *Loader) loadEntry(ctx context.Context, m *Manifest, e ManifestEntry) ([]models.Filing, error) {
	path := e.Path
	if !IsRemote(path) && !filepath.IsAbs(path) && m.BaseDir != "" {
		path = filepath.Join(m.BaseDir, path)
	}
	var format Format
	if e.Format != "" {
		f, err := DetectFormat(e.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	filings, err := l.LoadFile(ctx, path, format)
	if err != nil {
		return nil, err
	}

	var filedAt time.Time
	if e.FiledAt != "" {
		at, err := ParseDate(e.FiledAt)
		if err != nil {
			return nil, err
		}
		filedAt = at
	}
	for i := range filings {
		f := &filings[i]
		if e.ID != "" {
			f.ID = e.ID
			if len(filings) > 1 {
				f.ID = e.ID + "/" + f.Title
			}
		}
		switch {
		case e.Entity != "":
			f.Entity = e.Entity
		case f.Entity == "":
			f.Entity = m.Entity
		}
		if e.Period != "" {
			f.PeriodLabel = e.Period
		}
		if e.Title != "" && len(filings) == 1 {
			f.Title = e.Title
		}
		if !filedAt.IsZero() {
			f.FiledAt = filedAt
		}
	}
	return filings, nil
}
