// Package store persists the article dataset as a single JSON document.
// The on-disk layout is the stable interchange format other tools read,
// so the wire types here change only with a format version bump.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/techwatch"
)

const dayFormat = "2006-01-02"

type articleDoc struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Date        *string `json:"date"`
	Source      string  `json:"source"`
	Description string  `json:"description,omitempty"`
}

type dateRangeDoc struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

type metadataDoc struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	TotalArticles int           `json:"total_articles"`
	Sources       []string      `json:"sources"`
	FormatVersion string        `json:"format_version,omitempty"`
	DateRange     *dateRangeDoc `json:"date_range,omitempty"`

	// Flat earliest/latest keys written by earlier tooling. Read on
	// decode, never written.
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

type envelopeDoc struct {
	Metadata metadataDoc  `json:"metadata"`
	Articles []articleDoc `json:"articles"`
}

// Repository reads and writes the dataset file. Saves are serialized and
// atomic: a temp file in the same directory is fully written, synced and
// renamed over the target, so readers never observe a half-written
// document and a crash mid-save leaves the previous dataset intact.
type Repository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

func NewRepository(path string, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{path: path, logger: logger}
}

// Path returns the dataset file location.
func (r *Repository) Path() string { return r.path }

// Save atomically replaces the dataset with env.
func (r *Repository) Save(ctx context.Context, env techwatch.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := Encode(env)
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dataset directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp dataset file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp dataset file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp dataset file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp dataset file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replacing dataset file: %w", err)
	}
	r.logger.Debug("dataset saved",
		zap.String("path", r.path),
		zap.Int("articles", env.Metadata.TotalArticles),
	)
	return nil
}

// LoadLatest reads the current dataset. A missing file is the normal
// first-run case and yields an empty envelope; a file that exists but
// cannot be decoded is an error, never silently discarded.
func (r *Repository) LoadLatest(ctx context.Context) (techwatch.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return techwatch.Envelope{}, err
	}
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return techwatch.EmptyEnvelope(), nil
	}
	if err != nil {
		return techwatch.Envelope{}, fmt.Errorf("reading dataset file: %w", err)
	}
	env, err := Decode(data)
	if err != nil {
		return techwatch.Envelope{}, fmt.Errorf("dataset file %s: %w", r.path, err)
	}
	return env, nil
}

// Encode renders env in the interchange format. Exported so archival
// sinks can ship the exact bytes that landed on disk.
func Encode(env techwatch.Envelope) ([]byte, error) {
	doc := envelopeDoc{
		Metadata: metadataDoc{
			GeneratedAt:   env.Metadata.GeneratedAt,
			TotalArticles: env.Metadata.TotalArticles,
			Sources:       env.Metadata.Sources,
			FormatVersion: env.Metadata.FormatVersion,
		},
		Articles: make([]articleDoc, 0, len(env.Articles)),
	}
	if doc.Metadata.Sources == nil {
		doc.Metadata.Sources = []string{}
	}
	if !env.Metadata.Earliest.IsZero() && !env.Metadata.Latest.IsZero() {
		doc.Metadata.DateRange = &dateRangeDoc{
			Earliest: env.Metadata.Earliest.Format(dayFormat),
			Latest:   env.Metadata.Latest.Format(dayFormat),
		}
	}
	for _, p := range env.Articles {
		var date *string
		if !p.Date.IsZero() {
			d := p.Date.Format(dayFormat)
			date = &d
		}
		doc.Articles = append(doc.Articles, articleDoc{
			Title:       p.Title,
			URL:         p.URL,
			Date:        date,
			Source:      p.Source,
			Description: p.Description,
		})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding dataset: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses an interchange document. It is tolerant of documents
// written by older tooling: a missing format version, flat
// earliest/latest keys instead of the nested date_range object, null
// article dates and unknown extra fields all pass. An article whose date
// is present but malformed is still a hard error.
func Decode(data []byte) (techwatch.Envelope, error) {
	var doc envelopeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return techwatch.Envelope{}, fmt.Errorf("decoding dataset: %w", err)
	}
	env := techwatch.Envelope{
		Metadata: techwatch.Metadata{
			GeneratedAt:   doc.Metadata.GeneratedAt,
			TotalArticles: doc.Metadata.TotalArticles,
			Sources:       doc.Metadata.Sources,
			FormatVersion: doc.Metadata.FormatVersion,
		},
	}
	if env.Metadata.FormatVersion == "" {
		env.Metadata.FormatVersion = techwatch.FormatVersion
	}
	earliest, latest := doc.Metadata.Earliest, doc.Metadata.Latest
	if dr := doc.Metadata.DateRange; dr != nil {
		earliest, latest = dr.Earliest, dr.Latest
	}
	if earliest != "" {
		t, err := time.Parse(dayFormat, earliest)
		if err != nil {
			return techwatch.Envelope{}, fmt.Errorf("decoding dataset: bad earliest date %q: %w", earliest, err)
		}
		env.Metadata.Earliest = t
	}
	if latest != "" {
		t, err := time.Parse(dayFormat, latest)
		if err != nil {
			return techwatch.Envelope{}, fmt.Errorf("decoding dataset: bad latest date %q: %w", latest, err)
		}
		env.Metadata.Latest = t
	}
	for i, a := range doc.Articles {
		var date time.Time
		if a.Date != nil && *a.Date != "" {
			t, err := time.Parse(dayFormat, *a.Date)
			if err != nil {
				return techwatch.Envelope{}, fmt.Errorf("decoding dataset: article %d has bad date %q: %w", i, *a.Date, err)
			}
			date = t
		}
		env.Articles = append(env.Articles, techwatch.Post{
			Title:       a.Title,
			URL:         a.URL,
			Date:        date,
			Source:      a.Source,
			Description: a.Description,
		})
	}
	return env, nil
}
