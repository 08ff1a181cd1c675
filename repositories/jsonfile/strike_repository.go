// Package jsonfile stores strike state in a single JSON document on disk.
//
// The document layout is
//
//	{"strikes": {"<provider>": {"struck_at": "...", "reason": "...", "renews_at": "..."}}}
//
// with RFC 3339 UTC timestamps.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

var _ repositories.StrikeRepository = (*StrikeRepository)(nil)

type document struct {
	Strikes map[string]fileRecord `json:"strikes"`
}

type fileRecord struct {
	StruckAt string `json:"struck_at"`
	Reason   string `json:"reason"`
	RenewsAt string `json:"renews_at"`
}

// StrikeRepository implements repositories.StrikeRepository on top of a JSON file
type StrikeRepository struct {
	path   string
	mu     sync.Mutex
	logger *zap.Logger
}

// NewStrikeRepository creates a repository that reads and writes the file at path.
// The file and its parent directories are created on first write.
func NewStrikeRepository(path string, logger *zap.Logger) *StrikeRepository {
	return &StrikeRepository{
		path:   path,
		logger: logger,
	}
}

// Path returns the backing file path
func (r *StrikeRepository) Path() string {
	return r.path
}

// Load reads all strikes from disk. A missing file yields an empty map.
// Records with unparsable timestamps are returned with a zero RenewsAt
// so they are treated as already expired.
func (r *StrikeRepository) Load(_ context.Context) (map[string]models.StrikeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readDocument()
	if err != nil {
		return map[string]models.StrikeRecord{}, err
	}

	strikes := make(map[string]models.StrikeRecord, len(doc.Strikes))
	for id, fr := range doc.Strikes {
		strikes[id] = models.StrikeRecord{
			ProviderID: id,
			StruckAt:   parseTimestamp(fr.StruckAt),
			Reason:     fr.Reason,
			RenewsAt:   parseTimestamp(fr.RenewsAt),
		}
	}
	return strikes, nil
}

// Upsert writes rec into the document, replacing any previous strike for the provider
func (r *StrikeRepository) Upsert(_ context.Context, rec models.StrikeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readDocument()
	if err != nil {
		r.logger.Warn("discarding unreadable strike file",
			zap.String("path", r.path),
			zap.Error(err))
		doc = &document{Strikes: map[string]fileRecord{}}
	}

	doc.Strikes[rec.ProviderID] = fileRecord{
		StruckAt: formatTimestamp(rec.StruckAt),
		Reason:   rec.Reason,
		RenewsAt: formatTimestamp(rec.RenewsAt),
	}

	return r.writeDocument(doc)
}

// Delete removes the given providers from the document
func (r *StrikeRepository) Delete(_ context.Context, providerIDs ...string) error {
	if len(providerIDs) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.readDocument()
	if err != nil {
		doc = &document{Strikes: map[string]fileRecord{}}
	}

	for _, id := range providerIDs {
		delete(doc.Strikes, id)
	}

	return r.writeDocument(doc)
}

// Close is a no-op for the file repository
func (r *StrikeRepository) Close() error {
	return nil
}

func (r *StrikeRepository) readDocument() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Strikes: map[string]fileRecord{}}, nil
		}
		return nil, fmt.Errorf("failed to read strike file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse strike file: %w", err)
	}
	if doc.Strikes == nil {
		doc.Strikes = map[string]fileRecord{}
	}
	return &doc, nil
}

// writeDocument replaces the file atomically via a temp file and rename
func (r *StrikeRepository) writeDocument(doc *document) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create strike directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal strikes: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".strikes-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write strikes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace strike file: %w", err)
	}

	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp accepts RFC 3339 with or without fractional seconds.
// Anything else maps to the zero time.
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
