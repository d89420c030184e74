package dataset

import (
	"context"
	"fmt"
	"time"

	"uidai-insights/internal/logging"
	"uidai-insights/internal/models"
	"uidai-insights/internal/source"
)

// SourceLoader loads records straight from each kind's configured source
type SourceLoader struct {
	fetcher source.Fetcher
	sources map[Kind]string
}

// NewSourceLoader creates a loader reading the given URI per kind
func NewSourceLoader(fetcher source.Fetcher, sources map[Kind]string) *SourceLoader {
	s := make(map[Kind]string, len(sources))
	for k, v := range sources {
		s[k] = v
	}
	return &SourceLoader{fetcher: fetcher, sources: s}
}

// LoadRecords fetches, parses and preprocesses the kind's source
func (l *SourceLoader) LoadRecords(ctx context.Context, kind Kind) ([]models.Record, error) {
	uri, ok := l.sources[kind]
	if !ok {
		return nil, fmt.Errorf("no source configured for %s: %w", kind, ErrUnknownKind)
	}
	return Load(ctx, l.fetcher, kind, uri)
}

// Load fetches uri and turns it into records of the given kind
func Load(ctx context.Context, fetcher source.Fetcher, kind Kind, uri string) ([]models.Record, error) {
	start := time.Now()

	data, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s dataset: %w", kind, err)
	}

	table, err := Read(uri, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s dataset: %w", kind, err)
	}

	records := Preprocess(kind, table)
	logging.Info().
		Str("dataset", kind.String()).
		Str("source", uri).
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("dataset loaded")
	return records, nil
}
