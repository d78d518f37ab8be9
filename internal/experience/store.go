// Package experience records past run outcomes and recalls the ones
// most similar to a new goal. The orchestrator treats it as a soft
// dependency: reads tolerate staleness and writes are best effort.
package experience

import (
	"context"
	"errors"
	"time"

	"workforce/pkg/models"
)

// ErrStoreUnavailable indicates the backing store could not be reached.
// Callers log and swallow it; it never propagates to a run.
var ErrStoreUnavailable = errors.New("experience store unavailable")

// Record is a persisted summary of one past run.
type Record struct {
	// RunID is the run this record summarizes.
	RunID string `json:"run_id"`
	// Goal is the original goal text; its fingerprint is the search key.
	Goal string `json:"goal"`
	// Outcome is a short summary of what the run produced.
	Outcome string `json:"outcome"`
	// Verdict is the run-level verdict.
	Verdict models.Verdict `json:"verdict"`
	// Status is the terminal run status.
	Status models.RunStatus `json:"status"`
	// Cost is the total committed cost of the run in EUR.
	Cost float64 `json:"cost"`
	// CreatedAt is when the record was written.
	CreatedAt time.Time `json:"created_at"`
	// Similarity is the cosine similarity to the query goal, populated
	// on query results only.
	Similarity float32 `json:"-"`
}

// Store is the similarity-searchable record of past runs. The
// similarity metric is an implementation detail behind this interface.
type Store interface {
	// Query returns up to k records whose goal fingerprint is at least
	// minSimilarity close to the given goal, most similar first.
	Query(ctx context.Context, goal string, k int, minSimilarity float32) ([]Record, error)

	// Write persists one record. Best effort: callers treat an error as
	// log-and-continue.
	Write(ctx context.Context, rec Record) error

	// Close releases the store's resources.
	Close() error
}
