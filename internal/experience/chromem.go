package experience

import (
	"context"
	"fmt"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	chromem "github.com/philippgille/chromem-go"

	"workforce/pkg/models"
)

const (
	collectionName = "executions"
	queryCacheSize = 256
)

// VectorStore is a Store backed by an embedded chromem-go vector
// database with cosine similarity over goal fingerprints. Reads go
// through a small LRU cache; the store is read-mostly and callers
// tolerate staleness, so the cache is only purged on writes.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	cache      *lru.Cache[string, []Record]
}

// NewVectorStore opens a persistent store under dir. An empty dir opens
// an in-memory store, which tests use.
func NewVectorStore(dir string) (*VectorStore, error) {
	var db *chromem.DB
	var err error
	if dir != "" {
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, fmt.Errorf("open experience db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("open experience collection: %w", err)
	}

	cache, err := lru.New[string, []Record](queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	return &VectorStore{db: db, collection: collection, cache: cache}, nil
}

// Query returns up to k records at least minSimilarity close to the
// goal, most similar first.
func (s *VectorStore) Query(ctx context.Context, goal string, k int, minSimilarity float32) ([]Record, error) {
	if k <= 0 {
		k = 5
	}

	cacheKey := fmt.Sprintf("%s|%d|%.2f", goal, k, minSimilarity)
	if records, ok := s.cache.Get(cacheKey); ok {
		return records, nil
	}

	// chromem rejects nResults above the collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, goal, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var records []Record
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		rec := recordFromMetadata(r.Content, r.Metadata)
		rec.Similarity = r.Similarity
		records = append(records, rec)
	}

	s.cache.Add(cacheKey, records)
	return records, nil
}

// Write persists one record, replacing any previous record for the same
// run.
func (s *VectorStore) Write(ctx context.Context, rec Record) error {
	if rec.RunID == "" {
		return fmt.Errorf("experience record missing run id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:       rec.RunID,
		Content:  rec.Goal,
		Metadata: metadataFromRecord(rec),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.cache.Purge()
	return nil
}

// Count returns the number of stored records.
func (s *VectorStore) Count() int {
	return s.collection.Count()
}

// Close releases the store. The chromem database persists on every
// write, so there is nothing to flush.
func (s *VectorStore) Close() error {
	return nil
}

func metadataFromRecord(rec Record) map[string]string {
	return map[string]string{
		"run_id":     rec.RunID,
		"outcome":    rec.Outcome,
		"verdict":    string(rec.Verdict),
		"status":     string(rec.Status),
		"cost":       strconv.FormatFloat(rec.Cost, 'f', -1, 64),
		"created_at": rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func recordFromMetadata(goal string, meta map[string]string) Record {
	rec := Record{
		Goal:    goal,
		RunID:   meta["run_id"],
		Outcome: meta["outcome"],
		Verdict: models.Verdict(meta["verdict"]),
		Status:  models.RunStatus(meta["status"]),
	}
	if cost, err := strconv.ParseFloat(meta["cost"], 64); err == nil {
		rec.Cost = cost
	}
	if ts, err := time.Parse(time.RFC3339, meta["created_at"]); err == nil {
		rec.CreatedAt = ts
	}
	return rec
}

var _ Store = (*VectorStore)(nil)
