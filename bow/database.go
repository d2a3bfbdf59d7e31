package bow

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Result is a single database hit.
type Result struct {
	ID    int
	Score float64
}

// Database is an append-only store of BoW vectors with an inverted index
// for scored retrieval. Entry ids are assigned densely from 0 in insertion
// order. Reads take a shared lock; Add takes an exclusive lock. Queries
// never mutate the database.
type Database struct {
	mu      sync.RWMutex
	vectors []Vector
	posting map[uint32]*roaring.Bitmap
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		posting: make(map[uint32]*roaring.Bitmap),
	}
}

// Add appends v and returns its assigned id.
func (db *Database) Add(v Vector) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := len(db.vectors)
	db.vectors = append(db.vectors, v)
	for word := range v {
		pl, ok := db.posting[word]
		if !ok {
			pl = roaring.New()
			db.posting[word] = pl
		}
		pl.Add(uint32(id))
	}
	return id
}

// Size returns the number of stored vectors.
func (db *Database) Size() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vectors)
}

// At returns the vector stored under id, or nil if id is out of range.
func (db *Database) At(id int) Vector {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if id < 0 || id >= len(db.vectors) {
		return nil
	}
	return db.vectors[id]
}

// Query returns up to k results scored against v, restricted to ids
// <= maxID (maxID < 0 means unbounded), ordered by descending score with
// ties broken by ascending id. Only entries sharing at least one word with
// v are considered; disjoint vectors score 0 and are not returned.
func (db *Database) Query(v Vector, k, maxID int) []Result {
	if k <= 0 {
		return nil
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	candidates := roaring.New()
	for word := range v {
		if pl, ok := db.posting[word]; ok {
			candidates.Or(pl)
		}
	}

	ceil := len(db.vectors) - 1
	if maxID >= 0 && maxID < ceil {
		ceil = maxID
	}
	if ceil < 0 {
		return nil
	}

	results := make([]Result, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if id > ceil {
			break
		}
		results = append(results, Result{ID: id, Score: Score(v, db.vectors[id])})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}
