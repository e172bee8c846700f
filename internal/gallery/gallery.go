// Package gallery holds the enrolled face embeddings and answers
// nearest-neighbor queries against them by cosine similarity.
//
// The gallery is a flat, append-only list searched linearly. It is safe for
// concurrent use: searches run under a read lock, additions under a write lock.
package gallery

import (
	"errors"
	"log"
	"os"
	"sort"
	"sync"
)

// Entry is a single enrolled (identity, embedding) pair.
type Entry struct {
	UserID    string
	Embedding []float32
}

// Match is the best gallery entry for a query.
type Match struct {
	UserID string
	Score  float64
	Index  int // position of the entry in insertion order
}

// Identity summarizes how many samples are enrolled under one label.
type Identity struct {
	UserID  string
	Samples int
}

// Gallery stores enrolled embeddings in two parallel slices.
type Gallery struct {
	userIDs  []string
	features [][]float32
	norms    []float64 // cached magnitude of each feature
	mu       sync.RWMutex
	saveMu   sync.Mutex // serializes Save calls
	path     string     // Path to save/load the gallery
}

// New creates an empty gallery persisted at path.
func New(path string) *Gallery {
	return &Gallery{path: path}
}

// Path returns the file the gallery is persisted to.
func (g *Gallery) Path() string {
	return g.path
}

// Load replaces the in-memory state with the persisted file.
// A missing file leaves the gallery empty. A corrupt or unreadable file is
// logged and also leaves the gallery empty, so startup never fails here.
// Returns the number of loaded entries.
func (g *Gallery) Load() int {
	entries, err := ReadFile(g.path)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.reset()

	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("No existing gallery found at %s, starting fresh", g.path)
		return 0
	case err != nil:
		log.Printf("Warning: failed to load gallery from %s: %v", g.path, err)
		return 0
	}

	for _, e := range entries {
		g.appendLocked(e.UserID, e.Embedding)
	}
	log.Printf("Loaded %d faces from gallery %s", len(g.userIDs), g.path)
	return len(g.userIDs)
}

// Save writes the current state to the gallery file.
// The in-memory gallery stays usable when this fails.
func (g *Gallery) Save() error {
	g.saveMu.Lock()
	defer g.saveMu.Unlock()

	return WriteFile(g.path, g.Entries())
}

// Add appends an entry. The embedding is copied; no validation or
// deduplication is performed and nothing is persisted until Save.
func (g *Gallery) Add(userID string, embedding []float32) {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendLocked(userID, vec)
}

func (g *Gallery) appendLocked(userID string, vec []float32) {
	g.userIDs = append(g.userIDs, userID)
	g.features = append(g.features, vec)
	g.norms = append(g.norms, norm(vec))
}

func (g *Gallery) reset() {
	g.userIDs = nil
	g.features = nil
	g.norms = nil
}

// Search returns the entry most similar to query by cosine similarity.
//
// The second return value is false when the gallery is empty, the query has
// zero magnitude, or no entry is comparable with the query. In that case the
// match is zero-valued with a score of 0.
//
// Entries with zero magnitude or a different dimensionality than the query are
// skipped. When several entries share the best score the first inserted wins.
func (g *Gallery) Search(query []float32) (Match, bool) {
	queryNorm := norm(query)
	if degenerate(queryNorm) {
		return Match{}, false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	best := Match{Index: -1}
	for i, feature := range g.features {
		if len(feature) != len(query) || degenerate(g.norms[i]) {
			continue
		}
		score := cosine(query, feature, queryNorm, g.norms[i])
		if best.Index < 0 || score > best.Score {
			best = Match{UserID: g.userIDs[i], Score: score, Index: i}
		}
	}

	if best.Index < 0 {
		return Match{}, false
	}
	return best, true
}

// Len returns the number of enrolled entries.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.userIDs)
}

// Entries returns a copy of all entries in insertion order.
func (g *Gallery) Entries() []Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := make([]Entry, len(g.userIDs))
	for i := range g.userIDs {
		vec := make([]float32, len(g.features[i]))
		copy(vec, g.features[i])
		entries[i] = Entry{UserID: g.userIDs[i], Embedding: vec}
	}
	return entries
}

// Identities returns each distinct label with its sample count, sorted by label.
func (g *Gallery) Identities() []Identity {
	g.mu.RLock()
	counts := make(map[string]int)
	for _, id := range g.userIDs {
		counts[id]++
	}
	g.mu.RUnlock()

	identities := make([]Identity, 0, len(counts))
	for id, n := range counts {
		identities = append(identities, Identity{UserID: id, Samples: n})
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].UserID < identities[j].UserID
	})
	return identities
}
