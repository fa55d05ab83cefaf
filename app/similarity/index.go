package similarity

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Document is a published item indexed for near-duplicate lookup.
type Document struct {
	ID       string
	Text     string
	PostedAt time.Time
}

// Match is an indexed document whose cosine similarity to a query text
// reached the configured threshold.
type Match struct {
	ID       string
	Score    float64
	PostedAt time.Time
}

type entry struct {
	id       string
	postedAt time.Time
	terms    map[string]int
}

// Index holds TF-IDF vectors for recently published items inside a rolling
// time window. Lookups return candidates only; a separate verification step
// decides whether a candidate is an actual duplicate.
type Index struct {
	mu        sync.Mutex
	threshold float64
	window    time.Duration
	entries   []entry
	df        map[string]int
	pruned    int
}

func NewIndex(threshold float64, window time.Duration) *Index {
	return &Index{
		threshold: threshold,
		window:    window,
		df:        make(map[string]int),
	}
}

// Load replaces the index contents with the given documents.
func (x *Index) Load(docs []Document) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.entries = x.entries[:0]
	x.df = make(map[string]int)
	x.pruned = 0
	for _, doc := range docs {
		x.append(doc)
	}
}

// Add indexes one more document without touching the existing entries.
func (x *Index) Add(doc Document) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.append(doc)
}

func (x *Index) append(doc Document) {
	terms := Tokenize(doc.Text)
	if len(terms) == 0 {
		return
	}
	for term := range terms {
		x.df[term]++
	}
	x.entries = append(x.entries, entry{id: doc.ID, postedAt: doc.PostedAt, terms: terms})
}

// Candidates returns indexed documents similar to the text, highest score
// first; equal scores order most recent first. Entries older than the window
// relative to asOf are skipped and eventually dropped.
func (x *Index) Candidates(text string, asOf time.Time) []Match {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.prune(asOf)

	terms := Tokenize(text)
	if len(terms) == 0 || len(x.entries) == 0 {
		return nil
	}

	// Query terms participate in document frequencies so a term unique to
	// the query and one candidate still discriminates.
	n := len(x.entries) + 1
	query := x.vector(terms, n)

	var matches []Match
	for _, e := range x.entries {
		score := cosine(query, x.vector(e.terms, n))
		if score >= x.threshold {
			matches = append(matches, Match{ID: e.id, Score: score, PostedAt: e.postedAt})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].PostedAt.After(matches[j].PostedAt)
	})

	return matches
}

// Size returns the number of indexed documents.
func (x *Index) Size() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

func (x *Index) prune(asOf time.Time) {
	cutoff := asOf.Add(-x.window)
	kept := x.entries[:0]
	for _, e := range x.entries {
		if e.postedAt.Before(cutoff) {
			x.pruned++
			continue
		}
		kept = append(kept, e)
	}
	x.entries = kept

	// Document frequencies are rebuilt once stale entries pile up, so a
	// single lookup never pays for a full recount.
	if x.pruned > len(x.entries) {
		x.df = make(map[string]int)
		for _, e := range x.entries {
			for term := range e.terms {
				x.df[term]++
			}
		}
		x.pruned = 0
	}
}

func (x *Index) vector(terms map[string]int, n int) map[string]float64 {
	vec := make(map[string]float64, len(terms))
	var norm float64
	for term, tf := range terms {
		idf := math.Log(float64(n+1)/float64(x.df[term]+1)) + 1
		w := float64(tf) * idf
		vec[term] = w
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for term := range vec {
			vec[term] /= norm
		}
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}
