package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/oracle"
	"github.com/avoronov/newsmux/app/similarity"
)

// candidateLimit caps how many fast-filter candidates get an oracle
// verification call per item.
const candidateLimit = 10

// Resolution is the resolver's decision for one summarized item.
type Resolution struct {
	Duplicate  bool
	OutgoingID string // set when Duplicate
}

// Resolver implements two-stage duplicate detection: a cheap TF-IDF
// similarity prefilter over recent published items, then one oracle
// verification call per candidate, highest score first, stopping at the
// first confirmation.
type Resolver struct {
	index        *similarity.Index
	oracleClient oracle.Oracle
}

func NewResolver(index *similarity.Index, oracleClient oracle.Oracle) *Resolver {
	return &Resolver{index: index, oracleClient: oracleClient}
}

// Reload replaces the index contents with representative texts of the given
// published items.
func (r *Resolver) Reload(docs []similarity.Document) {
	r.index.Load(docs)
}

// Admit indexes a newly created outgoing item so later items in the same
// batch can match it.
func (r *Resolver) Admit(doc similarity.Document) {
	r.index.Add(doc)
}

func (r *Resolver) IndexSize() int {
	return r.index.Size()
}

// Resolve decides whether the item duplicates a recent published story.
// A verification failure returns an error and the caller leaves the item
// untouched for the next tick.
func (r *Resolver) Resolve(ctx context.Context, item database.IngestedItem,
	representative func(outgoingID string) string) (Resolution, error) {

	candidates := r.index.Candidates(queryText(item), item.PostedAt)
	if len(candidates) > candidateLimit {
		candidates = candidates[:candidateLimit]
	}

	for _, candidate := range candidates {
		rep := representative(candidate.ID)
		if rep == "" {
			continue
		}

		confirmed, err := r.oracleClient.VerifyPair(ctx, itemRepresentative(item), rep)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to verify pair against %s: %w", candidate.ID, err)
		}
		if confirmed {
			return Resolution{Duplicate: true, OutgoingID: candidate.ID}, nil
		}
	}

	return Resolution{}, nil
}

// queryText is what the fast filter matches on.
func queryText(item database.IngestedItem) string {
	if item.Headline != "" {
		return item.Headline
	}
	return item.Summary
}

// itemRepresentative is the text handed to the verification oracle.
func itemRepresentative(item database.IngestedItem) string {
	return strings.TrimSpace(item.Headline + "\n" + item.Summary)
}
