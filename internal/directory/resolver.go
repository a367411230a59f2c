package directory

import (
	"context"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"

	"adjutant.org/internal/obs"
)

// DefaultLimit caps a candidate set when the caller does not specify one.
const DefaultLimit = 10

// Resolver turns a free-text query into a ranked candidate set. Failures of
// the underlying search surface as an empty set, never as an error: callers
// report "identity not found" and move on.
type Resolver struct {
	searcher Searcher
}

func NewResolver(searcher Searcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// Resolve returns up to limit candidates ordered by descending similarity to
// query. Ties keep the raw search order (stable sort).
func (r *Resolver) Resolve(ctx context.Context, query string, limit int) []Identity {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	raw, err := r.searcher.Search(ctx, query)
	if err != nil {
		obs.LogEvent("warn", "directory search failed", map[string]any{
			"query": query,
			"error": err.Error(),
		})
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	type scored struct {
		id    Identity
		score float64
	}
	ranked := make([]scored, 0, len(raw))
	for _, id := range raw {
		ranked = append(ranked, scored{id: id, score: similarity(query, id)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Identity, len(ranked))
	for i, s := range ranked {
		out[i] = s.id
	}
	return out
}

// similarity is a weighted fuzzy score of query against both the display
// name and the handle. Jaro-Winkler dominates (it favours shared prefixes,
// which is what "Ivanova" vs "Ivanova N." needs); a normalised edit
// distance tempers transposition-heavy false positives; plain substring
// containment gets a flat boost.
func similarity(query string, id Identity) float64 {
	q := strings.ToLower(query)
	best := 0.0
	for _, field := range []string{id.DisplayName, id.Handle} {
		if field == "" {
			continue
		}
		f := strings.ToLower(field)
		s := 0.7*smetrics.JaroWinkler(q, f, 0.7, 4) + 0.3*editSimilarity(q, f)
		if strings.Contains(f, q) || strings.Contains(q, f) {
			s += 0.15
		}
		if strings.HasPrefix(f, q) {
			s += 0.1
		}
		if s > best {
			best = s
		}
	}
	return best
}

func editSimilarity(a, b string) float64 {
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
