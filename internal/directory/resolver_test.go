package directory

import (
	"context"
	"errors"
	"testing"
)

type fakeSearcher struct {
	results []Identity
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]Identity, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func TestResolveRanksBySimilarity(t *testing.T) {
	search := &fakeSearcher{results: []Identity{
		{Handle: "m.ivanova", DisplayName: "Ivanova M."},
		{Handle: "n.ivanova", DisplayName: "Ivanova N."},
		{Handle: "p.petrov", DisplayName: "Petrov P."},
	}}
	r := NewResolver(search)

	got := r.Resolve(context.Background(), "Ivanova", 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	// Both Ivanovas must outrank Petrov; exact-prefix matches first.
	if got[0].DisplayName != "Ivanova M." && got[0].DisplayName != "Ivanova N." {
		t.Fatalf("unexpected top candidate: %+v", got[0])
	}
	if got[2].Handle != "p.petrov" {
		t.Fatalf("expected petrov last, got %+v", got[2])
	}
}

func TestResolveStableOrderOnTies(t *testing.T) {
	search := &fakeSearcher{results: []Identity{
		{Handle: "a.one", DisplayName: "Same Name"},
		{Handle: "a.two", DisplayName: "Same Name"},
	}}
	r := NewResolver(search)

	got := r.Resolve(context.Background(), "Same Name", 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Handle != "a.one" || got[1].Handle != "a.two" {
		t.Fatalf("tie broke raw search order: %+v", got)
	}
}

func TestResolveErrorYieldsEmptySet(t *testing.T) {
	r := NewResolver(&fakeSearcher{err: errors.New("winrm unreachable")})
	if got := r.Resolve(context.Background(), "anyone", 10); len(got) != 0 {
		t.Fatalf("expected empty candidate set, got %+v", got)
	}
}

func TestResolveAppliesLimit(t *testing.T) {
	var results []Identity
	for _, h := range []string{"a", "b", "c", "d"} {
		results = append(results, Identity{Handle: h, DisplayName: "User " + h})
	}
	r := NewResolver(&fakeSearcher{results: results})
	if got := r.Resolve(context.Background(), "User", 2); len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	search := &fakeSearcher{}
	r := NewResolver(search)
	if got := r.Resolve(context.Background(), "   ", 10); got != nil {
		t.Fatalf("expected nil for blank query, got %+v", got)
	}
	if len(search.queries) != 0 {
		t.Fatal("blank query must not hit the external search")
	}
}

func TestParseSearchOutputSingleObject(t *testing.T) {
	raw := `{"sAMAccountName":"n.ustinova","displayName":"Ustinova Natalia","distinguishedName":"CN=Ustinova,DC=corp,DC=local","Enabled":true}`
	got, err := parseSearchOutput(raw)
	if err != nil {
		t.Fatalf("parseSearchOutput: %v", err)
	}
	if len(got) != 1 || got[0].Handle != "n.ustinova" || !got[0].Enabled {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestPSQuoteNeutralisesMetacharacters(t *testing.T) {
	got := psQuote("O'Neil`$(rm -rf)\x00")
	if got != "O''Neil``$(rm -rf)" {
		t.Fatalf("unexpected quoting: %q", got)
	}
}
