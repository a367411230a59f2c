package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Searcher is the raw external search: a loose substring filter over display
// name, canonical name and account handle. Results are unranked; the
// Resolver orders them.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Identity, error)
}

// ADSearcher queries Active Directory through a PowerShell Runner.
type ADSearcher struct {
	runner     Runner
	searchBase string
}

// NewADSearcher builds the production searcher. searchBase is the LDAP
// container to search under, e.g. "DC=corp,DC=local".
func NewADSearcher(runner Runner, searchBase string) *ADSearcher {
	return &ADSearcher{runner: runner, searchBase: searchBase}
}

func (s *ADSearcher) Search(ctx context.Context, query string) ([]Identity, error) {
	q := psQuote(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	script := fmt.Sprintf(`
		Import-Module ActiveDirectory;
		$q = '%s';
		Get-ADUser -LDAPFilter '(objectClass=user)' -SearchBase '%s' -Properties displayName,distinguishedName,enabled,sAMAccountName |
		  Where-Object { $_.displayName -like "*$q*" -or $_.sAMAccountName -like "*$q*" -or $_.Name -like "*$q*" } |
		  Select-Object sAMAccountName, displayName, distinguishedName, Enabled |
		  ConvertTo-Json
	`, q, psQuote(s.searchBase))

	out, err := s.runner.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	return parseSearchOutput(out)
}

// adUserRecord mirrors the ConvertTo-Json shape of Get-ADUser output.
type adUserRecord struct {
	SamAccountName    string `json:"sAMAccountName"`
	DisplayName       string `json:"displayName"`
	DistinguishedName string `json:"distinguishedName"`
	Enabled           bool   `json:"Enabled"`
}

func parseSearchOutput(raw string) ([]Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// ConvertTo-Json emits a bare object for a single result and an array
	// otherwise.
	var records []adUserRecord
	if strings.HasPrefix(raw, "{") {
		var one adUserRecord
		if err := json.Unmarshal([]byte(raw), &one); err != nil {
			return nil, fmt.Errorf("parse search output: %w", err)
		}
		records = []adUserRecord{one}
	} else if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("parse search output: %w", err)
	}

	out := make([]Identity, 0, len(records))
	for _, rec := range records {
		if rec.SamAccountName == "" {
			continue
		}
		out = append(out, Identity{
			Handle:      rec.SamAccountName,
			DisplayName: rec.DisplayName,
			DN:          rec.DistinguishedName,
			Enabled:     rec.Enabled,
		})
	}
	return out, nil
}
