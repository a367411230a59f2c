// Package mailintake extracts offboarding events from HR notification mail.
// Parsing is permissive on purpose: a missed trigger phrase loses an event,
// while a false positive only schedules a deactivation that an operator can
// still cancel before it fires.
package mailintake

import (
	"regexp"
	"strings"
	"time"

	"adjutant.org/internal/intent"
)

// OffboardEvent is one parsed termination notice. SamHint, when present,
// takes precedence over Name during identity resolution.
type OffboardEvent struct {
	Name    string
	SamHint string
	Date    *time.Time
}

var (
	triggerPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)увол(?:ен|ена|ение|ьняется|ится|яется)`),
		regexp.MustCompile(`(?i)последний\s+рабочий\s+день`),
		regexp.MustCompile(`(?i)termination`),
		regexp.MustCompile(`(?i)offboard(?:ing)?`),
	}

	samPattern = regexp.MustCompile(`(?i)\bsam:\s*([a-z0-9._-]+)`)

	// Two or three consecutive capitalized words, Cyrillic or Latin.
	namePattern = regexp.MustCompile(`(?:\p{Lu}\p{Ll}+\s+){1,2}\p{Lu}\p{Ll}+`)
)

// Parser turns raw mail into offboard events.
type Parser struct {
	rules *intent.Rules
}

func NewParser(rules *intent.Rules) *Parser {
	return &Parser{rules: rules}
}

// Parse inspects the subject and body of one message. It returns false when
// the message carries no recognised trigger phrase or no way to identify the
// account.
func (p *Parser) Parse(subject, body string) (*OffboardEvent, bool) {
	text := strings.TrimSpace(subject + "\n" + body)
	if text == "" {
		return nil, false
	}
	if !triggered(text) {
		return nil, false
	}

	ev := &OffboardEvent{}
	if m := samPattern.FindStringSubmatch(text); m != nil {
		ev.SamHint = strings.ToLower(m[1])
	}
	if m := namePattern.FindString(text); m != "" {
		ev.Name = strings.TrimSpace(m)
	}
	if ev.SamHint == "" && ev.Name == "" {
		return nil, false
	}
	if p.rules != nil {
		ev.Date = p.rules.ExtractDate(text)
	}
	return ev, true
}

func triggered(text string) bool {
	for _, p := range triggerPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
