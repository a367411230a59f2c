// Package intent classifies free-text operator requests. The rule set is
// deliberately simple keyword matching; it sits behind an interface so a
// smarter classifier can be swapped in without touching the scheduling core.
package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Intent is the detected request type.
type Intent string

const (
	Unknown        Intent = "unknown"
	ResetPassword  Intent = "reset_password"
	DisableAccount Intent = "disable_account"
)

// Result of classifying one free-text request. Query is the remainder of
// the text after the intent phrase, with any date expression removed. When
// is the extracted target date, if any (time-of-day is left to the caller).
type Result struct {
	Intent Intent
	Query  string
	When   *time.Time
}

// Classifier turns operator text into a structured intent.
type Classifier interface {
	Classify(text string) Result
}

var (
	resetPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)смени\s+пароль`),
		regexp.MustCompile(`(?i)сброс(?:ь|ить)\s+пароль`),
		regexp.MustCompile(`(?i)reset\s+pass(?:word)?`),
	}
	disablePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)заблокируй`),
		regexp.MustCompile(`(?i)отключи`),
		regexp.MustCompile(`(?i)disable\s+account`),
		regexp.MustCompile(`(?i)увол(?:ен|ена|ьте|ится|яется)`),
	}

	numericDate  = regexp.MustCompile(`\b(\d{1,2})[.\-/](\d{1,2})[.\-/](\d{2,4})\b`)
	relativeDate = regexp.MustCompile(`(?i)\b(сегодня|завтра|послезавтра|today|tomorrow)\b`)
	inDays       = regexp.MustCompile(`(?i)через\s+(\d+)\s+(?:дней|дня|день)`)
)

// Rules is the default deterministic classifier.
type Rules struct {
	loc *time.Location
	now func() time.Time
}

// NewRules builds a classifier resolving relative dates in loc.
func NewRules(loc *time.Location) *Rules {
	if loc == nil {
		loc = time.Local
	}
	return &Rules{loc: loc, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *Rules) WithClock(now func() time.Time) *Rules {
	r.now = now
	return r
}

func (r *Rules) Classify(text string) Result {
	text = strings.TrimSpace(text)
	res := Result{Intent: Unknown}
	if text == "" {
		return res
	}

	var matched *regexp.Regexp
	for _, p := range resetPatterns {
		if p.MatchString(text) {
			res.Intent = ResetPassword
			matched = p
			break
		}
	}
	if res.Intent == Unknown {
		for _, p := range disablePatterns {
			if p.MatchString(text) {
				res.Intent = DisableAccount
				matched = p
				break
			}
		}
	}
	if res.Intent == Unknown {
		return res
	}

	rest := text
	if loc := matched.FindStringIndex(text); loc != nil {
		rest = text[loc[1]:]
	}
	if when, span := r.extractDate(rest); when != nil {
		res.When = when
		rest = rest[:span[0]] + rest[span[1]:]
	} else if when, span := r.extractDate(text); when != nil {
		// Date may precede the intent phrase ("05.09 заблокируй Иванова").
		res.When = when
		_ = span
	}
	res.Query = strings.Trim(rest, " \t.,:;—-")
	return res
}

// ExtractDate finds the first date expression in free text and returns its
// value at midnight in the classifier's location, or nil.
func (r *Rules) ExtractDate(text string) *time.Time {
	when, _ := r.extractDate(text)
	return when
}

// extractDate finds the first date expression in text and returns its value
// at midnight in the classifier's location plus the matched span.
func (r *Rules) extractDate(text string) (*time.Time, []int) {
	if m := numericDate.FindStringSubmatchIndex(text); m != nil {
		day, _ := strconv.Atoi(text[m[2]:m[3]])
		month, _ := strconv.Atoi(text[m[4]:m[5]])
		year, _ := strconv.Atoi(text[m[6]:m[7]])
		if year < 100 {
			year += 2000
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return nil, nil
		}
		t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, r.loc)
		return &t, []int{m[0], m[1]}
	}
	if m := relativeDate.FindStringIndex(text); m != nil {
		base := r.now().In(r.loc)
		var days int
		switch strings.ToLower(text[m[0]:m[1]]) {
		case "сегодня", "today":
			days = 0
		case "завтра", "tomorrow":
			days = 1
		case "послезавтра":
			days = 2
		}
		t := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, days)
		return &t, m
	}
	if m := inDays.FindStringSubmatchIndex(text); m != nil {
		n, _ := strconv.Atoi(text[m[2]:m[3]])
		base := r.now().In(r.loc)
		t := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, r.loc).AddDate(0, 0, n)
		return &t, []int{m[0], m[1]}
	}
	return nil, nil
}
