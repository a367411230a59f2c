package mailintake

import (
	"testing"
	"time"

	"adjutant.org/internal/intent"
)

func testParser() *Parser {
	rules := intent.NewRules(time.UTC).WithClock(func() time.Time {
		return time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	})
	return NewParser(rules)
}

func TestParseTerminationNotice(t *testing.T) {
	p := testParser()
	ev, ok := p.Parse(
		"Увольнение сотрудника",
		"Иванова Мария уволена 05.09.2025.\nsam: m.ivanova",
	)
	if !ok {
		t.Fatal("notice not recognised")
	}
	if ev.SamHint != "m.ivanova" {
		t.Fatalf("sam hint: %q", ev.SamHint)
	}
	if ev.Name != "Иванова Мария" {
		t.Fatalf("name: %q", ev.Name)
	}
	if ev.Date == nil || !ev.Date.Equal(time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date: %v", ev.Date)
	}
}

func TestParseNameOnlyFallback(t *testing.T) {
	p := testParser()
	ev, ok := p.Parse("", "Последний рабочий день: Петров Сергей, завтра")
	if !ok {
		t.Fatal("notice not recognised")
	}
	if ev.SamHint != "" {
		t.Fatalf("unexpected sam hint: %q", ev.SamHint)
	}
	if ev.Name != "Петров Сергей" {
		t.Fatalf("name: %q", ev.Name)
	}
	if ev.Date == nil || !ev.Date.Equal(time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date: %v", ev.Date)
	}
}

func TestParseIgnoresUnrelatedMail(t *testing.T) {
	p := testParser()
	if _, ok := p.Parse("Отчет за август", "Коллеги, во вложении отчет."); ok {
		t.Fatal("unrelated mail must not produce an event")
	}
}

func TestParseRequiresSomeIdentity(t *testing.T) {
	p := testParser()
	if _, ok := p.Parse("увольнение", "сотрудник уволен завтра"); ok {
		t.Fatal("event without name or sam hint must be dropped")
	}
}

func TestParseWithoutDate(t *testing.T) {
	p := testParser()
	ev, ok := p.Parse("termination", "Offboarding: Anna Schmidt\nsam: a.schmidt")
	if !ok {
		t.Fatal("notice not recognised")
	}
	if ev.Date != nil {
		t.Fatalf("unexpected date: %v", ev.Date)
	}
	if ev.SamHint != "a.schmidt" {
		t.Fatalf("sam hint: %q", ev.SamHint)
	}
}
