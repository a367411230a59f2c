package intent

import (
	"testing"
	"time"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	fixed := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	return NewRules(time.UTC).WithClock(func() time.Time { return fixed })
}

func TestClassifyResetPassword(t *testing.T) {
	r := testRules(t)
	res := r.Classify("Смени пароль Устиновой Наталье")
	if res.Intent != ResetPassword {
		t.Fatalf("expected reset intent, got %s", res.Intent)
	}
	if res.Query != "Устиновой Наталье" {
		t.Fatalf("unexpected query: %q", res.Query)
	}
	if res.When != nil {
		t.Fatalf("unexpected date: %v", res.When)
	}
}

func TestClassifyDisableWithNumericDate(t *testing.T) {
	r := testRules(t)
	res := r.Classify("Заблокируй Иванова 05.09.2025")
	if res.Intent != DisableAccount {
		t.Fatalf("expected disable intent, got %s", res.Intent)
	}
	if res.Query != "Иванова" {
		t.Fatalf("unexpected query: %q", res.Query)
	}
	if res.When == nil {
		t.Fatal("expected extracted date")
	}
	want := time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)
	if !res.When.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *res.When)
	}
}

func TestClassifyRelativeDate(t *testing.T) {
	r := testRules(t)
	res := r.Classify("disable account j.smith tomorrow")
	if res.Intent != DisableAccount {
		t.Fatalf("expected disable intent, got %s", res.Intent)
	}
	if res.When == nil {
		t.Fatal("expected extracted date")
	}
	want := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	if !res.When.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *res.When)
	}
	if res.Query != "j.smith" {
		t.Fatalf("unexpected query: %q", res.Query)
	}
}

func TestClassifyInDays(t *testing.T) {
	r := testRules(t)
	res := r.Classify("Отключи Петрова через 3 дня")
	if res.When == nil {
		t.Fatal("expected extracted date")
	}
	want := time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC)
	if !res.When.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *res.When)
	}
}

func TestClassifyUnknown(t *testing.T) {
	r := testRules(t)
	res := r.Classify("какая сегодня погода?")
	if res.Intent != Unknown {
		t.Fatalf("expected unknown intent, got %s", res.Intent)
	}
}

func TestClassifyTwoDigitYear(t *testing.T) {
	r := testRules(t)
	res := r.Classify("заблокируй a.b 31-12-25")
	if res.When == nil {
		t.Fatal("expected extracted date")
	}
	if res.When.Year() != 2025 || res.When.Month() != time.December || res.When.Day() != 31 {
		t.Fatalf("unexpected date: %v", *res.When)
	}
}
