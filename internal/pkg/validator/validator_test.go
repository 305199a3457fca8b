package validator

import (
	"testing"
	"time"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	d, ok := IsValidDate("2024-02-29")
	if !ok {
		t.Fatalf("IsValidDate(2024-02-29) = false, want true")
	}
	if d.Location() != time.UTC || d.Day() != 29 {
		t.Errorf("IsValidDate(2024-02-29) = %v, want UTC day 29", d)
	}
	for _, s := range []string{"2023-02-29", "2024-13-01", "15/01/2024", ""} {
		if _, ok := IsValidDate(s); ok {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

func TestIsValidPeriod(t *testing.T) {
	valid := []string{"2024-01", "2024-12", "1999-07"}
	invalid := []string{"2024-00", "2024-13", "2024-1", "24-01", "2024-01-01", ""}
	for _, p := range valid {
		if !IsValidPeriod(p) {
			t.Errorf("IsValidPeriod(%q) = false, want true", p)
		}
	}
	for _, p := range invalid {
		if IsValidPeriod(p) {
			t.Errorf("IsValidPeriod(%q) = true, want false", p)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "paid_amount", Message: "must be greater than zero"},
		{Field: "date", Message: "must be YYYY-MM-DD"},
	}
	if got := errs.Error(); got != "paid_amount: must be greater than zero; date: must be YYYY-MM-DD" {
		t.Errorf("Error() = %q", got)
	}
	m := errs.ToMap()
	if m["date"] != "must be YYYY-MM-DD" || len(m) != 2 {
		t.Errorf("ToMap() = %v", m)
	}
}

func TestMaxLength(t *testing.T) {
	if !MaxLength("راتب", 4) {
		t.Errorf("MaxLength counts runes, want true for 4-rune string")
	}
	if MaxLength("abcde", 4) {
		t.Errorf("MaxLength(abcde, 4) = true, want false")
	}
}
