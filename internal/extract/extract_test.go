package extract

import (
	"reflect"
	"testing"

	"github.com/tbourn/go-order-backend/internal/domain"
)

func TestNormalizePhone(t *testing.T) {
	e := New()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"97 777 77 77", "+998977777777", true},
		{"+998 90 107 80 55", "+998901078055", true},
		{"998901078055", "+998901078055", true},
		{"901078055", "+998901078055", true},
		{"12345", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := e.NormalizePhone(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("NormalizePhone(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestPhones_DedupAndSort(t *testing.T) {
	e := New()

	got := e.Phones("Tel: 90 107 80 55 yoki +998901078055, boshqasi 97 777 77 77")
	want := []string{"+998901078055", "+998977777777"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Phones = %v, want %v", got, want)
	}
}

func TestPhones_Idempotent(t *testing.T) {
	e := New()

	first := e.Phones("90 107 80 55")
	second := e.Phones(first[0])
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-extraction changed the set: %v vs %v", first, second)
	}
}

func TestPhones_Empty(t *testing.T) {
	e := New()
	if got := e.Phones("hech qanday raqam yo'q"); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestSpokenPhones_NineDigits(t *testing.T) {
	e := New()

	got := e.SpokenPhones("to'qson nol bir nol sakkiz nol besh besh")
	want := []string{"+998900108055"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SpokenPhones = %v, want %v", got, want)
	}
}

func TestSpokenPhones_UnrelatedWordDoesNotBreakRun(t *testing.T) {
	e := New()

	got := e.SpokenPhones("to'qson nol bir nol raqamim sakkiz nol besh besh")
	want := []string{"+998900108055"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SpokenPhones = %v, want %v", got, want)
	}
}

func TestSpokenPhones_ScaleWordTerminatesRun(t *testing.T) {
	e := New()

	// "uch yuz ming" is an amount phrase; "uch" alone is far too short.
	if got := e.SpokenPhones("uch yuz ming so'm"); got != nil {
		t.Fatalf("expected nil for amount phrase, got %v", got)
	}
}

func TestSpokenPhones_TooShort(t *testing.T) {
	e := New()
	if got := e.SpokenPhones("to'qson besh"); got != nil {
		t.Fatalf("expected nil for short run, got %v", got)
	}
}

func TestSpokenPhones_TruncationPolicies(t *testing.T) {
	// 11 accumulated digits: 90 0 1 0 7 80 0 55 -> "90010780055".
	text := "to'qson nol bir nol yetti sakson nol ellik besh"

	head := New() // TruncateHead is the default
	if got := head.SpokenPhones(text); len(got) != 1 || got[0] != "+998900107800" {
		t.Fatalf("head truncation = %v", got)
	}

	tail := New(WithTruncation(TruncateTail))
	if got := tail.SpokenPhones(text); len(got) != 1 || got[0] != "+998010780055" {
		t.Fatalf("tail truncation = %v", got)
	}
}

func TestFormatDisplay(t *testing.T) {
	e := New()

	cases := []struct {
		in, want string
	}{
		{"+998901078055", "90 107 80 55"},
		{"901078055", "90 107 80 55"},
		{"+12025550123", "+12025550123"}, // not a local number, unchanged
	}
	for _, c := range cases {
		if got := e.FormatDisplay(c.in); got != c.want {
			t.Errorf("FormatDisplay(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestAmount_DigitWithThousandKeyword(t *testing.T) {
	e := New()

	v, ok := e.Amount("Summa 300 ming")
	if !ok || v != 300000 {
		t.Fatalf("Amount = (%d, %v), want (300000, true)", v, ok)
	}
}

func TestAmount_SpokenPhrase(t *testing.T) {
	e := New()

	v, ok := e.Amount("ikki yuz ellik ming so'm")
	if !ok || v != 250000 {
		t.Fatalf("Amount = (%d, %v), want (250000, true)", v, ok)
	}
}

func TestAmount_PhoneShapedRunExcluded(t *testing.T) {
	e := New()

	if v, ok := e.Amount("Tel: 901078055"); ok {
		t.Fatalf("phone digits offered as amount: %d", v)
	}
	if v, ok := e.Amount("+998 90 107 80 55"); ok {
		t.Fatalf("international phone offered as amount: %d", v)
	}
}

func TestAmount_PrefersStrongerCandidate(t *testing.T) {
	e := New()

	// "2" also sits next to "ming" but the tie breaks on the larger value.
	v, ok := e.Amount("2 ta pizza 300 ming")
	if !ok || v != 300000 {
		t.Fatalf("Amount = (%d, %v), want (300000, true)", v, ok)
	}
}

func TestAmount_PlainPrice(t *testing.T) {
	e := New()

	v, ok := e.Amount("narxi 1500 so'm")
	if !ok || v != 1500 {
		t.Fatalf("Amount = (%d, %v), want (1500, true)", v, ok)
	}
}

func TestAmount_NoCandidates(t *testing.T) {
	e := New()
	if v, ok := e.Amount("salom qalaysiz"); ok {
		t.Fatalf("unexpected amount %d", v)
	}
	if _, ok := e.Amount(""); ok {
		t.Fatal("amount from empty text")
	}
}

func TestLocation_NativeGeoWins(t *testing.T) {
	e := New()

	ev := domain.MessageEvent{
		Text: "Chilonzor 9 kvartal",
		Geo:  &domain.Geo{Lat: 41.3, Lon: 69.2},
	}
	loc := e.Location(ev)
	if loc == nil || loc.Kind != domain.LocationNative || loc.Lat != 41.3 || loc.Lon != 69.2 {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestLocation_TextFallback(t *testing.T) {
	e := New()

	loc := e.Location(domain.MessageEvent{Text: "  Chilonzor 9 kvartal  "})
	if loc == nil || loc.Kind != domain.LocationText || loc.Raw != "Chilonzor 9 kvartal" {
		t.Fatalf("unexpected location: %+v", loc)
	}

	if got := e.Location(domain.MessageEvent{}); got != nil {
		t.Fatalf("expected nil location, got %+v", got)
	}
}
