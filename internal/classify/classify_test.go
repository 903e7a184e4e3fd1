package classify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRules_DecisionOrder(t *testing.T) {
	r := NewRules(DefaultKeywords())

	cases := []struct {
		text    string
		related bool
		role    Role
		addr    bool
	}{
		{"latte 2ta", true, RoleProduct, false},
		{"412 ming", true, RoleProduct, false},
		{"summa 412", true, RoleProduct, false},
		{"277 000", true, RoleProduct, false},
		{"Chilonzor 5 mavze 14 uy", true, RoleComment, true},
		// Address signal outranks product signal.
		{"pizza dom 5", true, RoleComment, true},
		{"salom", false, RoleRandom, false},
		{"nimadir boshqa", false, RoleUnknown, false},
	}
	for _, c := range cases {
		v := r.Classify(c.text)
		if v.OrderRelated != c.related || v.Role != c.role || v.AddressKeywords != c.addr {
			t.Errorf("Classify(%q) = %+v, want related=%v role=%s addr=%v",
				c.text, v, c.related, c.role, c.addr)
		}
		if v.Source != SourceRules {
			t.Errorf("Classify(%q).Source = %q, want %q", c.text, v.Source, SourceRules)
		}
	}
}

func TestRules_ProductCandidate(t *testing.T) {
	r := NewRules(DefaultKeywords())

	if !r.HasProductCandidate("2 ta lavash") {
		t.Error("digits should be a product candidate")
	}
	if !r.HasProductCandidate("kredit bilan") {
		t.Error("amount keyword should be a product candidate")
	}
	if r.HasProductCandidate("salomlar") {
		t.Error("plain chatter is not a product candidate")
	}
}

func TestRules_CommentIntent(t *testing.T) {
	r := NewRules(DefaultKeywords())

	if !r.HasCommentIntent("kuryer eshik oldida kutsin") {
		t.Error("courier line should carry comment intent")
	}
	if r.HasCommentIntent("latte 2ta") {
		t.Error("product line should not carry comment intent")
	}
}

// fakeBackend returns a canned verdict or error.
type fakeBackend struct {
	verdict Verdict
	err     error
	calls   int
}

func (f *fakeBackend) Classify(ctx context.Context, text string, recent []string) (Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

func TestClassifier_EmptyTextShortCircuits(t *testing.T) {
	fb := &fakeBackend{}
	c := NewClassifier(NewRules(DefaultKeywords()), fb)

	v := c.Classify(context.Background(), "   ", nil)
	if v.OrderRelated || v.Role != RoleUnknown {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if fb.calls != 0 {
		t.Fatalf("backend invoked %d times for empty text", fb.calls)
	}
}

func TestClassifier_NilBackendUsesRules(t *testing.T) {
	c := NewClassifier(NewRules(DefaultKeywords()), nil)

	v := c.Classify(context.Background(), "latte 2ta", nil)
	if !v.OrderRelated || v.Role != RoleProduct || v.Source != SourceRules {
		t.Fatalf("unexpected verdict: %+v", v)
	}
}

func TestClassifier_BackendErrorFallsBack(t *testing.T) {
	fb := &fakeBackend{err: errors.New("boom")}
	c := NewClassifier(NewRules(DefaultKeywords()), fb)

	v := c.Classify(context.Background(), "latte 2ta", nil)
	if !v.OrderRelated || v.Role != RoleProduct || v.Source != SourceRules {
		t.Fatalf("fallback verdict wrong: %+v", v)
	}
	if fb.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", fb.calls)
	}
}

func TestClassifier_BackendVerdictWins(t *testing.T) {
	fb := &fakeBackend{verdict: Verdict{OrderRelated: true, Role: RoleComment, AddressKeywords: true}}
	c := NewClassifier(NewRules(DefaultKeywords()), fb)

	v := c.Classify(context.Background(), "latte 2ta", []string{"old message"})
	if !v.OrderRelated || v.Role != RoleComment || !v.AddressKeywords {
		t.Fatalf("unexpected verdict: %+v", v)
	}
	if v.Source != SourceModel {
		t.Fatalf("Source = %q, want %q", v.Source, SourceModel)
	}
}

func TestClassifier_BackendMissingRoleNormalized(t *testing.T) {
	fb := &fakeBackend{verdict: Verdict{OrderRelated: false}}
	c := NewClassifier(NewRules(DefaultKeywords()), fb)

	v := c.Classify(context.Background(), "whatever text", nil)
	if v.Role != RoleUnknown {
		t.Fatalf("Role = %q, want %q", v.Role, RoleUnknown)
	}
}

func TestLoadKeywords_OverlayOnDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kw.json")
	if err := os.WriteFile(path, []byte(`{"product":["sushi"],"shop":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	kw, err := LoadKeywords(path)
	if err != nil {
		t.Fatalf("LoadKeywords: %v", err)
	}
	if len(kw.Product) != 1 || kw.Product[0] != "sushi" {
		t.Fatalf("Product not replaced: %v", kw.Product)
	}
	// Absent and empty lists keep the defaults.
	if len(kw.Address) == 0 || len(kw.Shop) == 0 {
		t.Fatalf("defaults lost: address=%d shop=%d", len(kw.Address), len(kw.Shop))
	}
}

func TestLoadKeywords_MissingFile(t *testing.T) {
	if _, err := LoadKeywords(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseVerdictJSON(t *testing.T) {
	v, err := parseVerdictJSON("Sure! {\"is_order_related\": true, \"role\": \"product\", \"has_address_keywords\": false} done")
	if err != nil {
		t.Fatalf("parseVerdictJSON: %v", err)
	}
	if !v.OrderRelated || v.Role != RoleProduct || v.AddressKeywords {
		t.Fatalf("unexpected verdict: %+v", v)
	}

	v, err = parseVerdictJSON(`{"is_order_related": false, "role": "GIBBERISH"}`)
	if err != nil {
		t.Fatalf("parseVerdictJSON: %v", err)
	}
	if v.Role != RoleUnknown {
		t.Fatalf("unknown role not normalized: %+v", v)
	}

	if _, err := parseVerdictJSON("no json here"); err == nil {
		t.Fatal("expected error for prose output")
	}
}
