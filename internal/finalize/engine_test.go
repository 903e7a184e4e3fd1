package finalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/tbourn/go-order-backend/internal/classify"
	"github.com/tbourn/go-order-backend/internal/domain"
	"github.com/tbourn/go-order-backend/internal/extract"
	"github.com/tbourn/go-order-backend/internal/session"
)

func newTestEngine() *Engine {
	ex := extract.New()
	rules := classify.NewRules(classify.DefaultKeywords())
	return NewEngine(ex, rules, func() time.Time { return time.Unix(1_700_000_000, 0) })
}

func TestTrigger_Fires(t *testing.T) {
	if (Trigger{}).Fires() {
		t.Fatal("empty trigger fired")
	}
	for _, tr := range []Trigger{
		{FirstLocation: true},
		{ProductRole: true},
		{AddressKeywords: true},
		{FirstPhone: true},
		{ProductCandidate: true},
	} {
		if !tr.Fires() {
			t.Fatalf("trigger %+v did not fire", tr)
		}
	}
}

func TestEvaluate(t *testing.T) {
	e := newTestEngine()

	tr := e.Evaluate(classify.Verdict{Role: classify.RoleProduct}, "salom", false, false)
	if !tr.ProductRole || tr.ProductCandidate || tr.Fires() == false {
		t.Fatalf("unexpected trigger: %+v", tr)
	}

	tr = e.Evaluate(classify.Verdict{Role: classify.RoleUnknown}, "qalaysiz yaxshimisiz", false, false)
	if tr.Fires() {
		t.Fatalf("chatter fired trigger: %+v", tr)
	}

	tr = e.Evaluate(classify.Verdict{Role: classify.RoleUnknown}, "2 ta lavash", true, false)
	if !tr.FirstPhone || !tr.ProductCandidate {
		t.Fatalf("unexpected trigger: %+v", tr)
	}
}

func TestElectClientPhones_ClientMarkWins(t *testing.T) {
	e := newTestEngine()

	raw := []string{
		"наш магазин 97 777 77 77",
		"клиент 90 107 80 55",
	}
	got := e.ElectClientPhones(raw, []string{"+998977777777", "+998901078055"})
	want := []string{"+998901078055"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("elected %v, want %v", got, want)
	}
}

func TestElectClientPhones_ShopExcludedWithoutClientMark(t *testing.T) {
	e := newTestEngine()

	raw := []string{
		"наш магазин 97 777 77 77",
		"90 107 80 55",
	}
	got := e.ElectClientPhones(raw, []string{"+998977777777", "+998901078055"})
	want := []string{"+998901078055"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("elected %v, want %v", got, want)
	}
}

func TestElectClientPhones_ShopMarkOutranksClientMark(t *testing.T) {
	e := newTestEngine()

	// Both vocabularies hit the same line; the shop label must win.
	raw := []string{"наш магазин, клиент звонил: 97 777 77 77", "90 107 80 55"}
	got := e.ElectClientPhones(raw, []string{"+998977777777", "+998901078055"})
	want := []string{"+998901078055"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("elected %v, want %v", got, want)
	}
}

func TestElectClientPhones_AmbiguityKeepsAll(t *testing.T) {
	e := newTestEngine()

	raw := []string{"90 107 80 55", "97 777 77 77"}
	got := e.ElectClientPhones(raw, []string{"+998977777777", "+998901078055"})
	want := []string{"+998901078055", "+998977777777"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("elected %v, want %v", got, want)
	}
}

func TestElectClientPhones_Empty(t *testing.T) {
	e := newTestEngine()
	if got := e.ElectClientPhones([]string{"salom"}, nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestPartition(t *testing.T) {
	e := newTestEngine()

	raw := []string{
		"2 ta pizza 1 cola",
		"Telefon: 90 107 80 55",
		"kuryer eshik oldida kutsin",
		"901078055",
	}
	product, comment := e.Partition(raw, []string{"+998901078055"})

	wantProduct := []string{"2 ta pizza 1 cola"}
	wantComment := []string{"kuryer eshik oldida kutsin"}
	if !reflect.DeepEqual(product, wantProduct) {
		t.Fatalf("product = %v, want %v", product, wantProduct)
	}
	if !reflect.DeepEqual(comment, wantComment) {
		t.Fatalf("comment = %v, want %v", comment, wantComment)
	}
}

func TestDrain_FullScenario(t *testing.T) {
	e := newTestEngine()

	st := session.NewStore(time.Minute, nil)
	sess, rel := st.Acquire(session.Key{ChatID: 100, UserID: 200})
	sess.Append("2 ta pizza 1 cola")
	sess.Append("Telefon: 90 107 80 55")
	sess.Append("kuryer eshik oldida kutsin")
	sess.Append("Summa 300 ming")
	sess.AddPhones([]string{"+998901078055"})
	sess.SetLocation(&domain.Location{Kind: domain.LocationNative, Lat: 41.3, Lon: 69.2})
	version := sess.Version
	rel()

	drained, ok := st.Drain(session.Key{ChatID: 100, UserID: 200}, version)
	if !ok {
		t.Fatal("drain failed")
	}

	snap := e.Drain(drained, Meta{UserName: "Aziz", GroupTitle: "Yetkazib berish", MessageID: 42})

	if snap.ChatID != 100 || snap.UserID != 200 || snap.MessageID != 42 {
		t.Fatalf("identity fields wrong: %+v", snap)
	}
	if !reflect.DeepEqual(snap.ClientPhones, []string{"+998901078055"}) {
		t.Fatalf("client phones = %v", snap.ClientPhones)
	}
	if snap.Amount == nil || *snap.Amount != 300000 {
		t.Fatalf("amount = %v", snap.Amount)
	}
	if snap.Location == nil || snap.Location.Kind != domain.LocationNative {
		t.Fatalf("location = %+v", snap.Location)
	}
	// "Summa 300 ming" carries an amount keyword but no comment intent, so it
	// stays in the product section alongside the items.
	if len(snap.ProductLines) != 2 || snap.ProductLines[0] != "2 ta pizza 1 cola" {
		t.Fatalf("product lines = %v", snap.ProductLines)
	}
	if len(snap.CommentLines) != 1 {
		t.Fatalf("comment lines = %v", snap.CommentLines)
	}
	if len(snap.RawMessages) != 4 {
		t.Fatalf("raw messages = %v", snap.RawMessages)
	}
	if !snap.FinalizedAt.Equal(time.Unix(1_700_000_000, 0)) {
		t.Fatalf("finalized at = %v", snap.FinalizedAt)
	}

	// The snapshot holds its own copy of the history.
	snap.RawMessages[0] = "mutated"
	if drained.RawMessages[0] == "mutated" {
		t.Fatal("snapshot aliases session state")
	}
}
