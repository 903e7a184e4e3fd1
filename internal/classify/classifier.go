package classify

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// contextMessages is how many trailing session messages accompany the text
// sent to the model backend.
const contextMessages = 5

// Backend is an external classification service. Implementations return an
// error for every failure mode (timeout, transport, malformed output);
// the Classifier treats all of them as "service unavailable".
type Backend interface {
	Classify(ctx context.Context, text string, recent []string) (Verdict, error)
}

// Classifier combines the rule-based pass with an optional model backend.
// It never returns an error: the rule verdict is the floor the result can
// fall back to.
type Classifier struct {
	Rules   *Rules
	Backend Backend       // nil disables the model pass
	Timeout time.Duration // per-call budget for the backend
}

// NewClassifier wires a Classifier with a 10s default backend budget.
func NewClassifier(rules *Rules, backend Backend) *Classifier {
	return &Classifier{Rules: rules, Backend: backend, Timeout: 10 * time.Second}
}

// Classify returns a verdict for text given the recent session context.
// Empty or whitespace-only text short-circuits to UNKNOWN without invoking
// any classifier. Backend failures downgrade to the rule-based verdict and
// are never surfaced to the caller.
func (c *Classifier) Classify(ctx context.Context, text string, recent []string) Verdict {
	if strings.TrimSpace(text) == "" {
		return notRelated(SourceRules)
	}

	ruleVerdict := c.Rules.Classify(text)
	if c.Backend == nil {
		return ruleVerdict
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	if len(recent) > contextMessages {
		recent = recent[len(recent)-contextMessages:]
	}

	v, err := c.Backend.Classify(ctx, text, recent)
	if err != nil {
		log.Debug().Err(err).Msg("classifier backend unavailable, using rules")
		return ruleVerdict
	}
	if v.Role == "" {
		v.Role = RoleUnknown
	}
	v.Source = SourceModel
	return v
}
