// Package extract provides deterministic, dependency-light extraction of
// telephone numbers, monetary amounts, and delivery locations from raw chat
// text. It is intentionally small and engineered like a library:
//
//   - No logging (callers decide how/what to log)
//   - Clear, documented types and functional options (Option pattern)
//   - Unicode-aware tokenization (apostrophe folding, NFC normalization)
//   - Deterministic output ordering (sorted, de-duplicated phone sets)
//   - Sensible locale defaults, overridable per concern
//
// Phone and amount extraction compete for the same digit runs; a run that
// looks like a phone number is never offered as an amount candidate.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TruncationPolicy selects which window of an overlong spoken-digit run is
// kept when it exceeds the expected phone length.
type TruncationPolicy int

const (
	// TruncateHead keeps the leading digits. This suits transcripts that
	// open with the phone number and trail off into an amount.
	TruncateHead TruncationPolicy = iota
	// TruncateTail keeps the trailing digits, for transcripts where the
	// phone number is dictated last.
	TruncateTail
)

// Option configures an Extractor.
type Option func(*config)

type config struct {
	countryCode      string
	phoneDigits      int
	minSpokenDigits  int
	truncation       TruncationPolicy
	mobilePrefixes   string
	moneyKeywords    []string
	thousandKeywords []string
	words            NumberWords
}

func defaultConfig() config {
	return config{
		countryCode:      "998",
		phoneDigits:      9,
		minSpokenDigits:  9,
		truncation:       TruncateHead,
		mobilePrefixes:   "98",
		moneyKeywords:    defaultMoneyKeywords(),
		thousandKeywords: defaultThousandKeywords(),
		words:            DefaultNumberWords(),
	}
}

// WithCountryCode overrides the national dialing prefix (default "998").
func WithCountryCode(cc string) Option {
	return func(c *config) {
		cc = strings.TrimSpace(cc)
		if cc != "" {
			c.countryCode = cc
		}
	}
}

// WithPhoneDigits overrides the local phone number length (default 9).
func WithPhoneDigits(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.phoneDigits = n
		}
	}
}

// WithMinSpokenDigits overrides the minimum accumulated digit length for a
// spoken-digit run to be accepted as a phone candidate (default 9).
func WithMinSpokenDigits(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.minSpokenDigits = n
		}
	}
}

// WithTruncation selects the truncation window for overlong spoken runs.
func WithTruncation(p TruncationPolicy) Option {
	return func(c *config) { c.truncation = p }
}

// WithMoneyKeywords replaces the monetary context keywords used by the
// amount scorer.
func WithMoneyKeywords(words []string) Option {
	return func(c *config) {
		if len(words) > 0 {
			c.moneyKeywords = lowerAll(words)
		}
	}
}

// WithThousandKeywords replaces the thousand-class keywords that multiply
// small bare numbers ("300 ming" -> 300000).
func WithThousandKeywords(words []string) Option {
	return func(c *config) {
		if len(words) > 0 {
			c.thousandKeywords = lowerAll(words)
		}
	}
}

// WithNumberWords replaces the spoken numeral vocabulary.
func WithNumberWords(w NumberWords) Option {
	return func(c *config) {
		if len(w.Units) > 0 || len(w.Tens) > 0 || len(w.Scales) > 0 {
			c.words = w
		}
	}
}

// Extractor bundles the phone, amount, and location extraction heuristics
// behind one configured value. The zero-cost methods are safe for concurrent
// use; an Extractor is immutable after construction.
type Extractor struct {
	cfg config
}

// New constructs an Extractor with locale defaults, applying any options.
func New(opts ...Option) *Extractor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Extractor{cfg: cfg}
}

var (
	nonDigitRe  = regexp.MustCompile(`\D`)
	nonTokenRe  = regexp.MustCompile("[^\\p{L}\\p{N}\\s'’ʼ`]")
	apostropheR = strings.NewReplacer("’", "'", "`", "'", "‘", "'", "ʼ", "'")
)

// digitsOnly strips every non-digit rune.
func digitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// normalizeToken lowercases a word token and folds apostrophe variants so
// "to'rt", "to’rt" and "toʼrt" compare equal.
func normalizeToken(w string) string {
	return apostropheR.Replace(strings.ToLower(norm.NFC.String(w)))
}

// tokenize splits text into normalized word tokens, dropping punctuation.
func tokenize(text string) []string {
	cleaned := nonTokenRe.ReplaceAllString(strings.ToLower(text), " ")
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, normalizeToken(f))
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
