package classify

import (
	"regexp"
	"strings"
)

// Amount-shaped text patterns: "412 ming", "277 000", "summa 412".
var (
	amountSuffixRe = regexp.MustCompile(`\b\d{2,4}\s*(ming|min|мин|minut|минут)\b`)
	thousandsRe    = regexp.MustCompile(`\b\d{2,3}\s*000\b`)
	summaPrefixRe  = regexp.MustCompile(`\bsumma\s*\d+`)
)

// Rules is the zero-dependency keyword classifier. It is cheap enough to
// run on every message and doubles as the fallback when the model backend
// is unavailable.
type Rules struct {
	kw Keywords
}

// NewRules builds a rule classifier over the given vocabulary.
func NewRules(kw Keywords) *Rules {
	return &Rules{kw: kw}
}

// Classify applies the keyword decision procedure:
//
//	(a) product or amount signal, and no address signal  -> PRODUCT
//	(b) address signal                                   -> COMMENT
//	(c) greeting                                         -> RANDOM
//	(d) otherwise                                        -> UNKNOWN
//
// Only (a) and (b) are order-related.
func (r *Rules) Classify(text string) Verdict {
	tl := strings.ToLower(text)

	hasAddr := matchAny(tl, r.kw.Address)
	hasProd := matchAny(tl, r.kw.Product)
	hasAmount := matchAny(tl, r.kw.Amount) ||
		amountSuffixRe.MatchString(tl) ||
		thousandsRe.MatchString(tl) ||
		summaPrefixRe.MatchString(tl)

	switch {
	case (hasProd || hasAmount) && !hasAddr:
		return Verdict{OrderRelated: true, Role: RoleProduct, AddressKeywords: false, Source: SourceRules}
	case hasAddr:
		return Verdict{OrderRelated: true, Role: RoleComment, AddressKeywords: true, Source: SourceRules}
	case matchAny(tl, r.kw.Greeting):
		return Verdict{OrderRelated: false, Role: RoleRandom, AddressKeywords: false, Source: SourceRules}
	default:
		return notRelated(SourceRules)
	}
}

// HasProductCandidate reports whether text carries a product-shaped signal:
// any digit, or a monetary keyword. Used as the last-resort finalize
// trigger.
func (r *Rules) HasProductCandidate(text string) bool {
	if strings.ContainsAny(text, "0123456789") {
		return true
	}
	return matchAny(strings.ToLower(text), r.kw.Amount)
}

// HasCommentIntent reports whether a line matches the courier/doorstep
// comment vocabulary.
func (r *Rules) HasCommentIntent(line string) bool {
	return matchAny(strings.ToLower(line), r.kw.Comment)
}

// Keywords exposes the vocabulary for collaborators (phone election,
// partitioning) so one loaded configuration drives every keyword decision.
func (r *Rules) Keywords() Keywords { return r.kw }

func matchAny(lowered string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
