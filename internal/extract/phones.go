package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// phoneRe matches digit runs of at least 8 digits, tolerating spaces,
// hyphens, parentheses, and an optional leading plus.
var phoneRe = regexp.MustCompile(`\+?\d(?:[ \-()]*\d){7,}`)

// NormalizePhone canonicalizes one raw phone string:
//
//	"97 777 77 77"    -> "+998977777777"
//	"+998901234567"   -> "+998901234567"
//	"901234567"       -> "+998901234567"
//
// Strings with fewer than the local number of digits are rejected; anything
// longer that is neither a full international number nor a local one is
// returned as "+<digits>" best-effort.
func (e *Extractor) NormalizePhone(raw string) (string, bool) {
	digits := digitsOnly(raw)
	cc := e.cfg.countryCode

	if len(digits) < e.cfg.phoneDigits {
		return "", false
	}
	if strings.HasPrefix(digits, cc) && len(digits) == len(cc)+e.cfg.phoneDigits {
		return "+" + digits, true
	}
	if len(digits) == e.cfg.phoneDigits {
		return "+" + cc + digits, true
	}
	return "+" + digits, true
}

// Phones finds every digit-run phone number in text and returns the
// normalized set, de-duplicated and sorted. Running Phones over text that
// already contains its own output yields the same set.
func (e *Extractor) Phones(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]struct{})
	for _, m := range phoneRe.FindAllString(text, -1) {
		if p, ok := e.NormalizePhone(m); ok {
			seen[p] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SpokenPhones converts a spoken-digit sequence ("to'qson bir ... ellik
// besh") into at most one normalized phone candidate.
//
// Number words accumulate into a digit string: a tens word followed by a
// unit word forms one two-digit group ("ellik besh" -> "55"), otherwise
// tens and units render on their own. Non-number words are skipped without
// breaking the run. Scale words (hundred/thousand/million) terminate the
// run entirely, since they signal an amount rather than a phone.
//
// A run is accepted once it reaches MinSpokenDigits; overlong runs are
// truncated to the local phone length using the configured window policy.
func (e *Extractor) SpokenPhones(text string) []string {
	if text == "" {
		return nil
	}

	var b strings.Builder
	tokens := tokenize(text)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if _, ok := e.cfg.words.Scales[tok]; ok {
			// This also cuts off phones dictated with a scale word in the
			// middle ("to'qsonlik bir yuz etti ..." stops at "yuz"); such
			// dictations are rare and amounts misread as phones are worse.
			break
		}
		if tens, ok := e.cfg.words.Tens[tok]; ok {
			v := tens
			if i+1 < len(tokens) {
				if unit, ok := e.cfg.words.Units[tokens[i+1]]; ok && unit > 0 {
					v += unit
					i++
				}
			}
			b.WriteString(strconv.FormatInt(v, 10))
			continue
		}
		if unit, ok := e.cfg.words.Units[tok]; ok {
			b.WriteString(strconv.FormatInt(unit, 10))
			continue
		}
		// unrelated word: the run survives the interruption
	}

	seq := b.String()
	if len(seq) < e.cfg.minSpokenDigits {
		return nil
	}
	if len(seq) > e.cfg.phoneDigits {
		switch e.cfg.truncation {
		case TruncateTail:
			seq = seq[len(seq)-e.cfg.phoneDigits:]
		default:
			seq = seq[:e.cfg.phoneDigits]
		}
	}

	p, ok := e.NormalizePhone(seq)
	if !ok {
		return nil
	}
	return []string{p}
}

// FormatDisplay renders a normalized phone in the local grouped style:
//
//	"+998901078055" -> "90 107 80 55"
//
// Phones that do not reduce to a local-length digit string are returned
// unchanged.
func (e *Extractor) FormatDisplay(phone string) string {
	digits := digitsOnly(phone)
	cc := e.cfg.countryCode

	if strings.HasPrefix(digits, cc) && len(digits) >= len(cc)+e.cfg.phoneDigits {
		digits = digits[len(digits)-e.cfg.phoneDigits:]
	}
	if len(digits) != 9 {
		return phone
	}
	return digits[0:2] + " " + digits[2:5] + " " + digits[5:7] + " " + digits[7:9]
}

// looksLikePhone reports whether a bare digit run has a phone shape and
// should therefore be excluded from amount consideration: a full
// international number, or a 9-12 digit run starting with a mobile prefix
// digit.
func (e *Extractor) looksLikePhone(digits string) bool {
	if digits == "" {
		return false
	}
	n := len(digits)
	if n >= 11 && strings.HasPrefix(digits, e.cfg.countryCode) {
		return true
	}
	if n >= 9 && n <= 12 && strings.ContainsRune(e.cfg.mobilePrefixes, rune(digits[0])) {
		return true
	}
	return false
}
