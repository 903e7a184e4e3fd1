package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// digitRunRe matches a run of digits possibly grouped with spaces
// ("277 000", "12 000").
var digitRunRe = regexp.MustCompile(`\d[\d ]*`)

// numericTokenRe matches a bare numeric token inside a spoken phrase.
var numericTokenRe = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// amountCandidate is one scored interpretation of a digit run or numeral
// phrase. Only the best candidate per message survives.
type amountCandidate struct {
	value int64
	score int
}

// contextWindow is how many characters around a digit run are searched for
// monetary keywords.
const contextWindow = 25

// Amount extracts the most plausible monetary amount from text, in whole
// currency units. Two candidate passes are merged and ranked:
//
//  1. Phrase-based: spoken numeral phrases anchored on a thousand-scale
//     word ("uch yuz ming" -> 300000). These are near-certain amounts and
//     score highest.
//  2. Digit-based: every digit run, excluding phone-shaped runs, scored by
//     nearby monetary keywords and magnitude.
//
// Ties are broken by the larger value. The second return is false when no
// candidate survives.
func (e *Extractor) Amount(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	cleaned := strings.ReplaceAll(text, " ", " ")

	var candidates []amountCandidate

	for _, v := range e.phraseAmounts(cleaned) {
		if v > 0 {
			candidates = append(candidates, amountCandidate{value: v, score: 5})
		}
	}
	candidates = append(candidates, e.digitAmounts(cleaned)...)

	if len(candidates) == 0 {
		return 0, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score || (c.score == best.score && c.value > best.value) {
			best = c
		}
	}
	return best.value, true
}

// phraseAmounts finds spoken "hundred ... thousand" structures. Each
// thousand-scale token anchors a window reaching back to the nearest
// hundred-scale token (plus one token before it, so "uch yuz ming" parses
// whole), and the window is evaluated as a numeral phrase.
func (e *Extractor) phraseAmounts(text string) []int64 {
	tokens := tokenize(text)
	var out []int64

	for j, tok := range tokens {
		if e.cfg.words.Scales[tok] < 1000 {
			continue
		}
		hundredIdx := -1
		for k := j - 1; k >= 0; k-- {
			if e.cfg.words.Scales[tokens[k]] == hundredValue {
				hundredIdx = k
				break
			}
		}
		if hundredIdx < 0 {
			continue
		}
		start := hundredIdx - 1
		if start < 0 {
			start = 0
		}
		if v := e.parsePhrase(tokens[start : j+1]); v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// parsePhrase evaluates a numeral phrase: units and tens add into a running
// accumulator, a scale word multiplies it (an empty accumulator counts as
// 1), and scales of a thousand or more flush the accumulator into the
// total. Unknown words are ignored.
func (e *Extractor) parsePhrase(tokens []string) int64 {
	var total, current int64

	for _, tok := range tokens {
		switch {
		case hasKey(e.cfg.words.Units, tok):
			current += e.cfg.words.Units[tok]
		case hasKey(e.cfg.words.Tens, tok):
			current += e.cfg.words.Tens[tok]
		case hasKey(e.cfg.words.Scales, tok):
			scale := e.cfg.words.Scales[tok]
			if current == 0 {
				current = 1
			}
			current *= scale
			if scale >= 1000 {
				total += current
				current = 0
			}
		case numericTokenRe.MatchString(tok):
			if f, err := strconv.ParseFloat(strings.ReplaceAll(tok, ",", "."), 64); err == nil {
				current += int64(f)
			}
		}
	}
	return total + current
}

// digitAmounts scores every digit run that does not look like a phone
// number. Monetary keywords near the run raise confidence; a small bare
// number next to a thousand-class keyword is read as thousands.
func (e *Extractor) digitAmounts(text string) []amountCandidate {
	low := apostropheR.Replace(strings.ToLower(text))
	var out []amountCandidate

	for _, m := range digitRunRe.FindAllStringIndex(low, -1) {
		digits := digitsOnly(low[m[0]:m[1]])
		if digits == "" || e.looksLikePhone(digits) {
			continue
		}
		base, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			continue
		}

		start := m[0] - contextWindow
		if start < 0 {
			start = 0
		}
		end := m[1] + contextWindow
		if end > len(low) {
			end = len(low)
		}
		window := low[start:end]

		score := 0
		if containsAny(window, e.cfg.moneyKeywords) {
			score += 3
		}

		value := base
		if base < 1000 && containsAny(window, e.cfg.thousandKeywords) {
			value = base * 1000
			score += 2
		}
		if value >= 1000 {
			score += 2
		}
		if value > 0 && value < 100 {
			score--
		}

		out = append(out, amountCandidate{value: value, score: score})
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func hasKey(m map[string]int64, k string) bool {
	_, ok := m[k]
	return ok
}
