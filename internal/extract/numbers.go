package extract

// NumberWords holds the spoken numeral vocabulary for one locale: unit words
// (0-9), tens words (10, 20, ... 90), and scale words (hundred, thousand,
// million). The maps are keyed by normalized tokens (lowercase, apostrophes
// folded to ').
type NumberWords struct {
	Units  map[string]int64
	Tens   map[string]int64
	Scales map[string]int64
}

// DefaultNumberWords returns the Uzbek vocabulary, including the common
// Latin spelling variants seen in speech-to-text output.
func DefaultNumberWords() NumberWords {
	return NumberWords{
		Units: map[string]int64{
			"nol":    0,
			"bir":    1,
			"ikki":   2,
			"uch":    3,
			"tort":   4,
			"to'rt":  4,
			"turt":   4,
			"besh":   5,
			"olti":   6,
			"yetti":  7,
			"etti":   7,
			"sakkiz": 8,
			"toqqiz": 9,
		},
		Tens: map[string]int64{
			"on":         10,
			"yigirma":    20,
			"ottiz":      30,
			"o'ttiz":     30,
			"qirq":       40,
			"ellik":      50,
			"oltmish":    60,
			"yetmish":    70,
			"sakson":     80,
			"to'qson":    90,
			"toqson":     90,
			"to'qsonlik": 90,
			"toqsonlik":  90,
		},
		Scales: map[string]int64{
			"yuz":     100,
			"ming":    1000,
			"минг":    1000,
			"million": 1_000_000,
			"mln":     1_000_000,
		},
	}
}

func defaultMoneyKeywords() []string {
	return []string{
		"summa", "sum", "so'm", "som", "сум", "сом", "тыс",
		"ming", "минг", "min",
	}
}

func defaultThousandKeywords() []string {
	return []string{"ming", "минг", "min"}
}

// hundredValue is the scale below which a scale word multiplies the running
// phrase instead of flushing it into the total.
const hundredValue = 100
