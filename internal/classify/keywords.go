package classify

import (
	"encoding/json"
	"os"
)

// Keywords holds the curated vocabulary driving the rule-based pass. The
// lists are data, not control flow: deployments extend locale coverage by
// shipping a JSON file, never by editing the classifier.
type Keywords struct {
	// Address terms: street/building/entrance/neighborhood vocabulary.
	Address []string `json:"address"`
	// Product terms: food and drink names commonly ordered.
	Product []string `json:"product"`
	// Amount terms: money, payment, credit, and time vocabulary.
	Amount []string `json:"amount"`
	// Greeting terms used to mark small talk as RANDOM.
	Greeting []string `json:"greeting"`
	// Comment terms: courier/doorstep/floor/apartment instructions used to
	// partition finalized order text.
	Comment []string `json:"comment"`
	// Client terms marking a phone as the customer's own number.
	Client []string `json:"client"`
	// Shop terms marking a phone as the shop/operator number.
	Shop []string `json:"shop"`
	// PhoneLabel terms marking a line as a bare phone annotation.
	PhoneLabel []string `json:"phone_label"`
}

// DefaultKeywords returns the built-in Uzbek/Russian vocabulary.
func DefaultKeywords() Keywords {
	return Keywords{
		Address: []string{
			"dom", "kv", "kv.", "kvartira", "kvartir", "подъезд", "подьезд",
			"подъез", "подьез", "uy", "eshik", "дом", "улица", "улиц",
			"mavze", "orqa eshik", "oldi", "oldida", "mahalla", "mahallasi",
			"rayon", "tuman", "район", "квартал",
		},
		Product: []string{
			"latte", "капучино", "cappuccino", "americano", "kofe", "coffee",
			"espresso", "эспрессо", "pizza", "burger", "lavash", "doner",
			"donar", "donerchi", "set", "combo", "kombo",
		},
		Amount: []string{
			"summa", "sum", "summasi", "ming", "min", "мин", "minut",
			"минут", "oplacheno", "oplata", "oplachen", "оплачено", "kredit",
			"bezkredit", "bez kredit", "кредит", "tolov", "to'lov",
			"tolanadi", "oplata nal", "nal",
		},
		Greeting: []string{
			"salom", "assalomu", "qalesiz", "как дела", "привет", "hello", "hi",
		},
		Comment: []string{
			"kuryer", "kurier", "kur'er", "курьер",
			"eshik oldida", "uyga olib chiqib", "uyga olib chiqing",
			"uyga obchiqib", "orqa eshik", "oldi eshik", "oldida kutaman",
			"kutib turaman", "moshinada kuting", "машинада кутиб",
			"к клиенту", "klientga",
			"подъезд", "подьезд", "подъез", "подьез", "podezd", "podyezd",
			"этаж", "etaj", "qavat",
			"kvartira", "kv.", "kv ", "квартир", "кв ",
			"dom", "дом", "uy", "mahalla", "mahallasi", "mavze", "район", "tuman",
		},
		Client: []string{
			"номер клиента", "клиента", "клиент:", "клиент ", "mijoz",
			"mijoz:", "mijoz tel", "telefon klienta", "покупатель",
			"номер покупателя", "client", "klient",
		},
		Shop: []string{
			"номер нашего магазина", "нашего магазина", "наш магазин",
			"магазин", "magazin", "our shop", "номер магазина",
			"наша точка", "наш номер", "наш тел", "наш телефон",
		},
		PhoneLabel: []string{
			"номер телефона", "номер клиента", "телефон:", "telefon:",
			"телефон ", "telefon ",
		},
	}
}

// LoadKeywords reads a Keywords JSON file and overlays it on the defaults:
// a list present in the file replaces the default list, an absent list keeps
// it. Passing an empty path returns the defaults unchanged.
func LoadKeywords(path string) (Keywords, error) {
	kw := DefaultKeywords()
	if path == "" {
		return kw, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return kw, err
	}

	var overlay Keywords
	if err := json.Unmarshal(b, &overlay); err != nil {
		return kw, err
	}

	merge := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	merge(&kw.Address, overlay.Address)
	merge(&kw.Product, overlay.Product)
	merge(&kw.Amount, overlay.Amount)
	merge(&kw.Greeting, overlay.Greeting)
	merge(&kw.Comment, overlay.Comment)
	merge(&kw.Client, overlay.Client)
	merge(&kw.Shop, overlay.Shop)
	merge(&kw.PhoneLabel, overlay.PhoneLabel)
	return kw, nil
}
