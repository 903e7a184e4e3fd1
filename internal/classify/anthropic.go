package classify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const classifySystemPrompt = `You classify messages from a group chat used to place delivery orders.
The messages mix Uzbek, Russian, and transliterated text.

Respond with ONLY a JSON object of this exact shape:
{
  "is_order_related": bool,
  "role": "PRODUCT" | "COMMENT" | "RANDOM" | "UNKNOWN",
  "has_address_keywords": bool
}

Definitions:
- "PRODUCT": order content, amount, price, time, payment/credit details
  ("277 000", "234 ming", "412ming", "Summa 412ming", "latte 2ta", "kredit").
- "COMMENT": address or handover instructions (entrance, floor, apartment,
  "Chilonzor 5 mavze 14 uy 43 xona", "eshik oldida kutib turaman").
- "RANDOM": unrelated chatter (greetings, jokes).
- "UNKNOWN": cannot be determined.

If the message states an amount, price, or time, classify it as PRODUCT.`

// AnthropicBackend implements Backend over the Anthropic Messages API.
type AnthropicBackend struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicBackend builds a backend for the given API key and model id.
func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
	}
}

// Classify sends the message plus recent context and parses the strict JSON
// verdict. Malformed output is an error, which the caller downgrades.
func (b *AnthropicBackend) Classify(ctx context.Context, text string, recent []string) (Verdict, error) {
	var sb strings.Builder
	sb.WriteString("Recent context messages:\n")
	for _, m := range recent {
		sb.WriteString("- ")
		sb.WriteString(m)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nMessage to classify:\n")
	sb.WriteString(text)

	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     b.model,
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: classifySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String())),
		},
	})
	if err != nil {
		return Verdict{}, err
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			out.WriteString(variant.Text)
		}
	}
	return parseVerdictJSON(out.String())
}

// parseVerdictJSON decodes the verdict object, tolerating surrounding prose
// by slicing the outermost braces.
func parseVerdictJSON(s string) (Verdict, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return Verdict{}, errors.New("classify: no JSON object in model output")
	}

	var raw struct {
		OrderRelated    bool   `json:"is_order_related"`
		Role            string `json:"role"`
		AddressKeywords bool   `json:"has_address_keywords"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &raw); err != nil {
		return Verdict{}, err
	}

	role := Role(strings.ToUpper(strings.TrimSpace(raw.Role)))
	switch role {
	case RoleProduct, RoleComment, RoleRandom, RoleUnknown:
	default:
		role = RoleUnknown
	}
	return Verdict{
		OrderRelated:    raw.OrderRelated,
		Role:            role,
		AddressKeywords: raw.AddressKeywords,
	}, nil
}
