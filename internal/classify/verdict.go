// Package classify assigns inbound chat messages a role and an
// order-relatedness flag. A rule-based keyword pass is always available and
// costs nothing; an optional language-model backend can refine it. Callers
// only ever observe a fully-populated Verdict: any backend failure collapses
// silently to the rule-based result.
package classify

// Role is the coarse category assigned to a message.
type Role string

// Message roles.
const (
	RoleProduct Role = "PRODUCT"
	RoleComment Role = "COMMENT"
	RoleRandom  Role = "RANDOM"
	RoleUnknown Role = "UNKNOWN"
)

// Verdict sources, recorded for dataset capture.
const (
	SourceRules = "rules"
	SourceModel = "model"
)

// Verdict is the closed classification result. All fields are always set;
// there is no partially-populated state.
type Verdict struct {
	OrderRelated    bool   `json:"is_order_related"`
	Role            Role   `json:"role"`
	AddressKeywords bool   `json:"has_address_keywords"`
	Source          string `json:"source"`
}

// notRelated is the verdict for empty or undecidable input.
func notRelated(source string) Verdict {
	return Verdict{OrderRelated: false, Role: RoleUnknown, AddressKeywords: false, Source: source}
}
