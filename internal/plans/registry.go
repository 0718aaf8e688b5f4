package plans

// ID names a subscription plan tier.
type ID string

const (
	Free    ID = "free"
	Basic   ID = "basic"
	Premium ID = "premium"
)

// PromptTier selects the analysis depth used for AI completions.
type PromptTier int

const (
	TierBasic PromptTier = iota
	TierStandard
	TierAdvanced
)

func (t PromptTier) String() string {
	switch t {
	case TierStandard:
		return "standard"
	case TierAdvanced:
		return "advanced"
	default:
		return "basic"
	}
}

// Definition describes a plan: its display name, monthly generation quota
// and the prompt tier its users get.
type Definition struct {
	ID           ID         `json:"id"`
	Name         string     `json:"name"`
	MonthlyQuota int        `json:"monthly_quota"`
	Tier         PromptTier `json:"-"`
}

var definitions = map[ID]Definition{
	Free:    {ID: Free, Name: "Free", MonthlyQuota: 3, Tier: TierBasic},
	Basic:   {ID: Basic, Name: "Basic", MonthlyQuota: 25, Tier: TierStandard},
	Premium: {ID: Premium, Name: "Premium", MonthlyQuota: 100, Tier: TierAdvanced},
}

// Get returns the definition for the given plan, falling back to the free
// plan for unknown or empty ids. Total over all inputs.
func Get(id ID) Definition {
	if def, ok := definitions[id]; ok {
		return def
	}
	return definitions[Free]
}

// QuotaFor returns the monthly generation quota for the given plan.
func QuotaFor(id ID) int {
	return Get(id).MonthlyQuota
}

// TierFor returns the prompt tier for the given plan.
func TierFor(id ID) PromptTier {
	return Get(id).Tier
}

// Known reports whether id names a defined plan.
func Known(id ID) bool {
	_, ok := definitions[id]
	return ok
}

// All returns every plan definition, for display surfaces.
func All() []Definition {
	return []Definition{definitions[Free], definitions[Basic], definitions[Premium]}
}
