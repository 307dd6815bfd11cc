package rules

// Copy modes supported by automation rules.
const (
	ModeTemplate  = "template"
	ModeGenerated = "generated"
)

// Rule is one tenant-owned automation rule, loaded from a YAML file in the
// rules directory. The pipeline treats rules as read-only.
type Rule struct {
	Name      string        // Derived from filename (without .yml extension)
	LoadIndex int           // Position in the load order, used as the stable tie-break
	Tenant    string        `yaml:"tenant"`
	Priority  *int          `yaml:"priority"` // nil sorts after explicit priorities, in load order
	Settings  RuleSettings  `yaml:"settings"`
	Match     RuleMatch     `yaml:"match"`
	Copy      RuleCopy      `yaml:"copy"`
	Channels  []RuleChannel `yaml:"channels"`
}

type RuleSettings struct {
	Enabled    bool `yaml:"enabled"`
	DailyQuota *int `yaml:"daily_quota"` // generative calls per calendar day, nil uses the default
}

// RuleMatch holds the match predicates. Nil/empty fields are wildcards.
type RuleMatch struct {
	Categories []string `yaml:"categories"`
	MinPrice   *float64 `yaml:"min_price"`
	MaxPrice   *float64 `yaml:"max_price"`
	MinScore   *int     `yaml:"min_score"`
	MinRating  *float64 `yaml:"min_rating"`
	MinReviews *int     `yaml:"min_reviews"`
}

type RuleCopy struct {
	Mode     string `yaml:"mode"`
	Template string `yaml:"template"`
	Style    string `yaml:"style"`
	Model    string `yaml:"model"`
}

type RuleChannel struct {
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
}

// DailyQuota returns the configured quota. An explicit zero disables
// generation for the rule; the loader fills in the default when the field is
// omitted entirely.
func (r *Rule) DailyQuota() int {
	if r.Settings.DailyQuota == nil {
		return 0
	}
	return *r.Settings.DailyQuota
}

// EffectivePriority returns the explicit priority, or a sentinel that sorts
// unset priorities after every explicit one.
func (r *Rule) EffectivePriority() int {
	if r.Priority != nil {
		return *r.Priority
	}
	return int(^uint(0) >> 1)
}
