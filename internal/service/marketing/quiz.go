package marketing

import (
	"slices"
	"strings"

	"storefront/internal/domain"
)

// Quiz answer values.
var (
	Goals      = []string{"sleep", "energy", "focus", "recovery", "immunity", "general"}
	Activities = []string{"low", "moderate", "high"}
	Diets      = []string{"omnivore", "vegetarian", "vegan"}
)

// Answers is one submitted quiz.
type Answers struct {
	Goal     string `form:"goal" json:"goal"`
	Activity string `form:"activity" json:"activity"`
	Diet     string `form:"diet" json:"diet"`
	Email    string `form:"email" json:"email"`
}

// Recommendation is the product suggested by the quiz.
type Recommendation struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// rule matches when every non-empty field equals the answer.
type rule struct {
	goal, activity, diet string
	rec                  Recommendation
}

// Rules are checked in order; the last one matches everything.
var rules = []rule{
	{goal: "recovery", diet: "vegan", rec: Recommendation{"plant-protein", "Plant protein supports recovery without dairy."}},
	{goal: "recovery", activity: "high", rec: Recommendation{"recovery-protein", "Whey protein and electrolytes for hard training days."}},
	{goal: "recovery", rec: Recommendation{"magnesium-recovery", "Magnesium helps muscles relax after activity."}},
	{goal: "sleep", rec: Recommendation{"sleep-support", "Magnesium and L-theanine for a calmer night."}},
	{goal: "energy", activity: "high", rec: Recommendation{"daily-energy", "B vitamins and electrolytes for active days."}},
	{goal: "energy", diet: "vegan", rec: Recommendation{"vegan-b12", "B12 is the nutrient plant-based diets most often miss."}},
	{goal: "energy", rec: Recommendation{"daily-energy", "B vitamins to support everyday energy."}},
	{goal: "focus", rec: Recommendation{"focus-blend", "Lion's mane and L-theanine for steady focus."}},
	{goal: "immunity", rec: Recommendation{"immune-defense", "Vitamin C, D3 and zinc for immune support."}},
	{diet: "vegan", rec: Recommendation{"vegan-multivitamin", "A complete multivitamin made for plant-based diets."}},
	{rec: Recommendation{"daily-multivitamin", "A complete daily foundation."}},
}

// Recommend maps answers to a product with the fixed rule table.
func Recommend(a Answers) Recommendation {
	for _, r := range rules {
		if r.matches(a) {
			return r.rec
		}
	}
	return rules[len(rules)-1].rec
}

func (r rule) matches(a Answers) bool {
	return (r.goal == "" || r.goal == a.Goal) &&
		(r.activity == "" || r.activity == a.Activity) &&
		(r.diet == "" || r.diet == a.Diet)
}

func (a Answers) normalize() (Answers, error) {
	a.Goal = strings.ToLower(strings.TrimSpace(a.Goal))
	a.Activity = strings.ToLower(strings.TrimSpace(a.Activity))
	a.Diet = strings.ToLower(strings.TrimSpace(a.Diet))
	if !slices.Contains(Goals, a.Goal) {
		return a, domain.Invalid("goal", "must be one of "+strings.Join(Goals, ", "))
	}
	if !slices.Contains(Activities, a.Activity) {
		return a, domain.Invalid("activity", "must be one of "+strings.Join(Activities, ", "))
	}
	if !slices.Contains(Diets, a.Diet) {
		return a, domain.Invalid("diet", "must be one of "+strings.Join(Diets, ", "))
	}
	if strings.TrimSpace(a.Email) != "" {
		email, err := normalizeEmail(a.Email)
		if err != nil {
			return a, err
		}
		a.Email = email
	} else {
		a.Email = ""
	}
	return a, nil
}
