// Package persona maps credit profiles onto static advisory personas.
package persona

// ID names one of the twelve personas, e.g. "Persona 4".
type ID string

// Persona identifiers.
const (
	Persona1  ID = "Persona 1"
	Persona2  ID = "Persona 2"
	Persona3  ID = "Persona 3"
	Persona4  ID = "Persona 4"
	Persona5  ID = "Persona 5"
	Persona6  ID = "Persona 6"
	Persona7  ID = "Persona 7"
	Persona8  ID = "Persona 8"
	Persona9  ID = "Persona 9"
	Persona10 ID = "Persona 10"
	Persona11 ID = "Persona 11"
	Persona12 ID = "Persona 12"
)

// Persona describes a profile segment used to bias prompts.
type Persona struct {
	ID                 ID       `json:"id"`
	Situation          string   `json:"situation"`
	Goal               string   `json:"goal"`
	CriticalDataPoints []string `json:"criticalDataPoints"`
	Prompt             string   `json:"prompt,omitempty"`
}

var catalog = []Persona{
	{
		ID:                 Persona1,
		Situation:          "Credit Score Below 650 (High Defaults)",
		Prompt:             "Your credit score is low. Let's find the top two actions to improve it.",
		Goal:               "Improve credit score, reduce delinquencies.",
		CriticalDataPoints: []string{"Defaults/Delinquencies", "Late Payments (30/60/90 days)", "FOIR", "Credit History Length"},
	},
	{
		ID:                 Persona2,
		Situation:          "Credit Score 650-720 (High FOIR, Overleveraged)",
		Prompt:             "Your FOIR is high. How can you manage EMIs better?",
		Goal:               "EMI reduction, balance transfer.",
		CriticalDataPoints: []string{"FOIR", "Number of Active Loans", "Income vs. Obligations"},
	},
	{
		ID:                 Persona3,
		Situation:          "Credit Score 720-750 (Stable but High Credit Utilization)",
		Prompt:             "Your utilization is high. Would you like to balance it?",
		Goal:               "Consolidation, top-ups.",
		CriticalDataPoints: []string{"Credit Utilization", "Loan Balances"},
	},
	{
		ID:                 Persona4,
		Situation:          "Credit Score 750-800 (Active Loans, EMI Focus)",
		Prompt:             "Explore loan optimization options to reduce EMI.",
		Goal:               "Top-ups, debt consolidation.",
		CriticalDataPoints: []string{"EMI Payments", "Loan Balances"},
	},
	{
		ID:                 Persona5,
		Situation:          "Credit Score 750+ (Debt-Free, No Running Loans)",
		Prompt:             "Explore premium credit products.",
		Goal:               "Credit expansion.",
		CriticalDataPoints: []string{"Income", "Account Type"},
	},
	{
		ID:                 Persona6,
		Situation:          "Score 800+ (Premium Borrower)",
		Prompt:             "Let's explore premium cards and overdrafts.",
		Goal:               "Maximize credit opportunities.",
		CriticalDataPoints: []string{"Credit Score", "Utilization"},
	},
	{
		ID:                 Persona7,
		Situation:          "No Credit History (-1 or NA)",
		Prompt:             "Start building credit with secured cards or small loans.",
		Goal:               "Establish credit profile.",
		CriticalDataPoints: []string{"Employment Status", "Income"},
	},
	{
		ID:                 Persona8,
		Situation:          "Self-Employed, High Unsecured Debt",
		Prompt:             "Would you like to shift unsecured debt to secured loans?",
		Goal:               "Debt restructuring.",
		CriticalDataPoints: []string{"Unsecured Debt", "FOIR"},
	},
	{
		ID:                 Persona9,
		Situation:          "High Utilization, Minimal Defaults (Above 750 but Overleveraged)",
		Prompt:             "Manage utilization for better future credit opportunities.",
		Goal:               "Balance management.",
		CriticalDataPoints: []string{"Utilization", "Loan Balances"},
	},
	{
		ID:                 Persona10,
		Situation:          "Stable Users (720+ but High FOIR)",
		Prompt:             "Focus on EMI reduction to improve eligibility.",
		Goal:               "FOIR optimization.",
		CriticalDataPoints: []string{"FOIR", "EMI Payments"},
	},
	{
		ID:                 Persona11,
		Situation:          "Young Credit Users (Score >720, Low Credit Age)",
		Prompt:             "Would you like to explore more products to build history?",
		Goal:               "Expand credit lines.",
		CriticalDataPoints: []string{"Credit Age", "Income"},
	},
	{
		ID:                 Persona12,
		Situation:          "Senior Borrowers (Score 800+, Minimal Obligations)",
		Prompt:             "Explore investment products linked to credit.",
		Goal:               "Optimize investments.",
		CriticalDataPoints: []string{"Investment Options", "Credit Score"},
	},
}

var byID = func() map[ID]Persona {
	m := make(map[ID]Persona, len(catalog))
	for _, p := range catalog {
		m[p.ID] = p
	}
	return m
}()

// Lookup returns the persona descriptor for id.
func Lookup(id ID) (Persona, bool) {
	p, ok := byID[id]
	if !ok {
		return Persona{}, false
	}
	return p.clone(), true
}

// All returns every persona in catalog order.
func All() []Persona {
	out := make([]Persona, 0, len(catalog))
	for _, p := range catalog {
		out = append(out, p.clone())
	}
	return out
}

// clone keeps callers from mutating the shared descriptor slices.
func (p Persona) clone() Persona {
	p.CriticalDataPoints = append([]string(nil), p.CriticalDataPoints...)
	return p
}
