package analysis

// FallbackTip is the single advisory returned when the model output cannot be parsed.
const FallbackTip = "Unable to parse analysis. Please review prescription manually and consult with a healthcare provider."

// ParsedAnalysis is the normalized result of a prescription analysis.
// Every list is non-nil so it always serializes as a JSON array.
// List elements are kept exactly as the model produced them.
type ParsedAnalysis struct {
	MedicationSchedule  []any       `json:"medication_schedule"`
	HarmfulCombinations []any       `json:"harmful_combinations"`
	OverdoseWarnings    []any       `json:"overdose_warnings"`
	SideEffects         SideEffects `json:"side_effects"`
	FoodInteractions    []any       `json:"food_interactions"`
	LifestyleAdvice     []any       `json:"lifestyle_advice"`
	GeneralTips         []any       `json:"general_tips"`
}

// SideEffects groups common and serious side effects
type SideEffects struct {
	Common  []any `json:"common"`
	Serious []any `json:"serious"`
}

// Element shapes the model is asked to produce. They document the schema;
// ParsedAnalysis does not force list elements into them.
type (
	MedicationEntry struct {
		Medicine     string `json:"medicine"`
		Dosage       string `json:"dosage"`
		Timing       string `json:"timing"`
		Instructions string `json:"instructions"`
	}

	HarmfulCombination struct {
		Medicines      []string `json:"medicines"`
		Risk           string   `json:"risk"`
		Recommendation string   `json:"recommendation"`
	}

	OverdoseWarning struct {
		Medicine     string `json:"medicine"`
		Warning      string `json:"warning"`
		MaxDailyDose string `json:"max_daily_dose"`
	}

	CommonSideEffect struct {
		Medicine string   `json:"medicine"`
		Effects  []string `json:"effects"`
	}

	SeriousSideEffect struct {
		Medicine       string   `json:"medicine"`
		Effects        []string `json:"effects"`
		ActionRequired string   `json:"action_required"`
	}

	FoodInteraction struct {
		Medicine       string `json:"medicine"`
		FoodItem       string `json:"food_item"`
		Interaction    string `json:"interaction"`
		Recommendation string `json:"recommendation"`
	}

	LifestyleAdvice struct {
		Medicine     string   `json:"medicine"`
		Advice       string   `json:"advice"`
		Restrictions []string `json:"restrictions"`
	}
)

// Empty returns an analysis with every list present and empty.
func Empty() ParsedAnalysis {
	return ParsedAnalysis{
		MedicationSchedule:  []any{},
		HarmfulCombinations: []any{},
		OverdoseWarnings:    []any{},
		SideEffects:         SideEffects{Common: []any{}, Serious: []any{}},
		FoodInteractions:    []any{},
		LifestyleAdvice:     []any{},
		GeneralTips:         []any{},
	}
}

// Fallback is returned when the model output is present but unparseable.
func Fallback() ParsedAnalysis {
	a := Empty()
	a.GeneralTips = []any{FallbackTip}
	return a
}

// RiskCounts value object, stored alongside the analysis blob for summaries
type RiskCounts struct {
	Medications         int `json:"medications"`
	HarmfulCombinations int `json:"harmful_combinations"`
	OverdoseWarnings    int `json:"overdose_warnings"`
	SeriousSideEffects  int `json:"serious_side_effects"`
	FoodInteractions    int `json:"food_interactions"`
}

// Counts derives RiskCounts from the analysis lists.
func (a ParsedAnalysis) Counts() RiskCounts {
	return RiskCounts{
		Medications:         len(a.MedicationSchedule),
		HarmfulCombinations: len(a.HarmfulCombinations),
		OverdoseWarnings:    len(a.OverdoseWarnings),
		SeriousSideEffects:  len(a.SideEffects.Serious),
		FoodInteractions:    len(a.FoodInteractions),
	}
}
