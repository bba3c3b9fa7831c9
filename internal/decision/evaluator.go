package decision

import "fmt"

// Evaluation thresholds. A run below minBars has too little history to judge
// either way and is always NO-GO.
const (
	minAnnualizedReturn = 0.05
	maxAcceptedDrawdown = 0.30
	fatalDrawdown       = 0.50
	minBarDownsideP10   = -0.002
	minBars             = 60
)

// Evaluator evaluates decision criteria.
type Evaluator struct{}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate produces DecisionResult from DecisionInput.
// GO if ALL criteria pass and NO NO-GO triggers.
// NO-GO if ANY criterion fails or ANY trigger fires.
func (e *Evaluator) Evaluate(input DecisionInput) *DecisionResult {
	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	allGOPass := true
	for _, c := range goCriteria {
		if !c.Pass {
			allGOPass = false
			break
		}
	}

	anyNOGOTriggered := false
	for _, c := range nogoChecks {
		if !c.Pass { // Pass=false means triggered
			anyNOGOTriggered = true
			break
		}
	}

	decision := DecisionGO
	if !allGOPass || anyNOGOTriggered {
		decision = DecisionNOGO
	}

	return &DecisionResult{
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

// evaluateGOCriteria evaluates the 5 GO criteria.
func (e *Evaluator) evaluateGOCriteria(input DecisionInput) []CriterionResult {
	criteria := make([]CriterionResult, 5)

	criteria[0] = CriterionResult{
		Name:      "Positive total return",
		Threshold: "> 0",
		Actual:    fmt.Sprintf("%.4f%%", input.TotalReturn*100),
		Pass:      input.TotalReturn > 0,
	}

	criteria[1] = CriterionResult{
		Name:      "Annualized return",
		Threshold: fmt.Sprintf(">= %.0f%%", minAnnualizedReturn*100),
		Actual:    fmt.Sprintf("%.2f%%", input.AnnualizedReturn*100),
		Pass:      input.AnnualizedReturn >= minAnnualizedReturn,
	}

	criteria[2] = CriterionResult{
		Name:      "Max drawdown",
		Threshold: fmt.Sprintf("<= %.0f%%", maxAcceptedDrawdown*100),
		Actual:    fmt.Sprintf("%.2f%%", input.MaxDrawdown*100),
		Pass:      input.MaxDrawdown <= maxAcceptedDrawdown,
	}

	criteria[3] = CriterionResult{
		Name:      "Bar downside bounded",
		Threshold: fmt.Sprintf("P10 >= %.2f%%", minBarDownsideP10*100),
		Actual:    fmt.Sprintf("P10=%.4f%%", input.ReturnP10*100),
		Pass:      input.ReturnP10 >= minBarDownsideP10,
	}

	criteria[4] = CriterionResult{
		Name:      "No liquidations",
		Threshold: "0",
		Actual:    fmt.Sprintf("%d", input.Liquidations),
		Pass:      input.Liquidations == 0,
	}

	return criteria
}

// evaluateNOGOTriggers evaluates the 4 NO-GO triggers.
// Pass=true means NOT triggered, Pass=false means triggered.
func (e *Evaluator) evaluateNOGOTriggers(input DecisionInput) []CriterionResult {
	checks := make([]CriterionResult, 4)

	triggered1 := input.TotalReturn <= 0
	checks[0] = CriterionResult{
		Name:      "Losing run",
		Threshold: "total return <= 0",
		Actual:    fmt.Sprintf("%.4f%%", input.TotalReturn*100),
		Pass:      !triggered1,
	}

	triggered2 := input.MaxDrawdown > fatalDrawdown
	checks[1] = CriterionResult{
		Name:      "Fatal drawdown",
		Threshold: fmt.Sprintf("> %.0f%%", fatalDrawdown*100),
		Actual:    fmt.Sprintf("%.2f%%", input.MaxDrawdown*100),
		Pass:      !triggered2,
	}

	triggered3 := input.Liquidations > 0
	checks[2] = CriterionResult{
		Name:      "Liquidated during run",
		Threshold: "liquidations > 0",
		Actual:    fmt.Sprintf("%d", input.Liquidations),
		Pass:      !triggered3,
	}

	triggered4 := input.Bars < minBars
	checks[3] = CriterionResult{
		Name:      "Insufficient history",
		Threshold: fmt.Sprintf("bars < %d", minBars),
		Actual:    fmt.Sprintf("%d", input.Bars),
		Pass:      !triggered4,
	}

	return checks
}
