package core

// BudgetInput feeds the budget-vs-plan breakdown. Budget <= 0 means no
// budget is set.
type BudgetInput struct {
	Budget      int64
	BoughtTotal int64
	IdeaTotal   int64
	PlanTotal   int64
}

// BudgetBreakdown is a 100%-stacked progress-bar split of spend vs budget.
// The three shares tile a single bar: Bought + Idea + Over never exceeds
// 100 regardless of how far over budget the plan runs.
type BudgetBreakdown struct {
	Bought float64 `json:"bought"`
	Idea   float64 `json:"idea"`
	Over   float64 `json:"over"`
	Total  float64 `json:"total"`
}

// BudgetPercents computes the breakdown.
//
// Within budget the shares are plain fractions of the budget. Over budget
// the bought/idea shares are compressed proportionally into the fraction of
// the bar that still fits, and Over absorbs the remainder up to 100.
func BudgetPercents(in BudgetInput) BudgetBreakdown {
	if in.Budget <= 0 || in.PlanTotal <= 0 {
		return BudgetBreakdown{}
	}

	if in.PlanTotal > in.Budget {
		within := float64(in.Budget) / float64(in.PlanTotal) * 100
		return BudgetBreakdown{
			Bought: float64(in.BoughtTotal) / float64(in.PlanTotal) * within,
			Idea:   float64(in.IdeaTotal) / float64(in.PlanTotal) * within,
			Over:   100 - within,
			Total:  100,
		}
	}

	total := float64(in.PlanTotal) / float64(in.Budget) * 100
	if total > 100 {
		total = 100
	}
	return BudgetBreakdown{
		Bought: float64(in.BoughtTotal) / float64(in.Budget) * 100,
		Idea:   float64(in.IdeaTotal) / float64(in.Budget) * 100,
		Total:  total,
	}
}
