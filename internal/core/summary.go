package core

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// MonthSummary is a compact income/expense summary for a year+month.
type MonthSummary struct {
	Year          int              `json:"year"`
	Month         int              `json:"month"` // 1-12
	Income        Money            `json:"income"`
	Expenses      Money            `json:"expenses"`
	Net           Money            `json:"net"`
	IncomeByCat   []CategoryAmount `json:"income_by_category"`
	ExpensesByCat []CategoryAmount `json:"expenses_by_category"`
}

// RecurringSummary aggregates the active recurring templates.
type RecurringSummary struct {
	Total            int                `json:"total"`
	Active           int                `json:"active"`
	EstimatedMonthly Money              `json:"estimated_monthly"`
	ByCategory       []CategoryAmount   `json:"by_category"`
	ByFrequency      map[Frequency]Money `json:"by_frequency"`
}
