package core

// GroupedRow is one (category, monthly target) group of a period query.
type GroupedRow struct {
	Category      string
	MonthlyTarget int64
	AchievedSum   int64
}

// MonthlyRow is one (category, calendar month) group of a year query.
type MonthlyRow struct {
	Category    string
	Month       int // 1-12
	AchievedSum int64
}
