package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Budget shift classifications.
const (
	ShiftUnderAllocated = "under_allocated"
	ShiftOverspend      = "overspend"
	ShiftDonorCapacity  = "donor_capacity"
	ShiftBalanced       = "balanced"
	ShiftNoBudget       = "no_budget"
	ShiftNoLimit        = "no_limit"
)

// ShiftStrategy is a named pair of reallocation weights. The receiver
// weight scales how much of an account's net switch-in is added to its
// suggestion; the donor weight scales how much of its unused switch-out is
// cut.
type ShiftStrategy struct {
	Name           string
	ReceiverWeight decimal.Decimal
	DonorWeight    decimal.Decimal
}

var shiftStrategies = map[string]ShiftStrategy{
	"conservative": {Name: "conservative", ReceiverWeight: decimal.NewFromFloat(0.5), DonorWeight: decimal.NewFromFloat(0.3)},
	"normal":       {Name: "normal", ReceiverWeight: decimal.NewFromFloat(0.8), DonorWeight: decimal.NewFromFloat(0.5)},
	"aggressive":   {Name: "aggressive", ReceiverWeight: decimal.NewFromFloat(1.0), DonorWeight: decimal.NewFromFloat(0.8)},
}

// ResolveStrategy maps a caller-supplied strategy name onto the closed
// set, defaulting to normal for anything unrecognized.
func ResolveStrategy(name string) ShiftStrategy {
	if s, ok := shiftStrategies[strings.ToLower(strings.TrimSpace(name))]; ok {
		return s
	}
	return shiftStrategies["normal"]
}

// ShiftAccountInput is the per-account aggregate the analyzer works from:
// cycle spend/income excluding switches, switch totals with other owned
// accounts, plus the account's limit configuration.
type ShiftAccountInput struct {
	AccountID    string
	AccountName  string
	NoLimit      bool
	MonthlyLimit *int64
	Budget       *int64
	Spend        int64
	Income       int64
	SwitchIn     int64
	SwitchOut    int64
}

// ShiftAccount is the analyzer's verdict for one account.
type ShiftAccount struct {
	AccountID       string   `json:"accountId"`
	AccountName     string   `json:"accountName"`
	NoLimit         bool     `json:"noLimit"`
	MonthlyLimit    *int64   `json:"monthlyLimit,omitempty"`
	PlannedBudget   *int64   `json:"plannedBudget"`
	ActualSpend     int64    `json:"actualSpend"`
	ActualIncome    int64    `json:"actualIncome"`
	SwitchIn        int64    `json:"switchIn"`
	SwitchOut       int64    `json:"switchOut"`
	NetSwitch       int64    `json:"netSwitch"`
	BudgetGap       *int64   `json:"budgetGap"`
	StressRatio     *float64 `json:"stressRatio"`
	SuggestedBudget int64    `json:"suggestedBudget"`
	SuggestedDelta  *int64   `json:"suggestedDelta"`
	Status          string   `json:"status"`
	Reason          string   `json:"reason"`
}

// SwitchEdge is one directed flow in the owner's internal transfer graph.
type SwitchEdge struct {
	SourceAccountID   string `json:"sourceAccountId" db:"source_account_id"`
	SourceAccountName string `json:"sourceAccountName" db:"source_account_name"`
	TargetAccountID   string `json:"targetAccountId" db:"target_account_id"`
	TargetAccountName string `json:"targetAccountName" db:"target_account_name"`
	Amount            int64  `json:"amount" db:"amount"`
}

// ShiftTotals aggregates the report across all accounts.
type ShiftTotals struct {
	PlannedBudget int64 `json:"plannedBudget"`
	ActualSpend   int64 `json:"actualSpend"`
	BudgetGap     int64 `json:"budgetGap"`
	SwitchIn      int64 `json:"switchIn"`
	SwitchOut     int64 `json:"switchOut"`
	NetSwitch     int64 `json:"netSwitch"`
}

// ShiftReport is the full budget shift analysis for one cycle window.
type ShiftReport struct {
	Month       string         `json:"month"`
	Strategy    string         `json:"strategy"`
	Range       CycleWindow    `json:"range"`
	Totals      ShiftTotals    `json:"totals"`
	Accounts    []ShiftAccount `json:"accounts"`
	SwitchEdges []SwitchEdge   `json:"switchEdges"`
}

// weighted scales an amount by a strategy weight, rounding half to even.
func weighted(amount int64, weight decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(weight).RoundBank(0).IntPart()
}

// AnalyzeBudgetShift suggests how budgets could be reallocated based on
// the cycle's switch flows. Accounts that consistently receive switches
// while overspending are flagged under-allocated; accounts that donate
// while underspending have donor capacity. Suggestions never drop below
// actual spend.
func AnalyzeBudgetShift(month string, window CycleWindow, strategy string, accounts []ShiftAccountInput, edges []SwitchEdge) ShiftReport {
	st := ResolveStrategy(strategy)

	report := ShiftReport{
		Month:       month,
		Strategy:    st.Name,
		Range:       window,
		Accounts:    make([]ShiftAccount, 0, len(accounts)),
		SwitchEdges: edges,
	}
	if report.SwitchEdges == nil {
		report.SwitchEdges = []SwitchEdge{}
	}

	for _, in := range accounts {
		out := ShiftAccount{
			AccountID:    in.AccountID,
			AccountName:  in.AccountName,
			NoLimit:      in.NoLimit,
			MonthlyLimit: in.MonthlyLimit,
			ActualSpend:  in.Spend,
			ActualIncome: in.Income,
			SwitchIn:     in.SwitchIn,
			SwitchOut:    in.SwitchOut,
			NetSwitch:    in.SwitchIn - in.SwitchOut,
		}

		// The account's monthly limit wins over the per-month budget row.
		limit := in.Budget
		if in.MonthlyLimit != nil {
			limit = in.MonthlyLimit
		}
		out.PlannedBudget = limit

		switch {
		case in.NoLimit:
			out.SuggestedBudget = max64(0, in.Spend)
			out.Status = ShiftNoLimit
			out.Reason = "No-limit account"
		case limit == nil:
			out.SuggestedBudget = max64(0, in.Spend)
			out.Status = ShiftNoBudget
			out.Reason = "No budget set yet"
		default:
			gap := in.Spend - *limit
			out.BudgetGap = &gap

			ratio := 999.0
			if *limit > 0 {
				ratio = float64(in.Spend) / float64(*limit)
			} else if in.Spend == 0 {
				ratio = 1.0
			}
			out.StressRatio = &ratio

			suggested := max64(in.Spend, *limit)
			if out.NetSwitch > 0 {
				uplift := weighted(out.NetSwitch, st.ReceiverWeight)
				suggested = max64(suggested, *limit+uplift)
			}
			if in.SwitchOut > 0 && in.Spend < *limit {
				reducible := min64(in.SwitchOut, *limit-in.Spend)
				cut := weighted(reducible, st.DonorWeight)
				suggested = max64(in.Spend, *limit-cut)
			}
			out.SuggestedBudget = suggested
			delta := suggested - *limit
			out.SuggestedDelta = &delta

			switch {
			case gap > 0 && out.NetSwitch > 0:
				out.Status = ShiftUnderAllocated
				out.Reason = "Over budget and receives switch-in"
			case gap > 0:
				out.Status = ShiftOverspend
				out.Reason = "Over budget"
			case out.NetSwitch < 0 && in.Spend < *limit:
				out.Status = ShiftDonorCapacity
				out.Reason = "Consistent switch-out while spend is below budget"
			default:
				out.Status = ShiftBalanced
				out.Reason = "Within planned budget"
			}
		}

		if limit != nil {
			report.Totals.PlannedBudget += *limit
		}
		report.Totals.ActualSpend += in.Spend
		report.Totals.SwitchIn += in.SwitchIn
		report.Totals.SwitchOut += in.SwitchOut

		report.Accounts = append(report.Accounts, out)
	}

	report.Totals.BudgetGap = report.Totals.ActualSpend - report.Totals.PlannedBudget
	report.Totals.NetSwitch = report.Totals.SwitchIn - report.Totals.SwitchOut

	// Under-allocated accounts first, then by gap size, switch volume, name.
	sort.SliceStable(report.Accounts, func(i, j int) bool {
		a, b := report.Accounts[i], report.Accounts[j]
		ap, bp := a.Status == ShiftUnderAllocated, b.Status == ShiftUnderAllocated
		if ap != bp {
			return ap
		}
		ag, bg := gapOrZero(a.BudgetGap), gapOrZero(b.BudgetGap)
		if ag != bg {
			return ag > bg
		}
		an, bn := abs64(a.NetSwitch), abs64(b.NetSwitch)
		if an != bn {
			return an > bn
		}
		return a.AccountName < b.AccountName
	})

	return report
}

func gapOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
