package engine

import (
	"fmt"
	"io"
	"math"
	"papertrader/types"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Report struct {
	// Meta / period info
	StartDate    time.Time
	TotalPeriod  time.Duration
	TotalTrades  int
	ClosedTrades int

	// Absolute performance
	StartingValue        decimal.Decimal
	EndingValue          decimal.Decimal
	NetProfit            decimal.Decimal
	NetAvgProfitPerTrade decimal.Decimal
	CAGR                 decimal.Decimal

	// Trade-level distribution metrics
	AvgWin  decimal.Decimal
	AvgLoss decimal.Decimal

	// Drawdown & loss streak metrics
	MaxDrawdown          decimal.Decimal
	MaxDrawdownPercent   decimal.Decimal
	MaxDrawdownDays      time.Duration
	MaxConsecutiveLosses int

	// Risk-adjusted metrics
	SharpeRatio  decimal.Decimal
	ProfitFactor decimal.Decimal
}

// Report computes performance metrics from the fill log and the equity curve.
// Trade metrics only count sells, the fills that realize P&L.
func (e *Engine) Report(riskFreeRate decimal.Decimal) *Report {
	e.mu.RLock()
	fills := append([]types.Transaction(nil), e.fills...)
	curve := append([]types.EquitySnapshot(nil), e.equityCurve...)
	startCash := e.config.initialCash
	e.mu.RUnlock()

	return generateReport(fills, curve, startCash, riskFreeRate)
}

func generateReport(fills []types.Transaction, curve []types.EquitySnapshot, startCash, riskFreeRate decimal.Decimal) *Report {
	sells := closedTrades(fills)

	report := &Report{}
	report.TotalTrades = len(fills)
	report.ClosedTrades = len(sells)
	report.StartingValue = startCash
	report.EndingValue = startCash
	if len(curve) > 0 {
		report.StartDate = curve[0].Timestamp
		report.TotalPeriod = curve[len(curve)-1].Timestamp.Sub(curve[0].Timestamp).Truncate(time.Hour * 24)
		report.StartingValue = curve[0].Value
		report.EndingValue = curve[len(curve)-1].Value
	} else if len(fills) > 0 {
		report.StartDate = fills[0].Timestamp
	}

	var wg sync.WaitGroup
	wg.Add(7)
	go func() {
		report.NetProfit = calcNetProfit(sells, &wg)
	}()
	go func() {
		report.NetAvgProfitPerTrade = calcNetAvgProfitPerTrade(sells, &wg)
	}()
	go func() {
		report.AvgWin, report.AvgLoss = calcAvgWinLossPerTrade(sells, &wg)
	}()
	go func() {
		report.CAGR = calcCAGR(curve, &wg)
	}()
	go func() {
		report.MaxDrawdown, report.MaxDrawdownPercent, report.MaxDrawdownDays = calcDrawdownMetrics(curve, &wg)
	}()
	go func() {
		report.MaxConsecutiveLosses = calcMaxConsecutiveLosses(sells, &wg)
	}()
	go func() {
		report.SharpeRatio = calcSharpeRatio(curve, riskFreeRate, &wg)
	}()
	wg.Wait()

	report.ProfitFactor = calcProfitFactor(sells)
	return report
}

func PrintReport(w io.Writer, report *Report) {
	fmt.Fprintln(w, "===== Trading Report =====")
	if !report.StartDate.IsZero() {
		fmt.Fprintf(w, "Start Date:            %s\n", report.StartDate.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Total Period:          %d days\n", report.TotalPeriod/(24*time.Hour))
	fmt.Fprintf(w, "Total Fills:           %d\n", report.TotalTrades)
	fmt.Fprintf(w, "Closed Trades:         %d\n", report.ClosedTrades)

	fmt.Fprintln(w, "\n-- Absolute Performance --")
	fmt.Fprintf(w, "Starting Value:        %s\n", types.FormatUSD(report.StartingValue))
	fmt.Fprintf(w, "Ending Value:          %s\n", types.FormatUSD(report.EndingValue))
	fmt.Fprintf(w, "Net Realized Profit:   %s\n", types.FormatUSD(report.NetProfit))
	fmt.Fprintf(w, "Avg Profit/Trade:      %s\n", types.FormatUSD(report.NetAvgProfitPerTrade))
	fmt.Fprintf(w, "CAGR:                  %s\n", report.CAGR.StringFixed(4))

	fmt.Fprintln(w, "\n-- Trade-Level Metrics --")
	fmt.Fprintf(w, "Avg Win:               %s\n", types.FormatUSD(report.AvgWin))
	fmt.Fprintf(w, "Avg Loss:              %s\n", types.FormatUSD(report.AvgLoss))
	fmt.Fprintf(w, "Profit Factor:         %s\n", report.ProfitFactor.StringFixed(2))

	fmt.Fprintln(w, "\n-- Drawdown Metrics --")
	fmt.Fprintf(w, "Max Drawdown:          %s\n", types.FormatUSD(report.MaxDrawdown))
	fmt.Fprintf(w, "Max Drawdown %%:        %s\n", report.MaxDrawdownPercent.Mul(decimal.NewFromInt(100)).StringFixed(2))
	fmt.Fprintf(w, "Max Drawdown Days:     %v\n", report.MaxDrawdownDays)
	fmt.Fprintf(w, "Max Consecutive Losses:%d\n", report.MaxConsecutiveLosses)

	fmt.Fprintln(w, "\n-- Risk-Adjusted Metrics --")
	fmt.Fprintf(w, "Sharpe Ratio:          %s\n", report.SharpeRatio.StringFixed(4))

	fmt.Fprintln(w, "==========================")
}

// closedTrades returns the sell fills in chronological order.
func closedTrades(fills []types.Transaction) []types.Transaction {
	var sells []types.Transaction
	for _, tx := range fills {
		if tx.Side == types.SideTypeSell && tx.Status == types.StatusFilled {
			sells = append(sells, tx)
		}
	}
	sort.SliceStable(sells, func(i, j int) bool { return sells[i].Timestamp.Before(sells[j].Timestamp) })
	return sells
}

func calcNetProfit(sells []types.Transaction, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	net := decimal.Zero
	for _, tx := range sells {
		net = net.Add(tx.RealizedPnL)
	}
	return net
}

func calcNetAvgProfitPerTrade(sells []types.Transaction, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()

	if len(sells) == 0 {
		return decimal.Zero
	}
	net := decimal.Zero
	for _, tx := range sells {
		net = net.Add(tx.RealizedPnL)
	}
	return net.Div(decimal.NewFromInt(int64(len(sells))))
}

func calcAvgWinLossPerTrade(sells []types.Transaction, wg *sync.WaitGroup) (decimal.Decimal, decimal.Decimal) {
	defer wg.Done()

	sumWins := decimal.Zero
	sumLosses := decimal.Zero // store absolute loss amounts
	winCount := 0
	lossCount := 0

	for _, tx := range sells {
		switch {
		case tx.RealizedPnL.GreaterThan(decimal.Zero):
			sumWins = sumWins.Add(tx.RealizedPnL)
			winCount++
		case tx.RealizedPnL.LessThan(decimal.Zero):
			sumLosses = sumLosses.Add(tx.RealizedPnL.Abs())
			lossCount++
		}
	}

	avgWin := decimal.Zero
	avgLoss := decimal.Zero

	if winCount > 0 {
		avgWin = sumWins.Div(decimal.NewFromInt(int64(winCount)))
	}
	if lossCount > 0 {
		avgLoss = sumLosses.Div(decimal.NewFromInt(int64(lossCount)))
	}

	return avgWin, avgLoss
}

// calcProfitFactor is gross profit over gross loss; zero when there are no losses.
func calcProfitFactor(sells []types.Transaction) decimal.Decimal {
	gross, loss := decimal.Zero, decimal.Zero
	for _, tx := range sells {
		if tx.RealizedPnL.IsPositive() {
			gross = gross.Add(tx.RealizedPnL)
		} else {
			loss = loss.Add(tx.RealizedPnL.Abs())
		}
	}
	if loss.IsZero() {
		return decimal.Zero
	}
	return gross.Div(loss)
}

func calcCAGR(curve []types.EquitySnapshot, wg *sync.WaitGroup) decimal.Decimal {
	defer wg.Done()
	if len(curve) < 2 {
		return decimal.Zero
	}

	startSnap := curve[0]
	endSnap := curve[len(curve)-1]

	// If starting value is <= 0, CAGR is not well-defined
	if !startSnap.Value.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	// time difference in years (using 365.25 days to account for leap years)
	duration := endSnap.Timestamp.Sub(startSnap.Timestamp)
	if duration <= 0 {
		return decimal.Zero
	}
	years := duration.Hours() / (24.0 * 365.25)

	ratio := endSnap.Value.Div(startSnap.Value)
	if !ratio.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}

	cagrFloat := math.Pow(ratio.InexactFloat64(), 1.0/years) - 1.0
	if math.IsInf(cagrFloat, 0) || math.IsNaN(cagrFloat) {
		return decimal.Zero
	}

	return decimal.NewFromFloat(cagrFloat)
}

func calcDrawdownMetrics(
	curve []types.EquitySnapshot,
	wg *sync.WaitGroup,
) (decimal.Decimal, decimal.Decimal, time.Duration) {
	defer wg.Done()

	if len(curve) == 0 {
		return decimal.Zero, decimal.Zero, 0
	}

	peak := decimal.Zero
	var peakTime time.Time

	maxDD := decimal.Zero
	maxDDPct := decimal.Zero
	var maxDDDuration time.Duration

	for i, snap := range curve {
		equity := snap.Value

		if i == 0 || equity.GreaterThan(peak) || peak.IsZero() {
			peak = equity
			peakTime = snap.Timestamp
		}

		if peak.GreaterThan(decimal.Zero) {
			dd := peak.Sub(equity) // absolute drawdown

			if dd.GreaterThan(maxDD) {
				maxDD = dd
				maxDDPct = dd.Div(peak)
				maxDDDuration = snap.Timestamp.Sub(peakTime)
			}
		}
	}

	return maxDD, maxDDPct, maxDDDuration
}

func calcMaxConsecutiveLosses(sells []types.Transaction, wg *sync.WaitGroup) int {
	defer wg.Done()

	maxLossStreak := 0
	currentStreak := 0

	for _, tx := range sells {
		if tx.RealizedPnL.LessThan(decimal.Zero) {
			currentStreak++
			if currentStreak > maxLossStreak {
				maxLossStreak = currentStreak
			}
		} else {
			currentStreak = 0
		}
	}

	return maxLossStreak
}

func calcSharpeRatio(
	curve []types.EquitySnapshot,
	annualRiskFree decimal.Decimal,
	wg *sync.WaitGroup,
) decimal.Decimal {
	defer wg.Done()
	monthlyReturns := getMonthlyReturns(curve)
	if len(monthlyReturns) < 2 {
		// Need at least 2 months to compute stddev
		return decimal.Zero
	}

	// rf_monthly = (1 + rf_annual)^(1/12) - 1
	rfAnnualFloat := annualRiskFree.InexactFloat64()
	rfMonthlyFloat := math.Pow(1.0+rfAnnualFloat, 1.0/12.0) - 1.0

	excess := make([]float64, 0, len(monthlyReturns))
	for _, r := range monthlyReturns {
		excess = append(excess, r.InexactFloat64()-rfMonthlyFloat)
	}

	var sum float64
	for _, x := range excess {
		sum += x
	}
	meanMonthlyExcess := sum / float64(len(excess))

	// Sample standard deviation of monthly excess returns
	var varianceSum float64
	for _, x := range excess {
		diff := x - meanMonthlyExcess
		varianceSum += diff * diff
	}
	stdMonthly := math.Sqrt(varianceSum / float64(len(excess)-1))
	if stdMonthly == 0 {
		return decimal.Zero
	}

	// Monthly Sharpe, then annualize by sqrt(12)
	sharpeMonthly := meanMonthlyExcess / stdMonthly
	sharpeAnnual := sharpeMonthly * math.Sqrt(12.0)

	return decimal.NewFromFloat(sharpeAnnual)
}

func getMonthlyReturns(curve []types.EquitySnapshot) []decimal.Decimal {
	if len(curve) == 0 {
		return nil
	}

	type monthKey struct {
		year  int
		month time.Month
	}

	sorted := append([]types.EquitySnapshot(nil), curve...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	// The last sample seen in a month is its close.
	var keys []monthKey
	monthEnds := make(map[monthKey]decimal.Decimal)
	for _, snap := range sorted {
		y, m, _ := snap.Timestamp.Date()
		key := monthKey{year: y, month: m}
		if _, ok := monthEnds[key]; !ok {
			keys = append(keys, key)
		}
		monthEnds[key] = snap.Value
	}

	if len(keys) < 2 {
		return nil
	}

	returns := make([]decimal.Decimal, 0, len(keys)-1)
	prev := monthEnds[keys[0]]

	for _, k := range keys[1:] {
		curr := monthEnds[k]

		if !prev.GreaterThan(decimal.Zero) {
			prev = curr
			continue
		}

		returns = append(returns, curr.Div(prev).Sub(decimal.NewFromInt(1)))
		prev = curr
	}

	return returns
}
