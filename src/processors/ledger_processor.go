package processors

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/username/cambitax/backend/src/models"
)

const (
	// balanceEpsilon treats near-zero foreign balances as zero when deriving the
	// average cost per unit.
	balanceEpsilon = 1e-6

	// capitalGainsTaxRate is the flat rate on foreign-exchange gains (Lei
	// 14.754/2023).
	capitalGainsTaxRate = 0.15
)

// LedgerProcessor runs the weighted-average-cost cambial ledger over a sequence
// of capital movements. State lives only for the duration of one Process call.
type LedgerProcessor struct {
	rates RateSource
}

func NewLedgerProcessor(rates RateSource) *LedgerProcessor {
	return &LedgerProcessor{rates: rates}
}

// Process sorts the transactions ascending by date (stable: same-day entries
// keep their input order, which determines cost-basis attribution) and walks
// them sequentially, maintaining the running USD balance and BRL cost basis.
func (p *LedgerProcessor) Process(ctx context.Context, transactions []models.CapitalTransaction) (*models.LedgerReport, error) {
	if len(transactions) == 0 {
		return nil, fmt.Errorf("%w: no transactions to process", ErrInvalidSequence)
	}

	ordered := make([]models.CapitalTransaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	if err := validateSequence(ordered); err != nil {
		return nil, err
	}

	// Rate lookups for distinct dates are independent, so they fan out before
	// the strictly sequential ledger pass.
	dates := make([]time.Time, 0, len(ordered))
	for _, tx := range ordered {
		dates = append(dates, tx.Date)
	}
	if err := p.rates.Prefetch(ctx, dates); err != nil {
		return nil, err
	}

	var (
		balanceUSD        float64
		costBasisBRL      float64
		totalDepositedUSD float64
		totalWithdrawnUSD float64
		totalDepositedBRL float64
		totalWithdrawnBRL float64
		totalGainLoss     float64
		taxableGain       float64
		carryForwardBRL   *float64
		showCarryForward  bool
	)

	rows := make([]models.LedgerRow, 0, len(ordered))

	for _, tx := range ordered {
		rate, err := p.rates.Resolve(ctx, tx.Date)
		if err != nil {
			return nil, err
		}

		// Deposits convert at the sell rate, withdrawals at the buy rate,
		// mirroring the bid/ask spread of a real remittance.
		applicableRate := rate.Buy
		if tx.Kind == models.KindDeposit {
			applicableRate = rate.Sell
		}

		marketValueBRL := tx.AmountUSD * applicableRate
		previousAvgCost := 0.0
		if balanceUSD > balanceEpsilon {
			previousAvgCost = costBasisBRL / balanceUSD
		}

		var rowGainLoss float64

		switch tx.Kind {
		case models.KindDeposit:
			balanceUSD += tx.AmountUSD
			costBasisBRL += marketValueBRL
			totalDepositedUSD += tx.AmountUSD
			totalDepositedBRL += marketValueBRL

		case models.KindWithdrawal, models.KindYearEndUnrealized:
			if tx.AmountUSD > balanceUSD {
				return nil, fmt.Errorf("%w: withdrawal of %.2f USD on %s exceeds balance of %.2f USD",
					ErrInsufficientBalance, tx.AmountUSD, tx.Date.Format("2006-01-02"), balanceUSD)
			}

			withdrawalCostBRL := tx.AmountUSD * previousAvgCost
			rowGainLoss = marketValueBRL - withdrawalCostBRL
			totalGainLoss += rowGainLoss

			if tx.Kind == models.KindWithdrawal {
				// Only positive withdrawal gains are taxable; exchange losses
				// are not deductible.
				if rowGainLoss > 0 {
					taxableGain += rowGainLoss
				}
				totalWithdrawnUSD += tx.AmountUSD
				totalWithdrawnBRL += marketValueBRL
				balanceUSD -= tx.AmountUSD
				costBasisBRL -= withdrawalCostBRL
			} else {
				// Year-end mark: the balance stays put and the unrealized
				// gain/loss is folded into the cost basis going forward.
				costBasisBRL += 2 * rowGainLoss
				carried := marketValueBRL
				carryForwardBRL = &carried
				if tx.Date.Month() == time.December && tx.Date.Day() == 31 {
					showCarryForward = true
				}
			}
		}

		rows = append(rows, models.LedgerRow{
			Date:       tx.Date.Format("2006-01-02"),
			Kind:       tx.Kind,
			AmountUSD:  tx.AmountUSD,
			Rate:       applicableRate,
			AmountBRL:  marketValueBRL,
			GainLoss:   rowGainLoss,
			BalanceUSD: balanceUSD,
		})
	}

	taxDue := taxableGain * capitalGainsTaxRate

	displayBalanceBRL := 0.0
	switch {
	case carryForwardBRL != nil:
		displayBalanceBRL = *carryForwardBRL
	case balanceUSD >= balanceEpsilon:
		displayBalanceBRL = costBasisBRL + totalGainLoss
	}

	return &models.LedgerReport{
		Rows: rows,
		Summary: models.LedgerSummary{
			BalanceUSD:        balanceUSD,
			CostBasisBRL:      costBasisBRL,
			TotalDepositedUSD: totalDepositedUSD,
			TotalWithdrawnUSD: totalWithdrawnUSD,
			TotalDepositedBRL: totalDepositedBRL,
			TotalWithdrawnBRL: totalWithdrawnBRL,
			TotalGainLoss:     totalGainLoss,
			TaxableGain:       taxableGain,
			TaxDue:            taxDue,
			CarryForwardBRL:   carryForwardBRL,
			ShowCarryForward:  showCarryForward,
			DisplayBalanceBRL: displayBalanceBRL,
		},
	}, nil
}

func validateSequence(ordered []models.CapitalTransaction) error {
	for _, tx := range ordered {
		if math.IsNaN(tx.AmountUSD) || math.IsInf(tx.AmountUSD, 0) || tx.AmountUSD <= 0 {
			return fmt.Errorf("%w: amount %v on %s must be a positive number",
				ErrMalformedAmount, tx.AmountUSD, tx.Date.Format("2006-01-02"))
		}
		switch tx.Kind {
		case models.KindDeposit, models.KindWithdrawal:
		case models.KindYearEndUnrealized:
			if tx.Date.Month() != time.December || tx.Date.Day() != 31 {
				return fmt.Errorf("%w: year-end unrealized withdrawal is only permitted on December 31, got %s",
					ErrInvalidSequence, tx.Date.Format("2006-01-02"))
			}
		default:
			return fmt.Errorf("%w: unknown transaction kind %q", ErrInvalidSequence, tx.Kind)
		}
	}
	if ordered[0].Kind != models.KindDeposit {
		return fmt.Errorf("%w: the first transaction must be a deposit", ErrInvalidSequence)
	}
	return nil
}
