package models

import "time"

// TransactionKind classifies a capital movement between the local account and
// the overseas margin account.
type TransactionKind string

const (
	// KindDeposit is capital sent to the overseas account ("envio").
	KindDeposit TransactionKind = "DEPOSIT"
	// KindWithdrawal is capital brought back from the overseas account ("retirada").
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	// KindYearEndUnrealized is the December 31 mark-to-market event ("não retirada"):
	// funds declared but not physically withdrawn, forcing annual gain recognition.
	KindYearEndUnrealized TransactionKind = "YEAR_END_UNREALIZED"
)

// CapitalTransaction is one user-entered capital movement. Dates carry no time
// component and are compared at UTC midnight.
type CapitalTransaction struct {
	Date      time.Time       `json:"-"`
	Kind      TransactionKind `json:"kind"`
	AmountUSD float64         `json:"amount_usd"`
}

// LedgerRow is the per-transaction audit trail produced by the cambial ledger.
type LedgerRow struct {
	Date       string          `json:"date"` // ISO yyyy-mm-dd
	Kind       TransactionKind `json:"kind"`
	AmountUSD  float64         `json:"amount_usd"`
	Rate       float64         `json:"rate"`
	AmountBRL  float64         `json:"amount_brl"`
	GainLoss   float64         `json:"gain_loss_brl"`
	BalanceUSD float64         `json:"balance_usd"` // running balance after this row
}

// LedgerSummary aggregates a full ledger run into the tax-relevant figures.
type LedgerSummary struct {
	BalanceUSD        float64  `json:"balance_usd"`
	CostBasisBRL      float64  `json:"cost_basis_brl"`
	TotalDepositedUSD float64  `json:"total_deposited_usd"`
	TotalWithdrawnUSD float64  `json:"total_withdrawn_usd"`
	TotalDepositedBRL float64  `json:"total_deposited_brl"`
	TotalWithdrawnBRL float64  `json:"total_withdrawn_brl"`
	TotalGainLoss     float64  `json:"total_gain_loss_brl"`
	TaxableGain       float64  `json:"taxable_gain_brl"`
	TaxDue            float64  `json:"tax_due_brl"`
	CarryForwardBRL   *float64 `json:"carry_forward_brl,omitempty"` // year-end mark value, when recorded
	ShowCarryForward  bool     `json:"show_carry_forward"`
	DisplayBalanceBRL float64  `json:"display_balance_brl"`
}

// LedgerReport is the full output of one cambial processing run.
type LedgerReport struct {
	Rows    []LedgerRow   `json:"rows"`
	Summary LedgerSummary `json:"summary"`
}

// TradeRecord is one row of an imported trade report after format normalization.
// Commission, Swap and Extra keep the raw string values from the source file so
// the original report can still be displayed faithfully.
type TradeRecord struct {
	CloseDate  string            `json:"close_date"` // canonical ISO yyyy-mm-dd
	MonthKey   string            `json:"month_key"`  // yyyy-mm
	Symbol     string            `json:"symbol"`
	ResultUSD  float64           `json:"result_usd"`
	ResultBRL  float64           `json:"result_brl"`
	Commission string            `json:"commission,omitempty"`
	Swap       string            `json:"swap,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"` // unmapped columns, slugified keys
}

// MonthlyResult is the per-month aggregate of trade results.
type MonthlyResult struct {
	Month     string  `json:"month"` // yyyy-mm
	ResultUSD float64 `json:"result_usd"`
	ResultBRL float64 `json:"result_brl"`
}

// TaxSummary holds the annual figures for the trade apportionment run. A negative
// NetAfterTax is the amount available to offset future gains; it is not carried
// forward automatically.
type TaxSummary struct {
	TotalUSD    float64 `json:"total_usd"`
	TotalBRL    float64 `json:"total_brl"`
	AnnualTax   float64 `json:"annual_tax_brl"`
	NetAfterTax float64 `json:"net_after_tax_brl"`
}

// TaxReport is the full output of one trade apportionment run.
type TaxReport struct {
	Platform string          `json:"platform"`
	Trades   []TradeRecord   `json:"trades"`
	Monthly  []MonthlyResult `json:"monthly"`
	Summary  TaxSummary      `json:"summary"`
}

// Rate holds the two directional PTAX quotes for a date. The sell rate converts
// money flowing into the foreign account, the buy rate money flowing out.
type Rate struct {
	Buy  float64 `json:"buy"`
	Sell float64 `json:"sell"`
}
