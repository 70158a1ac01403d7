package models

import "github.com/shopspring/decimal"

type SourceType string

const (
	SourceInternal SourceType = "internal"
	SourceERP      SourceType = "erp"
	SourcePSP      SourceType = "psp"
)

// NormalizedTransaction is one column-aligned row as produced by the upstream
// normalizer. Dates stay as the normalizer's ISO strings; the matching engine
// parses them tolerantly.
type NormalizedTransaction struct {
	PSPTxnID        string           `json:"psp_txn_id"`
	MerchantRef     string           `json:"merchant_ref"`
	GrossAmount     decimal.Decimal  `json:"gross_amount"`
	Currency        string           `json:"currency"`
	ProcessingFee   decimal.Decimal  `json:"processing_fee"`
	NetPayout       decimal.Decimal  `json:"net_payout"`
	TransactionDate string           `json:"transaction_date"`
	SettlementDate  string           `json:"settlement_date"`
	ClientID        string           `json:"client_id"`
	ClientName      string           `json:"client_name"`
	Description     string           `json:"description"`
	Status          string           `json:"status"`
	PaymentMethod   string           `json:"payment_method"`
	SettlementBank  string           `json:"settlement_bank"`
	BankCountry     string           `json:"bank_country"`
	FXRate          *decimal.Decimal `json:"fx_rate"`
}
