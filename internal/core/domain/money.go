package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for balances and amounts.
const MoneyScale = 2

// MaxMoney is the largest magnitude a NUMERIC(20,2) column holds.
var MaxMoney = decimal.RequireFromString("999999999999999999.99")

var (
	ErrAmountPrecision   = errors.New("amount must have at most 2 decimal places")
	ErrAmountOutOfRange  = errors.New("amount exceeds the supported range")
	ErrBalanceOutOfRange = errors.New("resulting balance exceeds the supported range")
)

// ValidateAmount accepts positive amounts in whole cents within MaxMoney.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !amount.Equal(amount.Truncate(MoneyScale)) {
		return ErrAmountPrecision
	}
	if amount.GreaterThan(MaxMoney) {
		return ErrAmountOutOfRange
	}
	return nil
}

// ValidateBalance reports whether balance fits the stored range.
func ValidateBalance(balance decimal.Decimal) error {
	if balance.Abs().GreaterThan(MaxMoney) {
		return ErrBalanceOutOfRange
	}
	return nil
}
