package enums

import "fmt"

// WalletTransactionType classifies ledger entries. Credit/topup carry positive
// amounts, debit/withdraw negative.
type WalletTransactionType string

const (
	WalletTransactionTypeCredit   WalletTransactionType = "credit"
	WalletTransactionTypeDebit    WalletTransactionType = "debit"
	WalletTransactionTypeTopup    WalletTransactionType = "topup"
	WalletTransactionTypeWithdraw WalletTransactionType = "withdraw"
)

var validWalletTransactionTypes = []WalletTransactionType{
	WalletTransactionTypeCredit,
	WalletTransactionTypeDebit,
	WalletTransactionTypeTopup,
	WalletTransactionTypeWithdraw,
}

// String implements fmt.Stringer.
func (w WalletTransactionType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletTransactionType.
func (w WalletTransactionType) IsValid() bool {
	for _, candidate := range validWalletTransactionTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// IsOutflow reports whether the type removes funds from the wallet.
func (w WalletTransactionType) IsOutflow() bool {
	return w == WalletTransactionTypeDebit || w == WalletTransactionTypeWithdraw
}

// ParseWalletTransactionType converts raw input into a WalletTransactionType.
func ParseWalletTransactionType(value string) (WalletTransactionType, error) {
	for _, candidate := range validWalletTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet transaction type %q", value)
}
