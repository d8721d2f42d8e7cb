package enums

// ReferenceType tags what a wallet transaction settles against.
type ReferenceType string

const (
	ReferenceTypeOrder    ReferenceType = "order"
	ReferenceTypeRefund   ReferenceType = "refund"
	ReferenceTypePayout   ReferenceType = "payout"
	ReferenceTypeTopup    ReferenceType = "topup"
	ReferenceTypeWithdraw ReferenceType = "withdrawal"
	ReferenceTypeCashback ReferenceType = "cashback"
)

// String implements fmt.Stringer.
func (r ReferenceType) String() string {
	return string(r)
}
