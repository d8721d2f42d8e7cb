package enums

import "fmt"

// VoucherScope restricts which users or merchants a voucher applies to.
type VoucherScope string

const (
	VoucherScopeAll               VoucherScope = "all"
	VoucherScopeSpecificUsers     VoucherScope = "specific_users"
	VoucherScopeSpecificMerchants VoucherScope = "specific_merchants"
	VoucherScopeNewUsers          VoucherScope = "new_users"
)

var validVoucherScopes = []VoucherScope{
	VoucherScopeAll,
	VoucherScopeSpecificUsers,
	VoucherScopeSpecificMerchants,
	VoucherScopeNewUsers,
}

// String implements fmt.Stringer.
func (v VoucherScope) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherScope.
func (v VoucherScope) IsValid() bool {
	for _, candidate := range validVoucherScopes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherScope converts raw input into a VoucherScope.
func ParseVoucherScope(value string) (VoucherScope, error) {
	for _, candidate := range validVoucherScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher scope %q", value)
}
