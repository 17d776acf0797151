package enums

// TransactionKind distinguishes debits from credits on a member wallet.
type TransactionKind string

const (
	TransactionKindPurchase TransactionKind = "purchase"
	TransactionKindTopUp    TransactionKind = "top_up"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindPurchase,
	TransactionKindTopUp,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value matches a known TransactionKind.
func (k TransactionKind) IsValid() bool {
	return contains(validTransactionKinds, k)
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	return parse(validTransactionKinds, value, "transaction kind")
}
