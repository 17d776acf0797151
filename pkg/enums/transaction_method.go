package enums

// TransactionMethod records how the card was presented at the terminal.
type TransactionMethod string

const (
	TransactionMethodNFC    TransactionMethod = "nfc"
	TransactionMethodQR     TransactionMethod = "qr"
	TransactionMethodManual TransactionMethod = "manual"
)

var validTransactionMethods = []TransactionMethod{
	TransactionMethodNFC,
	TransactionMethodQR,
	TransactionMethodManual,
}

// String implements fmt.Stringer.
func (m TransactionMethod) String() string {
	return string(m)
}

// IsValid reports whether the value matches a known TransactionMethod.
func (m TransactionMethod) IsValid() bool {
	return contains(validTransactionMethods, m)
}

// ScanSource maps the payment method onto the location source recorded for
// the point-of-sale sample.
func (m TransactionMethod) ScanSource() ScanSource {
	switch m {
	case TransactionMethodNFC:
		return ScanSourceNFC
	case TransactionMethodQR:
		return ScanSourceQR
	default:
		return ScanSourceManual
	}
}

// ParseTransactionMethod converts raw input into a TransactionMethod.
func ParseTransactionMethod(value string) (TransactionMethod, error) {
	return parse(validTransactionMethods, value, "transaction method")
}
