package enums

type TransactionStatus string

const (
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusPending   TransactionStatus = "pending"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusSucceeded,
	TransactionStatusFailed,
	TransactionStatusPending,
}

func (s TransactionStatus) String() string {
	return string(s)
}

func (s TransactionStatus) IsValid() bool {
	return contains(validTransactionStatuses, s)
}

func ParseTransactionStatus(value string) (TransactionStatus, error) {
	return parse(validTransactionStatuses, value, "transaction status")
}
