package middleman

// ExecuteTransactionInput is what the demand API passes when a signed transaction is ready.
type ExecuteTransactionInput struct {
	TransactionID int64
}

type NodeStatusInput struct {
	BatchSize int64
}
