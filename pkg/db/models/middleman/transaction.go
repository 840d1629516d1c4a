package middleman

import "time"

const (
	TransactionsTableName        = "transactions"
	TransactionsToNodesTableName = "transactions_to_nodes"
)

type TransactionType string

const (
	TransactionTypeStake            TransactionType = "stake"
	TransactionTypeUnstake          TransactionType = "unstake"
	TransactionTypeOperationalFunds TransactionType = "operational_funds"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailure TransactionStatus = "failure"
)

// Terminal reports whether the workflow is done with the transaction.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailure
}

// Transaction is a signed stake, unstake or funds transfer created by the demand side and
// driven to a terminal status by the execution workflow.
type Transaction struct {
	ID                 int64             `json:"id"`
	Type               TransactionType   `json:"type"`
	Status             TransactionStatus `json:"status"`
	Hash               string            `json:"hash,omitempty"`
	ExecutionHeight    *int64            `json:"execution_height,omitempty"`
	VerificationHeight *int64            `json:"verification_height,omitempty"`
	Code               *uint32           `json:"code,omitempty"`
	Log                string            `json:"log,omitempty"`
	ConsumedFee        int64             `json:"consumed_fee"`
	EstimatedFee       int64             `json:"estimated_fee"`
	SignedPayload      string            `json:"signed_payload"`
	UnsignedPayload    string            `json:"unsigned_payload"`
	FromAddress        string            `json:"from_address"`
	// ProviderID is the identity of the provider the transaction stakes with.
	ProviderID string    `json:"provider_id,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Messages decodes the unsigned payload into tagged messages.
func (t *Transaction) Messages() ([]Message, error) {
	return ParseMessages(t.UnsignedPayload)
}

type TransactionUpdate struct {
	Status             *TransactionStatus `json:"status,omitempty"`
	Hash               *string            `json:"hash,omitempty"`
	ExecutionHeight    *int64             `json:"execution_height,omitempty"`
	VerificationHeight *int64             `json:"verification_height,omitempty"`
	Code               *uint32            `json:"code,omitempty"`
	Log                *string            `json:"log,omitempty"`
	ConsumedFee        *int64             `json:"consumed_fee,omitempty"`
}

// Empty reports an update that would not change anything.
func (u TransactionUpdate) Empty() bool {
	return u.Status == nil && u.Hash == nil && u.ExecutionHeight == nil && u.VerificationHeight == nil &&
		u.Code == nil && u.Log == nil && u.ConsumedFee == nil
}
