package types

// UnsignedTransaction is a provider-built transaction payload awaiting the
// caller's signature. For EVM chains To/Data/Value/GasLimit are populated;
// for Solana and Sui the serialized payload travels in Data; for CEX legs
// Data carries the venue order parameters.
type UnsignedTransaction struct {
	ChainID  string `json:"chain_id"`
	To       string `json:"to,omitempty"`
	Data     string `json:"data"`
	Value    string `json:"value,omitempty"`
	GasLimit string `json:"gas_limit,omitempty"`
}

// SignedTransaction is a caller-signed payload ready for broadcast. The
// service never signs anything itself.
type SignedTransaction struct {
	ChainID string `json:"chain_id"`
	Raw     string `json:"raw"` // hex (EVM) or base64 (Solana/Sui) encoding
}

// TransactionState is the shared status vocabulary every chain family's
// status report maps onto
type TransactionState string

const (
	TxPending    TransactionState = "PENDING"
	TxConfirming TransactionState = "CONFIRMING"
	TxConfirmed  TransactionState = "CONFIRMED"
	TxFailed     TransactionState = "FAILED"
)

// TransactionStatus is a point-in-time status report for a broadcast
type TransactionStatus struct {
	State                 TransactionState `json:"state"`
	Confirmations         uint64           `json:"confirmations,omitempty"`
	RequiredConfirmations uint64           `json:"required_confirmations,omitempty"`
	BlockNumber           int64            `json:"block_number,omitempty"`
	Error                 string           `json:"error,omitempty"`
}
