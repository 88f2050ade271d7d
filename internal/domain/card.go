package domain

// CreditCard is a catalog entry searchable by embedding similarity.
type CreditCard struct {
	ID         string    `json:"id"`
	CardName   string    `json:"card_name"`
	BankName   string    `json:"bank_name"`
	AnnualFee  string    `json:"annual_fee"`
	Features   string    `json:"features"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Similarity float64   `json:"similarity,omitempty"`
}
