package payout

type SubmitRequest struct {
	Reference   string `json:"reference"` // our withdrawal id
	UPIAddress  string `json:"upiAddress"`
	AmountINR   int64  `json:"amountInr"`
	Description string `json:"description,omitempty"`
}

type SubmitResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"` // accepted | processing | paid | failed
}
