package models

// Holding is one non-zero balance in the portfolio.
type Holding struct {
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
}

type RecommendationResponse struct {
	Recommendations string `json:"recommendations"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type StatusResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}
