package model

// Company is the metadata known about a listed symbol. Exchange holds the
// provider's exchange code, e.g. "AMS" or "LSE".
type Company struct {
	Symbol   string
	Name     string
	Exchange string
	Industry string
	Currency string
}
