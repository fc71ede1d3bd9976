package models

// Represents the data structure coming from the storefront claim form
type MintFormData struct {
	FirstName   string `json:"firstName" validate:"required,notblank"`
	LastName    string `json:"lastName" validate:"required,notblank"`
	Email       string `json:"email" validate:"required,notblank,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required,notblank"`
}

// Purchase is the claim intent attached to a form submission
type Purchase struct {
	Quantity        int          `json:"quantity" validate:"gte=1"`
	ContractAddress string       `json:"contractAddress" validate:"required"`
	ContractType    ContractType `json:"contractType" validate:"required,oneof=ERC721 ERC1155 ERC20"`
}

// MintRequest is the body accepted by the submission endpoint
type MintRequest struct {
	MintFormData
	Purchase
}

// StatusUpdate is the body accepted by the mint-tracking status endpoint
type StatusUpdate struct {
	Status          string         `json:"status" binding:"required"`
	TransactionData map[string]any `json:"transactionData,omitempty"`
}
