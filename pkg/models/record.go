package models

import (
	"bytes"
	"encoding/json"
)

type ContractType string

const (
	ContractERC721  ContractType = "ERC721"
	ContractERC1155 ContractType = "ERC1155"
	ContractERC20   ContractType = "ERC20"
)

// Submission statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// SubmissionRecord is one entry of the append-only mint request collection
type SubmissionRecord struct {
	FirstName          string         `json:"firstName"`
	LastName           string         `json:"lastName"`
	Email              string         `json:"email"`
	PhoneNumber        string         `json:"phoneNumber"`
	Quantity           int            `json:"quantity"`
	ContractAddress    string         `json:"contractAddress"`
	ContractType       ContractType   `json:"contractType"`
	TokenID            string         `json:"tokenId"`
	Timestamp          string         `json:"timestamp"`
	Status             string         `json:"status"`
	DestinationAddress string         `json:"destinationAddress"`
	CompletedAt        string         `json:"completedAt,omitempty"`
	TransactionData    map[string]any `json:"transactionData,omitempty"`
}

// UnmarshalJSON accepts a tokenId written as a JSON string or number. Any
// other value decodes as an empty tokenId, which the scan skips.
func (r *SubmissionRecord) UnmarshalJSON(data []byte) error {
	type plain SubmissionRecord
	aux := struct {
		*plain
		TokenID json.RawMessage `json:"tokenId"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.TokenID = ""
	raw := bytes.TrimSpace(aux.TokenID)
	switch {
	case len(raw) == 0:
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &r.TokenID); err != nil {
			return err
		}
	case raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'):
		r.TokenID = string(raw)
	}
	return nil
}

// Participant is a roster entry known before any submission arrives
type Participant struct {
	Name        string `json:"name" yaml:"name"`
	Surname     string `json:"surname" yaml:"surname"`
	Email       string `json:"email" yaml:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty" yaml:"phoneNumber,omitempty"`
	Status      string `json:"status,omitempty" yaml:"status,omitempty"`
}
