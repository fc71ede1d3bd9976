package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"mint-desk/pkg/models"
	"mint-desk/pkg/rules"
)

// Kind is one of the four mutually exclusive participant states.
type Kind int

const (
	NotClaimed Kind = iota
	KYCFinished
	PaidNoKYC
	Claimed
)

var kindNames = map[Kind]string{
	NotClaimed:  "not_claimed",
	KYCFinished: "kyc_finished",
	PaidNoKYC:   "paid",
	Claimed:     "claimed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Status is the classification result for one person. Record is set only
// for Claimed.
type Status struct {
	Kind   Kind
	Record *models.SubmissionRecord
}

// TokenID of the matched record, empty unless Claimed.
func (s Status) TokenID() string {
	if s.Record == nil {
		return ""
	}
	return s.Record.TokenID
}

// Label is the operator-facing text shown on the dashboard.
func (s Status) Label() string {
	switch s.Kind {
	case Claimed:
		return fmt.Sprintf("Nft claimed (Token ID: %s)", s.TokenID())
	case PaidNoKYC:
		return "Paid (No kyc)"
	case KYCFinished:
		return "Kyc finished NOT Nft"
	default:
		return "Nft not claimed"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind      Kind   `json:"kind"`
		Label     string `json:"label"`
		TokenID   string `json:"tokenId,omitempty"`
		Timestamp string `json:"timestamp,omitempty"`
	}{Kind: s.Kind, Label: s.Label(), TokenID: s.TokenID()}
	if s.Record != nil {
		out.Timestamp = s.Record.Timestamp
	}
	return json.Marshal(out)
}

// Classify evaluates the status rules in priority order; the first match wins.
func Classify(person models.Participant, records []models.SubmissionRecord, cfg *rules.Config) Status {
	if rec := FindClaim(person, records, cfg); rec != nil {
		return Status{Kind: Claimed, Record: rec}
	}
	switch {
	case cfg.IsPaid(person.Email):
		return Status{Kind: PaidNoKYC}
	case cfg.IsKYC(person.Email):
		return Status{Kind: KYCFinished}
	default:
		return Status{Kind: NotClaimed}
	}
}

// FindClaim looks for the record proving a claim. An email match anywhere in
// the collection beats every other rule. A person with an override rule is
// matched only through that rule; everyone else falls back to name equality.
func FindClaim(person models.Participant, records []models.SubmissionRecord, cfg *rules.Config) *models.SubmissionRecord {
	if email := rules.Key(person.Email); email != "" {
		for i := range records {
			if rules.Key(records[i].Email) == email {
				return &records[i]
			}
		}
	}

	if o, ok := cfg.OverrideFor(person.Email); ok {
		for i := range records {
			if o.Matches(person, records[i]) {
				return &records[i]
			}
		}
		return nil
	}

	first, last := nameKey(person.Name), nameKey(person.Surname)
	if first == "" || last == "" {
		return nil
	}
	for i := range records {
		if nameKey(records[i].FirstName) == first && nameKey(records[i].LastName) == last {
			return &records[i]
		}
	}
	return nil
}

// nameKey lower-cases a name and drops all whitespace so "Di Natale" and
// "DiNatale" compare equal.
func nameKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
