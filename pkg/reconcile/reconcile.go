// Package reconcile joins the participant roster with submitted mint
// requests and classifies every participant. Nothing here performs I/O.
package reconcile

import (
	"math/big"
	"strings"
	"unicode"

	"mint-desk/pkg/models"
	"mint-desk/pkg/rules"
)

// MergedPerson is a roster participant enriched with submission data, or a
// participant seen only in submissions.
type MergedPerson struct {
	models.Participant
	Synthetic bool `json:"synthetic,omitempty"`
}

// NormalizePhone strips whitespace and prefixes countryCode when the number
// carries no international prefix. Empty input stays empty.
func NormalizePhone(phone, countryCode string) string {
	phone = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
	if phone == "" || strings.HasPrefix(phone, "+") {
		return phone
	}
	return countryCode + phone
}

// NextTokenID returns one past the highest numeric tokenId, or "0" when no
// record carries a parseable one.
// Token ids are uint256 on chain, so the arithmetic is unbounded.
func NextTokenID(records []models.SubmissionRecord) string {
	highest := big.NewInt(-1)
	for _, r := range records {
		n, ok := new(big.Int).SetString(strings.TrimSpace(r.TokenID), 10)
		if !ok {
			continue
		}
		if n.Cmp(highest) > 0 {
			highest = n
		}
	}
	return highest.Add(highest, big.NewInt(1)).String()
}

// Merge seeds the people list from the roster and folds every submission in.
// Output order is roster order followed by first-seen submission order.
func Merge(roster []models.Participant, records []models.SubmissionRecord, countryCode string) []MergedPerson {
	people := make([]MergedPerson, 0, len(roster)+len(records))
	index := make(map[string]int, len(roster)+len(records))

	for _, p := range roster {
		key := rules.Key(p.Email)
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = len(people)
		people = append(people, MergedPerson{Participant: p})
	}

	for _, rec := range records {
		key := rules.Key(rec.Email)
		phone := NormalizePhone(rec.PhoneNumber, countryCode)

		if i, ok := index[key]; ok {
			if phone != "" {
				people[i].PhoneNumber = phone
			}
			continue
		}

		index[key] = len(people)
		people = append(people, MergedPerson{
			Participant: models.Participant{
				Name:        strings.TrimSpace(rec.FirstName),
				Surname:     strings.TrimSpace(rec.LastName),
				Email:       strings.TrimSpace(rec.Email),
				PhoneNumber: phone,
				Status:      rec.Status,
			},
			Synthetic: true,
		})
	}
	return people
}
