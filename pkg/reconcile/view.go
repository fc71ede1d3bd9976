package reconcile

import (
	"time"

	"mint-desk/pkg/models"
	"mint-desk/pkg/rules"
)

// Row is one line of the dashboard table.
type Row struct {
	MergedPerson
	Status Status `json:"status"`
}

// View is an immutable reconciliation snapshot. Callers must not modify it.
type View struct {
	Rows        []Row        `json:"people"`
	Counts      map[Kind]int `json:"counts"`
	Submissions int          `json:"submissions"`
	NextTokenID string       `json:"nextTokenId"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// Reconcile merges roster and records and classifies every merged person.
func Reconcile(cfg *rules.Config, records []models.SubmissionRecord, now time.Time) *View {
	people := Merge(cfg.Roster, records, cfg.CountryCode)
	v := &View{
		Rows:        make([]Row, 0, len(people)),
		Counts:      make(map[Kind]int, len(kindNames)),
		Submissions: len(records),
		NextTokenID: NextTokenID(records),
		GeneratedAt: now,
	}
	for _, p := range people {
		st := Classify(p.Participant, records, cfg)
		v.Rows = append(v.Rows, Row{MergedPerson: p, Status: st})
		v.Counts[st.Kind]++
	}
	return v
}
