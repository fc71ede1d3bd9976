// Package store defines the keyed collection the storefront writes mint
// requests into and the dashboard subscribes to.
package store

import (
	"context"
	"errors"

	"mint-desk/pkg/models"
)

// ErrNotFound is returned by Patch when the key does not exist.
var ErrNotFound = errors.New("record not found")

// Entry is a stored record together with its generated key.
type Entry struct {
	Key    string
	Record models.SubmissionRecord
}

// Collection is an append-only keyed tree of submission records.
type Collection interface {
	// Append stores rec under a newly generated key and returns that key.
	Append(ctx context.Context, path string, rec models.SubmissionRecord) (string, error)
	// ReadAll returns every record in insertion order.
	ReadAll(ctx context.Context, path string) ([]Entry, error)
	// Subscribe calls onChange once immediately and again after every change
	// under path until the returned function is called or ctx ends.
	Subscribe(ctx context.Context, path string, onChange func()) (unsubscribe func(), err error)
	// Patch merges fields into the record stored under key.
	Patch(ctx context.Context, path, key string, fields map[string]any) error
	Close() error
}

// Records strips keys from entries.
func Records(entries []Entry) []models.SubmissionRecord {
	out := make([]models.SubmissionRecord, len(entries))
	for i, e := range entries {
		out[i] = e.Record
	}
	return out
}
