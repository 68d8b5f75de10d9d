// Package store keeps the durable record of which recipients have been paid
// and which are pending retry. The record is the sole source of truth across
// process restarts, so every write replaces the file atomically.
package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Kind selects one of the two durable recipient sets.
type Kind string

const (
	KindSent    Kind = "sent"
	KindPending Kind = "pending"
)

func (k Kind) filename() string {
	return "addresses_" + string(k) + ".txt"
}

// Store persists newline-delimited, normalized address sets under a directory.
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dir, kind.filename())
}

// Normalize trims, lowercases, drops empty lines and deduplicates while
// preserving first-seen order.
func Normalize(addrs []string) []string {
	trimmed := lo.FilterMap(addrs, func(a string, _ int) (string, bool) {
		a = strings.ToLower(strings.TrimSpace(a))
		return a, a != ""
	})
	return lo.Uniq(trimmed)
}

// Load reads the recorded set for kind. A missing file is an empty set, not
// an error.
func (s *Store) Load(kind Kind) ([]string, error) {
	content, err := os.ReadFile(s.path(kind))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %v record", kind)
	}
	return Normalize(strings.Split(string(content), "\n")), nil
}

// Save atomically replaces the record for kind with the given set. The file
// holds one normalized address per line in sorted order, so re-writing the
// same set is byte-identical. Write-new-then-rename keeps a crash from
// leaving a partial file behind.
func (s *Store) Save(kind Kind, addrs []string) error {
	sorted := treeset.NewWithStringComparator()
	for _, a := range Normalize(addrs) {
		sorted.Add(a)
	}

	var b strings.Builder
	for _, v := range sorted.Values() {
		b.WriteString(v.(string))
		b.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(s.dir, string(kind)+"-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %v record", kind)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %v record", kind)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %v record", kind)
	}
	if err = os.Rename(tmp.Name(), s.path(kind)); err != nil {
		return errors.Wrapf(err, "replace %v record", kind)
	}
	return nil
}

// Candidates computes the recipients eligible for the current run: every
// fetched address not yet sent, plus any address explicitly pending retry.
// Pending wins over sent, so a recipient recorded as failed after a partial
// success in an earlier run is retried.
func Candidates(fetched, sent, pending []string) []string {
	sentSet := lo.SliceToMap(sent, func(a string) (string, struct{}) { return a, struct{}{} })
	pendingSet := lo.SliceToMap(pending, func(a string) (string, struct{}) { return a, struct{}{} })

	return lo.Filter(Normalize(fetched), func(a string, _ int) bool {
		_, isSent := sentSet[a]
		_, isPending := pendingSet[a]
		return !isSent || isPending
	})
}
