package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmptySet(t *testing.T) {
	s := New(t.TempDir())

	got, err := s.Load(KindSent)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" 0xABC ", "", "0xabc", "0xDEF\r", "  "})
	assert.Equal(t, []string{"0xabc", "0xdef"}, got)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	in := []string{"0xB", "0xa", "0xb", " 0xC "}
	require.NoError(t, s.Save(KindPending, in))

	got, err := s.Load(KindPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xa", "0xb", "0xc"}, got)

	// saving what was loaded is a content no-op
	require.NoError(t, s.Save(KindPending, got))
	again, err := s.Load(KindPending)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestSaveReplacesWholesale(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Save(KindPending, []string{"0xa", "0xb"}))
	require.NoError(t, s.Save(KindPending, []string{"0xc"}))

	got, err := s.Load(KindPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"0xc"}, got)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Save(KindSent, []string{"0xa"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(s.path(KindSent)), entries[0].Name())
}

func TestCandidatesExcludesSent(t *testing.T) {
	got := Candidates([]string{"0xa", "0xb", "0xc"}, []string{"0xb"}, nil)
	assert.Equal(t, []string{"0xa", "0xc"}, got)
}

func TestCandidatesPendingOverridesSent(t *testing.T) {
	got := Candidates([]string{"0xa", "0xb"}, []string{"0xa", "0xb"}, []string{"0xb"})
	assert.Equal(t, []string{"0xb"}, got)
}

func TestCandidatesNormalizesFetched(t *testing.T) {
	got := Candidates([]string{" 0xA ", "0xa", ""}, nil, nil)
	assert.Equal(t, []string{"0xa"}, got)
}
