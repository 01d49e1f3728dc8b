package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsInIssueOrder(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = New()
	}
	assert.True(t, sort.StringsAreSorted(ids))
	assert.Len(t, ids[0], 26)
}

func TestAtRoundTripsTime(t *testing.T) {
	at := time.Date(2021, 4, 7, 17, 59, 18, 37_000_000, time.UTC)
	got, err := Time(At(at))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	_, err = Time("nope")
	assert.Error(t, err)
}
