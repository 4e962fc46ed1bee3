package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		in   string
		want EventType
		ok   bool
	}{
		{"Accepted", EventAccepted, true},
		{"accepted", EventAccepted, true},
		{"COMPLETED", EventCompleted, true},
		{"  Completed ", EventCompleted, true},
		{"reopened", "", false},
		{"", "", false},
		{"done", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseEventType(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseDate_Formats(t *testing.T) {
	want := time.Date(2012, 4, 3, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2012-04-03",
		"2012-04-03T14:55:12Z",
		"2012-04-03T14:55:12",
		"2012-04-03 14:55:12",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, "input %q", in)
		assert.True(t, got.Equal(want), "input %q: got %v", in, got)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("not-a-date")
	assert.Error(t, err)

	_, err = ParseDate("2012-13-45")
	assert.Error(t, err)
}

func TestMemorySource_RowFaultTaxonomy(t *testing.T) {
	src := NewMemorySource().
		Add("C1", "Accepted", "2012-04-03").
		Add("", "Accepted", "2012-04-03").
		Add("C2", "Rejected", "2012-04-03").
		Add("C3", "Completed", "04/03/2012").
		Add("C4", "Completed", "2012-04-05")

	result, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, result.RowsRead)
	assert.Len(t, result.Events, 2)
	assert.Equal(t, 3, result.SkippedTotal())
	assert.Equal(t, 1, result.Skipped[SkipMissingID])
	assert.Equal(t, 1, result.Skipped[SkipUnknownType])
	assert.Equal(t, 1, result.Skipped[SkipBadDate])
	assert.InDelta(t, 0.6, result.SkipFraction(), 1e-9)
}

func TestMemorySource_SeqFollowsAcceptedOrder(t *testing.T) {
	src := NewMemorySource().
		Add("C1", "Accepted", "2012-04-03").
		Add("bad", "nope", "2012-04-03").
		Add("C2", "Accepted", "2012-04-03")

	result, err := src.Load(context.Background())
	require.NoError(t, err)

	// Seq numbers accepted rows only, preserving relative input order.
	require.Len(t, result.Events, 2)
	assert.Equal(t, 0, result.Events[0].Seq)
	assert.Equal(t, "C1", result.Events[0].EntityID)
	assert.Equal(t, 1, result.Events[1].Seq)
	assert.Equal(t, "C2", result.Events[1].EntityID)
}

func TestLoadResult_SkipFraction_Empty(t *testing.T) {
	r := &LoadResult{}
	assert.Equal(t, 0.0, r.SkipFraction())
}

func TestDay_NormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	in := time.Date(2012, 4, 3, 1, 30, 0, 0, loc) // 2012-04-02 23:30 UTC

	got := Day(in)
	assert.True(t, got.Equal(time.Date(2012, 4, 2, 0, 0, 0, 0, time.UTC)))
}
