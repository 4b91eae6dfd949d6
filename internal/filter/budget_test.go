package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ingest/internal/types"
)

func TestBudgetStopsAtTotalSize(t *testing.T) {
	budget := NewBudget(Policy{MaxFileCount: 10, MaxTotalSize: 100})
	require.True(t, budget.Admit("a", 60).Include)
	require.True(t, budget.Admit("b", 40).Include)
	require.Equal(t, Decision{Reason: types.ReasonTotalSizeLimit}, budget.Admit("c", 1))
	require.Equal(t, Decision{Reason: types.ReasonTotalSizeLimit}, budget.Admit("d", 0))
	require.True(t, budget.Truncated())
	require.Equal(t, int64(100), budget.AdmittedBytes())
	require.Contains(t, budget.Notice(), "c")
}

func TestBudgetStopsAtFileCount(t *testing.T) {
	budget := NewBudget(Policy{MaxFileCount: 2, MaxTotalSize: 1000})
	require.True(t, budget.Admit("a", 1).Include)
	require.True(t, budget.Admit("b", 1).Include)
	decision := budget.Admit("c", 1)
	require.False(t, decision.Include)
	require.Equal(t, types.ReasonFileCountLimit, decision.Reason)
	require.Equal(t, 2, budget.AdmittedFiles())
}

func TestBudgetRefusesEverythingAfterTruncation(t *testing.T) {
	budget := NewBudget(Policy{MaxFileCount: 10, MaxTotalSize: 10})
	require.False(t, budget.Admit("big", 11).Include)
	require.False(t, budget.Admit("small", 1).Include)
	require.Zero(t, budget.AdmittedFiles())
	require.False(t, NewBudget(Policy{MaxFileCount: 1, MaxTotalSize: 1}).Truncated())
}
