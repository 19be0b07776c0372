package dbutil

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRebinds(t *testing.T) {
	q, args := Finalize("SELECT id FROM analysis_jobs WHERE case_id = ? AND status = ?", []interface{}{"c", "queued"})
	require.Equal(t, "SELECT id FROM analysis_jobs WHERE case_id = $1 AND status = $2", q)
	require.Len(t, args, 2)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(&pq.Error{Code: "23505"}))
	require.True(t, IsConflict(fmt.Errorf("insert job: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(fmt.Errorf("boom")))
}
