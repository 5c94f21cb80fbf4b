package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()

	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.IncrStats(ctx, true))
	assert.NoError(t, s.RecordReport(ctx, "SimpleReport", "3", "static", true))
	assert.NoError(t, s.Close())

	tot, err := s.GetTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, Totals{}, *tot)

	top, err := s.TopReports(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)
}
