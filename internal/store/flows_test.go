package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/ir"
)

func TestSaveFlow_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	when := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := ir.FlowSnapshot{
		ID:          "flow-1",
		FlowType:    "onboarding",
		CurrentStep: 2,
		History:     []int{0, 1},
		Data: ir.NewObject(
			ir.O("name", ir.NewString("Ada")),
			ir.O("birthday", ir.NewTime(when)),
		),
		TotalSteps: 4,
		StepPaths:  []string{"/a", "/b", "/c", "/d"},
		UpdatedAt:  when,
	}
	require.NoError(t, s.SaveFlow(ctx, snap))

	snaps, err := s.LoadFlows(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	got := snaps[0]
	assert.Equal(t, "onboarding", got.FlowType)
	assert.Equal(t, 2, got.CurrentStep)
	assert.Equal(t, []int{0, 1}, got.History)
	assert.Equal(t, 4, got.TotalSteps)
	assert.Equal(t, []string{"/a", "/b", "/c", "/d"}, got.StepPaths)
	assert.Equal(t, ir.String("Ada"), got.Data["name"])
	birthday, ok := got.Data["birthday"].(ir.Time)
	require.True(t, ok)
	assert.True(t, time.Time(birthday).Equal(when))
}

func TestSaveFlow_UpsertsAndDeletes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	snap := ir.FlowSnapshot{ID: "flow-1", FlowType: "checkout", TotalSteps: 3, UpdatedAt: time.Now()}
	require.NoError(t, s.SaveFlow(ctx, snap))

	snap.CurrentStep = 1
	snap.History = []int{0}
	require.NoError(t, s.SaveFlow(ctx, snap))

	snaps, err := s.LoadFlows(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 1, snaps[0].CurrentStep)
	assert.Empty(t, snaps[0].Data)

	require.NoError(t, s.DeleteFlow(ctx, "flow-1"))
	snaps, err = s.LoadFlows(ctx)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
