package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/waypost/internal/ir"
	"github.com/roach88/waypost/internal/store"
	"github.com/roach88/waypost/internal/testutil"
)

func TestFlowsList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "flows.db")
	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.SaveFlow(context.Background(), ir.FlowSnapshot{
		ID:          "flow-0001",
		FlowType:    "onboarding",
		CurrentStep: 1,
		History:     []int{0},
		Data:        ir.Object{"name": ir.String("Ada")},
		TotalSteps:  3,
		StepPaths:   []string{"welcome", "account", "done"},
		UpdatedAt:   testutil.Epoch,
	}))
	require.NoError(t, st.Close())

	out, err := execute(t, "--format", "json", "flows", "--db", db, "list")
	require.NoError(t, err)
	var flows []ir.FlowSnapshot
	decodeResponse(t, out, &flows)
	require.Len(t, flows, 1)
	assert.Equal(t, "onboarding", flows[0].FlowType)
	assert.Equal(t, 1, flows[0].CurrentStep)

	out, err = execute(t, "flows", "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "flow-0001  onboarding  step 2/3 (account)  updated 2024-01-01 00:00:00")
}

func TestFlowsList_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "empty.db")

	out, err := execute(t, "flows", "--db", db, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No persisted flows.")
}
