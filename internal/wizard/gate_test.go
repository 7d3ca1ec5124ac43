package wizard

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/store/memstore"
)

func seedProject(t *testing.T, st *memstore.Store) models.Project {
	t.Helper()
	p := models.Project{
		Name:           "Water Treatment Upgrade",
		Description:    "Stage 2",
		WorkflowStatus: models.WorkflowInitiated,
		CreatedBy:      1,
	}
	require.NoError(t, st.CreateProject(context.Background(), &p))
	return p
}

func assignTeam(t *testing.T, st *memstore.Store, projectID uint) {
	t.Helper()
	pm, spm := uint(10), uint(11)
	ok, err := st.UpdateProjectWhereStatus(context.Background(), projectID, models.WorkflowInitiated, func(p *models.Project) {
		p.AssignedPM = &pm
		p.AssignedSPM = &spm
		p.WorkflowStatus = models.WorkflowAssigned
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func addVersion(t *testing.T, st *memstore.Store, projectID uint) {
	t.Helper()
	v := models.ProjectVersion{ProjectID: projectID, Status: models.VersionDraft, CreatedBy: 10}
	require.NoError(t, st.CreateNextVersion(context.Background(), &v))
}

func TestProgressDerivation(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	gate := NewGate(st.Stores())

	p := seedProject(t, st)

	progress, err := gate.Progress(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1}, progress.CompletedSteps)
	require.Equal(t, 2, progress.NextAllowed)

	assignTeam(t, st, p.ID)
	progress, err = gate.Progress(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, progress.CompletedSteps)
	require.Equal(t, 3, progress.NextAllowed)

	addVersion(t, st, p.ID)
	progress, err = gate.Progress(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, progress.CompletedSteps)
	// everything done: next allowed stays capped at the last step
	require.Equal(t, MaxStep, progress.NextAllowed)
}

func TestProgressSessionFallback(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	gate := NewGate(st.Stores())
	sessions := NewSessions(st.Stores(), gate)

	p := seedProject(t, st)

	// team slots empty, but a session carries step 2 data
	sess, err := sessions.Start(ctx, 1)
	require.NoError(t, err)
	_, err = sessions.BindProject(ctx, sess.SessionID, p.ID)
	require.NoError(t, err)
	_, err = sessions.SaveStep(ctx, sess.SessionID, 2, json.RawMessage(`{"pm":10,"spm":11}`))
	require.NoError(t, err)

	progress, err := gate.Progress(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, progress.CompletedSteps)
	require.Equal(t, 3, progress.NextAllowed)
}

func TestProgressUnknownProject(t *testing.T) {
	st := memstore.New()
	gate := NewGate(st.Stores())

	_, err := gate.Progress(context.Background(), 404)
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.False(t, nf.SessionScoped)
}

func TestRequireStep(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	gate := NewGate(st.Stores())

	p := seedProject(t, st)

	require.NoError(t, gate.RequireStep(ctx, p.ID, 1))
	require.NoError(t, gate.RequireStep(ctx, p.ID, 2))

	err := gate.RequireStep(ctx, p.ID, 3)
	var blocked *apperr.StepBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Equal(t, 3, blocked.Requested)
	require.Equal(t, 2, blocked.NextAllowed)

	err = gate.RequireStep(ctx, p.ID, 0)
	require.True(t, apperr.IsValidation(err))
	err = gate.RequireStep(ctx, p.ID, MaxStep+1)
	require.True(t, apperr.IsValidation(err))
}

func TestResolveProjectID(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	gate := NewGate(st.Stores())
	sessions := NewSessions(st.Stores(), gate)

	t.Run("unknown session", func(t *testing.T) {
		_, err := gate.ResolveProjectID(ctx, "wizard_missing")
		var nf *apperr.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.True(t, nf.SessionScoped)
		require.Equal(t, apperr.CodeSessionOrProject, nf.Code())
	})

	t.Run("unbound session", func(t *testing.T) {
		sess, err := sessions.Start(ctx, 1)
		require.NoError(t, err)

		_, err = gate.ResolveProjectID(ctx, sess.SessionID)
		var nf *apperr.NotFoundError
		require.ErrorAs(t, err, &nf)
		require.True(t, nf.SessionScoped)
	})

	t.Run("bound session resolves", func(t *testing.T) {
		p := seedProject(t, st)
		sess, err := sessions.Start(ctx, 1)
		require.NoError(t, err)
		_, err = sessions.BindProject(ctx, sess.SessionID, p.ID)
		require.NoError(t, err)

		got, err := gate.ResolveProjectID(ctx, sess.SessionID)
		require.NoError(t, err)
		require.Equal(t, p.ID, got)
	})
}
