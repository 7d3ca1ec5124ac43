package wizard

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/store/memstore"
)

func newSessions(t *testing.T) (*memstore.Store, *Sessions) {
	t.Helper()
	st := memstore.New()
	gate := NewGate(st.Stores())
	return st, NewSessions(st.Stores(), gate)
}

func TestStartSession(t *testing.T) {
	_, sessions := newSessions(t)

	sess, err := sessions.Start(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sess.SessionID, "wizard_"))
	require.Equal(t, uint(7), sess.UserID)
	require.Equal(t, 1, sess.CurrentStep)
	require.Equal(t, "{}", sess.StepData)
	require.Nil(t, sess.ProjectID)
	require.False(t, sess.IsCompleted)
}

func TestSaveStepUnbound(t *testing.T) {
	ctx := context.Background()
	_, sessions := newSessions(t)

	sess, err := sessions.Start(ctx, 1)
	require.NoError(t, err)

	t.Run("step 1 allowed before binding", func(t *testing.T) {
		got, err := sessions.SaveStep(ctx, sess.SessionID, 1, json.RawMessage(`{"name":"New Project"}`))
		require.NoError(t, err)
		require.Equal(t, 2, got.CurrentStep)
		require.Contains(t, got.StepData, "step1")
	})

	t.Run("later steps blocked before binding", func(t *testing.T) {
		_, err := sessions.SaveStep(ctx, sess.SessionID, 2, json.RawMessage(`{}`))
		var blocked *apperr.StepBlockedError
		require.ErrorAs(t, err, &blocked)
		require.Equal(t, 1, blocked.NextAllowed)
	})

	t.Run("step out of range", func(t *testing.T) {
		_, err := sessions.SaveStep(ctx, sess.SessionID, MaxStep+1, json.RawMessage(`{}`))
		require.True(t, apperr.IsValidation(err))
	})
}

func TestSaveStepBound(t *testing.T) {
	ctx := context.Background()
	st, sessions := newSessions(t)

	p := seedProject(t, st)
	sess, err := sessions.Start(ctx, 1)
	require.NoError(t, err)
	_, err = sessions.BindProject(ctx, sess.SessionID, p.ID)
	require.NoError(t, err)

	t.Run("gate blocks steps ahead of derived progress", func(t *testing.T) {
		_, err := sessions.SaveStep(ctx, sess.SessionID, 3, json.RawMessage(`{}`))
		var blocked *apperr.StepBlockedError
		require.ErrorAs(t, err, &blocked)
		require.Equal(t, 2, blocked.NextAllowed)
	})

	t.Run("payloads merge per step", func(t *testing.T) {
		_, err := sessions.SaveStep(ctx, sess.SessionID, 1, json.RawMessage(`{"name":"A"}`))
		require.NoError(t, err)
		got, err := sessions.SaveStep(ctx, sess.SessionID, 2, json.RawMessage(`{"pm":10}`))
		require.NoError(t, err)

		var data map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(got.StepData), &data))
		require.Contains(t, data, "step1")
		require.Contains(t, data, "step2")
	})

	t.Run("replaying an earlier step does not regress the counter", func(t *testing.T) {
		got, err := sessions.SaveStep(ctx, sess.SessionID, 1, json.RawMessage(`{"name":"B"}`))
		require.NoError(t, err)
		require.Equal(t, 3, got.CurrentStep)
	})
}

func TestCompleteSession(t *testing.T) {
	ctx := context.Background()
	_, sessions := newSessions(t)

	sess, err := sessions.Start(ctx, 1)
	require.NoError(t, err)

	got, err := sessions.Complete(ctx, sess.SessionID)
	require.NoError(t, err)
	require.True(t, got.IsCompleted)

	// the row survives completion
	again, err := sessions.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	require.True(t, again.IsCompleted)
}
