package wizard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/models"
	"pfmt-portal/internal/store"
)

// Sessions manages the ephemeral wizard session rows. Sessions are created
// at wizard start, lazily bound to a project once step 1 persists one, and
// superseded rather than deleted.
type Sessions struct {
	Wizard store.WizardStore
	Gate   *Gate
}

func NewSessions(st store.Stores, gate *Gate) *Sessions {
	return &Sessions{Wizard: st.Wizard, Gate: gate}
}

// Start opens a fresh session at step 1.
func (s *Sessions) Start(ctx context.Context, userID uint) (models.WizardSession, error) {
	sess := models.WizardSession{
		SessionID:   "wizard_" + uuid.NewString(),
		UserID:      userID,
		CurrentStep: 1,
		StepData:    "{}",
	}
	if err := s.Wizard.CreateSession(ctx, &sess); err != nil {
		return models.WizardSession{}, &apperr.PersistenceError{Op: "create wizard session", Err: err}
	}
	return sess, nil
}

// Get loads a session by its public session id.
func (s *Sessions) Get(ctx context.Context, sessionID string) (models.WizardSession, error) {
	sess, err := s.Wizard.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return models.WizardSession{}, &apperr.NotFoundError{Resource: "wizard session", SessionScoped: true}
		}
		return models.WizardSession{}, &apperr.PersistenceError{Op: "get wizard session", Err: err}
	}
	return sess, nil
}

// BindProject attaches the project created during step 1 to the session.
func (s *Sessions) BindProject(ctx context.Context, sessionID string, projectID uint) (models.WizardSession, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return models.WizardSession{}, err
	}
	sess.ProjectID = &projectID
	if err := s.Wizard.UpdateSession(ctx, &sess); err != nil {
		return models.WizardSession{}, &apperr.PersistenceError{Op: "update wizard session", Err: err}
	}
	return sess, nil
}

// SaveStep records a step payload. Once the session is bound to a project the
// step gate runs first, so a client cannot push data for a step it has not
// reached no matter what step counter it holds locally.
func (s *Sessions) SaveStep(ctx context.Context, sessionID string, step int, payload json.RawMessage) (models.WizardSession, error) {
	if step < 1 || step > MaxStep {
		return models.WizardSession{}, &apperr.ValidationError{Field: "step", Message: fmt.Sprintf("must be between 1 and %d", MaxStep)}
	}

	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return models.WizardSession{}, err
	}

	if sess.ProjectID != nil {
		if err := s.Gate.RequireStep(ctx, *sess.ProjectID, step); err != nil {
			return models.WizardSession{}, err
		}
	} else if step != 1 {
		// an unbound session has persisted nothing; only step 1 can act
		return models.WizardSession{}, &apperr.StepBlockedError{Requested: step, NextAllowed: 1}
	}

	data := map[string]json.RawMessage{}
	if sess.StepData != "" {
		if err := json.Unmarshal([]byte(sess.StepData), &data); err != nil {
			data = map[string]json.RawMessage{}
		}
	}
	data[fmt.Sprintf("step%d", step)] = payload
	merged, err := json.Marshal(data)
	if err != nil {
		return models.WizardSession{}, &apperr.ValidationError{Field: "payload", Message: "not serializable"}
	}
	sess.StepData = string(merged)
	if step >= sess.CurrentStep && step < MaxStep {
		sess.CurrentStep = step + 1
	}

	if err := s.Wizard.UpdateSession(ctx, &sess); err != nil {
		return models.WizardSession{}, &apperr.PersistenceError{Op: "update wizard session", Err: err}
	}
	return sess, nil
}

// Complete marks the session finished. The session row stays behind as the
// record of the wizard run.
func (s *Sessions) Complete(ctx context.Context, sessionID string) (models.WizardSession, error) {
	sess, err := s.Get(ctx, sessionID)
	if err != nil {
		return models.WizardSession{}, err
	}
	sess.IsCompleted = true
	if err := s.Wizard.UpdateSession(ctx, &sess); err != nil {
		return models.WizardSession{}, &apperr.PersistenceError{Op: "update wizard session", Err: err}
	}
	return sess, nil
}
