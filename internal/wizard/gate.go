// Package wizard gates the project setup wizard server-side. Progress is
// derived purely from persisted facts (project row, team slots, versions),
// never from client-held step state. Wizard sessions are not authoritative
// over lifecycle state.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"

	"pfmt-portal/internal/apperr"
	"pfmt-portal/internal/store"
)

// MaxStep caps the wizard: 1 initiation, 2 team assignment, 3 configuration.
const MaxStep = 3

type Progress struct {
	CompletedSteps []int `json:"completedSteps"`
	NextAllowed    int   `json:"nextAllowed"`
}

type Gate struct {
	Projects store.ProjectStore
	Versions store.VersionStore
	Wizard   store.WizardStore
}

func NewGate(st store.Stores) *Gate {
	return &Gate{Projects: st.Projects, Versions: st.Versions, Wizard: st.Wizard}
}

// Progress derives which steps are complete:
//   - step 1 iff the project row exists
//   - step 2 iff both team slots are set, falling back to step-keyed payload
//     in the latest session row
//   - step 3 iff at least one version exists
//
// NextAllowed is the lowest incomplete step, capped at MaxStep.
func (g *Gate) Progress(ctx context.Context, projectID uint) (Progress, error) {
	project, err := g.Projects.GetProject(ctx, projectID)
	if err != nil {
		if err == store.ErrNotFound {
			return Progress{}, &apperr.NotFoundError{Resource: "project"}
		}
		return Progress{}, &apperr.PersistenceError{Op: "get project", Err: err}
	}

	done := map[int]bool{1: true}

	if project.AssignedPM != nil && project.AssignedSPM != nil {
		done[2] = true
	} else if g.sessionHasStep(ctx, projectID, 2) {
		done[2] = true
	}

	n, err := g.Versions.CountVersions(ctx, projectID)
	if err != nil {
		return Progress{}, &apperr.PersistenceError{Op: "count versions", Err: err}
	}
	if n > 0 {
		done[3] = true
	}

	var progress Progress
	progress.NextAllowed = MaxStep
	for step := 1; step <= MaxStep; step++ {
		if done[step] {
			progress.CompletedSteps = append(progress.CompletedSteps, step)
		}
	}
	for step := 1; step <= MaxStep; step++ {
		if !done[step] {
			progress.NextAllowed = step
			break
		}
	}
	return progress, nil
}

// sessionHasStep checks the step-keyed payload of the latest session row.
// Best-effort: any store or decode problem just means "not inferred".
func (g *Gate) sessionHasStep(ctx context.Context, projectID uint, step int) bool {
	sess, err := g.Wizard.LatestSessionForProject(ctx, projectID)
	if err != nil || sess.StepData == "" {
		return false
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sess.StepData), &data); err != nil {
		return false
	}
	if _, ok := data[fmt.Sprintf("step%d", step)]; ok {
		return true
	}
	if step == 2 {
		_, ok := data["teamAssignment"]
		return ok
	}
	return false
}

// ResolveProjectID maps a wizard session id to its project id. An unknown
// session and a session that has not been bound to a project yet both fail
// under the session-scoped code, distinctly from a resolved-but-missing
// project.
func (g *Gate) ResolveProjectID(ctx context.Context, sessionID string) (uint, error) {
	sess, err := g.Wizard.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		if err == store.ErrNotFound {
			return 0, &apperr.NotFoundError{Resource: "wizard session", SessionScoped: true}
		}
		return 0, &apperr.PersistenceError{Op: "get wizard session", Err: err}
	}
	if sess.ProjectID == nil {
		return 0, &apperr.NotFoundError{Resource: "project for wizard session", SessionScoped: true}
	}
	if _, err := g.Projects.GetProject(ctx, *sess.ProjectID); err != nil {
		if err == store.ErrNotFound {
			return 0, &apperr.NotFoundError{Resource: "project"}
		}
		return 0, &apperr.PersistenceError{Op: "get project", Err: err}
	}
	return *sess.ProjectID, nil
}

// RequireStep rejects a request to act on step when it is ahead of the
// derived NextAllowed, echoing the allowed step so the client can resync.
func (g *Gate) RequireStep(ctx context.Context, projectID uint, step int) error {
	if step < 1 || step > MaxStep {
		return &apperr.ValidationError{Field: "step", Message: fmt.Sprintf("must be between 1 and %d", MaxStep)}
	}
	progress, err := g.Progress(ctx, projectID)
	if err != nil {
		return err
	}
	if step > progress.NextAllowed {
		return &apperr.StepBlockedError{Requested: step, NextAllowed: progress.NextAllowed}
	}
	return nil
}
