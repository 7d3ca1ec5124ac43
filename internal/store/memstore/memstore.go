// Package memstore is a mutex-guarded in-memory implementation of the store
// interfaces, used by unit tests and ephemeral demo runs. Each method holds
// the store lock for its whole read-check-write, which makes the conditional
// updates linearizable per resource.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
)

var _ store.UserStore = (*Store)(nil)
var _ store.ProjectStore = (*Store)(nil)
var _ store.VersionStore = (*Store)(nil)
var _ store.WizardStore = (*Store)(nil)
var _ store.AuditStore = (*Store)(nil)

type Store struct {
	mu sync.Mutex

	users    map[uint]models.User
	projects map[uint]models.Project
	versions map[uint]models.ProjectVersion
	sessions map[uint]models.WizardSession
	audit    []models.AuditLog

	nextUserID    uint
	nextProjectID uint
	nextVersionID uint
	nextSessionID uint
}

func New() *Store {
	return &Store{
		users:    make(map[uint]models.User),
		projects: make(map[uint]models.Project),
		versions: make(map[uint]models.ProjectVersion),
		sessions: make(map[uint]models.WizardSession),
	}
}

// Stores returns the bundle with every interface backed by s.
func (s *Store) Stores() store.Stores {
	return store.Stores{Users: s, Projects: s, Versions: s, Wizard: s, Audit: s}
}

//
// users
//

func (s *Store) GetUser(_ context.Context, id uint) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return store.ErrDuplicate
		}
	}
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *Store) EnsureUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return nil
	}
	if u.ID == 0 {
		s.nextUserID++
		u.ID = s.nextUserID
	} else if u.ID > s.nextUserID {
		s.nextUserID = u.ID
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return nil
}

func (s *Store) ListUsersByRoles(_ context.Context, rs ...roles.Role) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		for _, r := range rs {
			if u.Role == r && u.IsActive {
				out = append(out, u)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

//
// projects
//

func (s *Store) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextProjectID++
	p.ID = s.nextProjectID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = *p
	return nil
}

func (s *Store) GetProject(_ context.Context, id uint) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return models.Project{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpdateProjectWhereStatus(_ context.Context, id uint, expect models.WorkflowStatus, mutate func(*models.Project)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if p.WorkflowStatus != expect {
		return false, nil
	}
	mutate(&p)
	p.UpdatedAt = time.Now()
	s.projects[id] = p
	return true, nil
}

func (s *Store) SetCurrentVersion(_ context.Context, projectID, versionID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return store.ErrNotFound
	}
	p.CurrentVersionID = &versionID
	p.UpdatedAt = time.Now()
	s.projects[projectID] = p
	return nil
}

func (s *Store) ListProjectsByWorkflowStatus(_ context.Context, status models.WorkflowStatus) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if p.WorkflowStatus == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID uint) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Project
	for _, p := range s.projects {
		if (p.AssignedPM != nil && *p.AssignedPM == userID) ||
			(p.AssignedSPM != nil && *p.AssignedSPM == userID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

//
// versions
//

func (s *Store) CreateNextVersion(_ context.Context, v *models.ProjectVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := 0
	for _, existing := range s.versions {
		if existing.ProjectID == v.ProjectID && existing.VersionNumber > max {
			max = existing.VersionNumber
		}
	}
	v.VersionNumber = max + 1
	s.nextVersionID++
	v.ID = s.nextVersionID
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	s.versions[v.ID] = *v
	return nil
}

func (s *Store) GetVersion(_ context.Context, id uint) (models.ProjectVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return models.ProjectVersion{}, store.ErrNotFound
	}
	return v, nil
}

func (s *Store) UpdateVersionWhereStatus(_ context.Context, id uint, expect models.VersionStatus, mutate func(*models.ProjectVersion)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if v.Status != expect {
		return false, nil
	}
	mutate(&v)
	v.UpdatedAt = time.Now()
	s.versions[id] = v
	return true, nil
}

func (s *Store) SubmitVersion(_ context.Context, id uint, mutate func(*models.ProjectVersion)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if v.Status != models.VersionDraft {
		return false, nil
	}
	for _, other := range s.versions {
		if other.ProjectID == v.ProjectID && other.Status == models.VersionPending {
			return false, store.ErrPendingExists
		}
	}
	mutate(&v)
	v.Status = models.VersionPending
	v.UpdatedAt = time.Now()
	s.versions[id] = v
	return true, nil
}

func (s *Store) ListVersions(_ context.Context, projectID uint) ([]models.ProjectVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProjectVersion
	for _, v := range s.versions {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (s *Store) CountVersions(_ context.Context, projectID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.versions {
		if v.ProjectID == projectID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountVersionsByStatus(_ context.Context, projectID uint, status models.VersionStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, v := range s.versions {
		if v.ProjectID == projectID && v.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) ClearCurrentVersion(_ context.Context, projectID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range s.versions {
		if v.ProjectID == projectID && v.IsCurrent {
			v.IsCurrent = false
			s.versions[id] = v
		}
	}
	return nil
}

//
// wizard sessions
//

func (s *Store) CreateSession(_ context.Context, sess *models.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.SessionID == sess.SessionID {
			return store.ErrDuplicate
		}
	}
	s.nextSessionID++
	sess.ID = s.nextSessionID
	sess.CreatedAt = time.Now()
	sess.UpdatedAt = sess.CreatedAt
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) GetSessionBySessionID(_ context.Context, sessionID string) (models.WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.SessionID == sessionID {
			return sess, nil
		}
	}
	return models.WizardSession{}, store.ErrNotFound
}

func (s *Store) LatestSessionForProject(_ context.Context, projectID uint) (models.WizardSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest models.WizardSession
	found := false
	for _, sess := range s.sessions {
		if sess.ProjectID == nil || *sess.ProjectID != projectID {
			continue
		}
		if !found || sess.UpdatedAt.After(latest.UpdatedAt) {
			latest = sess
			found = true
		}
	}
	if !found {
		return models.WizardSession{}, store.ErrNotFound
	}
	return latest, nil
}

func (s *Store) UpdateSession(_ context.Context, sess *models.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return store.ErrNotFound
	}
	sess.UpdatedAt = time.Now()
	s.sessions[sess.ID] = *sess
	return nil
}

//
// audit
//

func (s *Store) AppendAudit(_ context.Context, entry models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint(len(s.audit) + 1)
	entry.CreatedAt = time.Now()
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) ListRecentAudit(_ context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, 0, limit)
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.audit[i])
	}
	return out, nil
}

// AuditEntries returns a copy of the audit trail (test helper).
func (s *Store) AuditEntries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}
