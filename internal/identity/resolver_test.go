package identity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"pfmt-portal/internal/models"
	"pfmt-portal/internal/roles"
	"pfmt-portal/internal/store"
	"pfmt-portal/internal/store/memstore"
)

func TestResolveExistingUser(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	r := NewResolver(st)

	u := models.User{Username: "dana", DisplayName: "Dana Director", Role: roles.RoleDirector, IsActive: true}
	require.NoError(t, st.CreateUser(ctx, &u))

	// stale claims lose: the stored row wins
	got := r.Resolve(ctx, Claims{UserID: u.ID, Username: "stale", Role: "admin"})
	require.Equal(t, "dana", got.Username)
	require.Equal(t, roles.RoleDirector, got.Role)
}

func TestResolveSelfHeals(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	r := NewResolver(st)

	got := r.Resolve(ctx, Claims{UserID: 42, Username: "morgan", DisplayName: "Morgan Manager", Role: "project_manager"})
	require.Equal(t, uint(42), got.ID)
	require.Equal(t, roles.RolePM, got.Role, "legacy alias normalized")

	// the row now exists
	persisted, err := st.GetUser(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "morgan", persisted.Username)
}

func TestResolveUnknownRoleDefaultsToVendor(t *testing.T) {
	st := memstore.New()
	r := NewResolver(st)

	got := r.Resolve(context.Background(), Claims{UserID: 9, Username: "who", Role: "superuser"})
	require.Equal(t, roles.RoleVendor, got.Role)
}

func TestResolveConcurrentFirstRequests(t *testing.T) {
	st := memstore.New()
	r := NewResolver(st)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]models.User, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), Claims{UserID: 7, Username: "pat", Role: "pmi"})
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.Equal(t, uint(7), got.ID)
		require.Equal(t, "pat", got.Username)
	}
	u, err := st.GetUser(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "pat", u.Username)
}

// failingUsers errors on every call, standing in for an unreachable store.
type failingUsers struct{}

func (failingUsers) GetUser(context.Context, uint) (models.User, error) {
	return models.User{}, errors.New("store down")
}
func (failingUsers) GetUserByUsername(context.Context, string) (models.User, error) {
	return models.User{}, errors.New("store down")
}
func (failingUsers) CreateUser(context.Context, *models.User) error { return errors.New("store down") }
func (failingUsers) EnsureUser(context.Context, models.User) error  { return errors.New("store down") }
func (failingUsers) ListUsersByRoles(context.Context, ...roles.Role) ([]models.User, error) {
	return nil, errors.New("store down")
}

var _ store.UserStore = failingUsers{}

func TestResolveDegradesOnStoreFailure(t *testing.T) {
	r := NewResolver(failingUsers{})

	got := r.Resolve(context.Background(), Claims{UserID: 3, Username: "alex", DisplayName: "Alex", Role: "analyst"})
	require.Equal(t, uint(3), got.ID)
	require.Equal(t, "alex", got.Username)
	require.Equal(t, roles.RoleAnalyst, got.Role)
	require.True(t, got.IsActive)
}
