package roles

import "strings"

// Role is a canonical role after normalization. Raw strings from sessions,
// claims or request bodies must go through Normalize before any comparison.
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleAnalyst  Role = "analyst"
	RolePMI      Role = "pmi"
	RolePM       Role = "pm"
	RoleSPM      Role = "spm"
	RoleDirector Role = "director"
	RoleAdmin    Role = "admin"
)

// hierarchy: higher number = more permissions
var hierarchy = map[Role]int{
	RoleVendor:   1,
	RoleAnalyst:  2,
	RolePMI:      3,
	RolePM:       4,
	RoleSPM:      5,
	RoleDirector: 6,
	RoleAdmin:    7,
}

// legacy tokens still present in old user rows and imported data
var legacyAliases = map[string]Role{
	"project_manager":        RolePM,
	"senior_project_manager": RoleSPM,
	"project_initiator":      RolePMI,
	"contract_analyst":       RoleAnalyst,
	"administrator":          RoleAdmin,
}

// Normalize maps any role token onto the closed set. Unknown tokens map to
// vendor, the least-privileged role, never to something permissive.
func Normalize(token string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(token)))
	if _, ok := hierarchy[r]; ok {
		return r
	}
	if alias, ok := legacyAliases[string(r)]; ok {
		return alias
	}
	return RoleVendor
}

// IsValid reports whether token is a canonical role or a known legacy alias.
func IsValid(token string) bool {
	r := Role(strings.ToLower(strings.TrimSpace(token)))
	if _, ok := hierarchy[r]; ok {
		return true
	}
	_, ok := legacyAliases[string(r)]
	return ok
}

// HasRoleOrHigher compares candidate against required in the fixed order
// admin > director > spm > pm > pmi > analyst > vendor.
func HasRoleOrHigher(candidate, required Role) bool {
	return hierarchy[Normalize(string(candidate))] >= hierarchy[Normalize(string(required))]
}

// Role groups used by the authorization gateway and the state machines.
var (
	ProjectManagers = []Role{RolePM, RoleSPM}
	Leadership      = []Role{RoleDirector, RoleAdmin}
	AllInternal     = []Role{RoleAnalyst, RolePMI, RolePM, RoleSPM, RoleDirector, RoleAdmin}
)

// Names converts a role group to its string form, for error payloads.
func Names(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// IsLeadership reports whether r is director or admin.
func IsLeadership(r Role) bool {
	r = Normalize(string(r))
	return r == RoleDirector || r == RoleAdmin
}

// IsProjectManager reports whether r is pm or spm.
func IsProjectManager(r Role) bool {
	r = Normalize(string(r))
	return r == RolePM || r == RoleSPM
}

// Feature tags understood by ForFeature.
const (
	FeatureProjectInitiation   = "project_initiation"
	FeatureTeamAssignment      = "team_assignment"
	FeatureProjectFinalization = "project_finalization"
	FeatureProjectView         = "project_view"
	FeatureProjectEdit         = "project_edit"
	FeatureUserManagement      = "user_management"
	FeatureReporting           = "reporting"
	FeatureVendorPortal        = "vendor_portal"
)

var featureRoles = map[string][]Role{
	FeatureProjectInitiation:   {RolePMI, RoleAdmin},
	FeatureTeamAssignment:      {RoleDirector, RoleAdmin},
	FeatureProjectFinalization: {RolePM, RoleSPM, RoleAdmin},
	FeatureProjectView:         AllInternal,
	FeatureProjectEdit:         {RolePM, RoleSPM, RoleDirector, RoleAdmin},
	FeatureUserManagement:      {RoleAdmin},
	FeatureReporting:           {RoleAnalyst, RoleDirector, RoleAdmin},
	FeatureVendorPortal:        {RoleVendor, RolePM, RoleSPM, RoleAdmin},
}

// ForFeature returns the roles permitted to use a feature. Unknown feature
// tags return nil, which denies everyone. This mapping is the single source
// of truth and is re-checked server-side even when a client already filtered.
func ForFeature(tag string) []Role {
	rs, ok := featureRoles[tag]
	if !ok {
		return nil
	}
	out := make([]Role, len(rs))
	copy(out, rs)
	return out
}

// Allowed reports whether r may use the feature.
func Allowed(r Role, feature string) bool {
	r = Normalize(string(r))
	for _, allowed := range featureRoles[feature] {
		if r == allowed {
			return true
		}
	}
	return false
}

// Assignment slot validation (who may occupy the PM / SPM slots on a project).
var (
	pmSlotRoles  = []Role{RolePM, RoleSPM, RoleDirector, RoleAdmin}
	spmSlotRoles = []Role{RoleSPM, RoleDirector, RoleAdmin}
)

// ValidForPMSlot reports whether a user with role r may be assigned as PM.
func ValidForPMSlot(r Role) bool {
	r = Normalize(string(r))
	for _, allowed := range pmSlotRoles {
		if r == allowed {
			return true
		}
	}
	return false
}

// ValidForSPMSlot reports whether a user with role r may be assigned as SPM.
func ValidForSPMSlot(r Role) bool {
	r = Normalize(string(r))
	for _, allowed := range spmSlotRoles {
		if r == allowed {
			return true
		}
	}
	return false
}
