// Package identity resolves a chat user to a tenant and role, and enforces
// tenant scoping on every outbound tool call.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/dentalops/assistant/pkg/logging"
)

var (
	// ErrMissingTenant terminates a tenant-scoped operation before any
	// network I/O happens.
	ErrMissingTenant = errors.New("identity: user is not linked to a client")
	// ErrMissingRole is returned when the profile carries no usable role.
	ErrMissingRole = errors.New("identity: role not found for user")
)

// Role is the closed set of normalized roles.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleClient     Role = "client"
	RoleOther      Role = "other"
)

// RoleInfo is the result of a role lookup.
type RoleInfo struct {
	Role         Role
	IsSuperAdmin bool
	Raw          map[string]any
}

// ProfileClient fetches the raw user profile from the application server.
type ProfileClient interface {
	UserProfile(ctx context.Context, userID string) (map[string]any, error)
}

// Resolver caches tenant and role lookups for the process lifetime.
type Resolver struct {
	profiles ProfileClient
	logger   *logging.Logger

	mu      sync.RWMutex
	tenants map[string]int64
	roles   map[string]RoleInfo
}

// NewResolver constructs a Resolver around a profile client.
func NewResolver(profiles ProfileClient, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		profiles: profiles,
		logger:   logger,
		tenants:  make(map[string]int64),
		roles:    make(map[string]RoleInfo),
	}
}

// tenantPaths is the fixed, ordered list of structural paths searched for a
// tenant id. Root-level shapes first, then the same shapes under "data".
// First match wins.
var tenantPaths = []func(map[string]any) (int64, bool){
	func(p map[string]any) (int64, bool) { return asID(p["client_id"]) },
	func(p map[string]any) (int64, bool) { return nestedID(p, "client") },
	func(p map[string]any) (int64, bool) { return listID(p, "clients") },
	func(p map[string]any) (int64, bool) { return asID(data(p)["client_id"]) },
	func(p map[string]any) (int64, bool) { return nestedID(data(p), "client") },
	func(p map[string]any) (int64, bool) { return listID(data(p), "clients") },
}

// ResolveTenant returns the caller's tenant id, fetching and caching the
// profile on first use.
func (r *Resolver) ResolveTenant(ctx context.Context, userID string) (int64, error) {
	r.mu.RLock()
	if id, ok := r.tenants[userID]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	profile, err := r.profiles.UserProfile(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, path := range tenantPaths {
		if id, ok := path(profile); ok {
			r.Remember(userID, id)
			return id, nil
		}
	}
	return 0, ErrMissingTenant
}

// Remember seeds the tenant cache, e.g. from a trusted session source.
func (r *Resolver) Remember(userID string, tenantID int64) {
	r.mu.Lock()
	r.tenants[userID] = tenantID
	r.mu.Unlock()
}

// ResolveRole returns normalized role information for the caller.
func (r *Resolver) ResolveRole(ctx context.Context, userID string) (RoleInfo, error) {
	r.mu.RLock()
	if info, ok := r.roles[userID]; ok {
		r.mu.RUnlock()
		return info, nil
	}
	r.mu.RUnlock()

	profile, err := r.profiles.UserProfile(ctx, userID)
	if err != nil {
		return RoleInfo{}, err
	}

	raw := roleField(profile)
	if raw == "" && !boolField(profile, "is_super_admin") {
		return RoleInfo{}, ErrMissingRole
	}

	role := NormalizeRole(raw)
	info := RoleInfo{
		Role:         role,
		IsSuperAdmin: boolField(profile, "is_super_admin") || role == RoleSuperAdmin,
		Raw:          profile,
	}

	r.mu.Lock()
	r.roles[userID] = info
	r.mu.Unlock()
	return info, nil
}

// NormalizeRole maps common role spellings to the closed set.
func NormalizeRole(raw string) Role {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")) {
	case "super_admin", "superadmin", "super-admin", "superuser":
		return RoleSuperAdmin
	case "admin", "administrator":
		return RoleAdmin
	case "client", "customer", "user":
		return RoleClient
	case "":
		return RoleOther
	default:
		return RoleOther
	}
}

func data(p map[string]any) map[string]any {
	if inner, ok := p["data"].(map[string]any); ok {
		return inner
	}
	return map[string]any{}
}

func nestedID(p map[string]any, key string) (int64, bool) {
	if obj, ok := p[key].(map[string]any); ok {
		return asID(obj["id"])
	}
	return 0, false
}

func listID(p map[string]any, key string) (int64, bool) {
	if list, ok := p[key].([]any); ok && len(list) > 0 {
		if obj, ok := list[0].(map[string]any); ok {
			return asID(obj["id"])
		}
	}
	return 0, false
}

func asID(v any) (int64, bool) {
	switch value := v.(type) {
	case float64:
		if value > 0 {
			return int64(value), true
		}
	case json.Number:
		if id, err := value.Int64(); err == nil && id > 0 {
			return id, true
		}
	case string:
		var n int64
		for _, c := range value {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int64(c-'0')
		}
		if n > 0 {
			return n, true
		}
	case int64:
		if value > 0 {
			return value, true
		}
	case int:
		if value > 0 {
			return int64(value), true
		}
	}
	return 0, false
}

func roleField(p map[string]any) string {
	for _, src := range []map[string]any{p, data(p)} {
		for _, key := range []string{"role", "user_role", "role_name"} {
			if s, ok := src[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func boolField(p map[string]any, key string) bool {
	for _, src := range []map[string]any{p, data(p)} {
		if b, ok := src[key].(bool); ok && b {
			return true
		}
	}
	return false
}
