// Package directory resolves who a user is in the HR hierarchy: their role,
// the chef they report to and the set of admins.
package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hr-workflow/internal/apperr"
	"hr-workflow/internal/model"
)

// Directory is consumed by the workflow engine, the dispatcher and the
// calendar read surface. Unknown users yield apperr.ErrNotFound.
type Directory interface {
	RoleOf(ctx context.Context, userID string) (model.Role, error)
	// ChefOf returns "" when the user has no chef assigned.
	ChefOf(ctx context.Context, userID string) (string, error)
	AllAdminIDs(ctx context.Context) ([]string, error)
	SubordinatesOf(ctx context.Context, chefID string) ([]string, error)
}

// Employee is one row of the directory.
type Employee struct {
	ID     string
	Role   model.Role
	ChefID string
}

// Static is an immutable in-memory directory.
type Static struct {
	byID map[string]Employee
}

func NewStatic(employees ...Employee) *Static {
	s := &Static{byID: make(map[string]Employee, len(employees))}
	for _, e := range employees {
		if e.Role == "" {
			e.Role = model.RoleUser
		}
		s.byID[e.ID] = e
	}
	return s
}

func (s *Static) RoleOf(ctx context.Context, userID string) (model.Role, error) {
	e, ok := s.byID[userID]
	if !ok {
		return "", apperr.NotFound("user %s not found", userID)
	}
	return e.Role, nil
}

func (s *Static) ChefOf(ctx context.Context, userID string) (string, error) {
	e, ok := s.byID[userID]
	if !ok {
		return "", apperr.NotFound("user %s not found", userID)
	}
	return e.ChefID, nil
}

func (s *Static) AllAdminIDs(ctx context.Context) ([]string, error) {
	var ids []string
	for _, e := range s.byID {
		if e.Role == model.RoleAdmin {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Static) SubordinatesOf(ctx context.Context, chefID string) ([]string, error) {
	var ids []string
	for _, e := range s.byID {
		if e.ChefID == chefID && chefID != "" {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ParseSeed reads a comma-separated list of "id:role[:chef]" entries, e.g.
// "alice:admin,bob:chef,carol:user:bob".
func ParseSeed(seed string) ([]Employee, error) {
	var out []Employee
	for _, entry := range strings.Split(seed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("directory seed entry %q: want id:role[:chef]", entry)
		}
		e := Employee{ID: parts[0], Role: model.RoleUser}
		if len(parts) > 1 && parts[1] != "" {
			e.Role = model.Role(parts[1])
		}
		switch e.Role {
		case model.RoleUser, model.RoleChef, model.RoleAdmin:
		default:
			return nil, fmt.Errorf("directory seed entry %q: unknown role %q", entry, e.Role)
		}
		if len(parts) == 3 {
			e.ChefID = parts[2]
		}
		out = append(out, e)
	}
	return out, nil
}
