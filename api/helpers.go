package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/id"
)

// mapError maps domain errors to Forge HTTP errors. Storage failures pass
// through as internal errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, warrant.ErrNotFound):
		return forge.NotFound(err.Error())
	case errors.Is(err, warrant.ErrDuplicateName):
		return forge.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, warrant.ErrInvalidPermission),
		errors.Is(err, warrant.ErrInvalidPrimary),
		errors.Is(err, warrant.ErrInvalidArgument):
		return forge.BadRequest(err.Error())
	case errors.Is(err, warrant.ErrSystemRoleProtected),
		errors.Is(err, warrant.ErrAccessDenied):
		return forge.Forbidden(err.Error())
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func parseRoleID(s string) (id.RoleID, error) {
	rid, err := id.ParseRoleID(s)
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid role ID: %v", err))
	}
	return rid, nil
}

func parsePermissionID(s string) (id.PermissionID, error) {
	pid, err := id.ParsePermissionID(s)
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid permission ID: %v", err))
	}
	return pid, nil
}

func parsePermissionIDs(ss []string) ([]id.PermissionID, error) {
	if ss == nil {
		return nil, nil
	}
	out := make([]id.PermissionID, 0, len(ss))
	for _, s := range ss {
		pid, err := parsePermissionID(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pid)
	}
	return out, nil
}

func parseExpiry(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // no expiry
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid expires_at: %v", err))
	}
	return &t, nil
}
