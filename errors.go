package warrant

import "errors"

var (
	// ErrNotFound is returned when a referenced role, permission, catalog
	// entry or assignment does not exist.
	ErrNotFound = errors.New("warrant: not found")

	// ErrDuplicateName is returned when a role, module, action or permission
	// key collides with an existing one.
	ErrDuplicateName = errors.New("warrant: duplicate name")

	// ErrInvalidPermission is returned when a grant references a permission
	// that is missing or inactive.
	ErrInvalidPermission = errors.New("warrant: invalid permission")

	// ErrInvalidPrimary is returned when the primary role is not a member of
	// the supplied role set.
	ErrInvalidPrimary = errors.New("warrant: primary role not in role set")

	// ErrSystemRoleProtected is returned when a system role is mutated
	// without system authority.
	ErrSystemRoleProtected = errors.New("warrant: system role is protected")

	// ErrStorageUnavailable is returned when the store cannot be read or
	// written. Authorization callers must treat it as a denial.
	ErrStorageUnavailable = errors.New("warrant: storage unavailable")

	// ErrInvalidArgument is returned for empty names and malformed keys.
	ErrInvalidArgument = errors.New("warrant: invalid argument")

	// ErrAccessDenied is returned by Enforce when the user does not hold
	// the permission.
	ErrAccessDenied = errors.New("warrant: access denied")
)
