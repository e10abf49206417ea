package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Warrant store (SQLite).
var Migrations = migrate.NewGroup("warrant")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_catalog",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_modules (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    display_name    TEXT NOT NULL DEFAULT '',
    is_active       INTEGER NOT NULL DEFAULT 1,
    sort_order      INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS warrant_actions (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    display_name    TEXT NOT NULL DEFAULT '',
    is_active       INTEGER NOT NULL DEFAULT 1,
    sort_order      INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS warrant_permissions (
    id              TEXT PRIMARY KEY,
    module_id       TEXT NOT NULL REFERENCES warrant_modules(id),
    action_id       TEXT NOT NULL REFERENCES warrant_actions(id),
    permission_key  TEXT NOT NULL UNIQUE,
    display_name    TEXT NOT NULL DEFAULT '',
    is_active       INTEGER NOT NULL DEFAULT 1,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),

    UNIQUE(module_id, action_id)
);

CREATE INDEX IF NOT EXISTS idx_warrant_permissions_module ON warrant_permissions (module_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS warrant_permissions;
DROP TABLE IF EXISTS warrant_actions;
DROP TABLE IF EXISTS warrant_modules;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_roles (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    display_name    TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    is_system_role  INTEGER NOT NULL DEFAULT 0,
    is_active       INTEGER NOT NULL DEFAULT 1,
    sort_order      INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS warrant_role_permissions (
    role_id         TEXT NOT NULL REFERENCES warrant_roles(id) ON DELETE CASCADE,
    permission_id   TEXT NOT NULL REFERENCES warrant_permissions(id) ON DELETE CASCADE,
    granted_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    granted_by      TEXT NOT NULL DEFAULT '',

    PRIMARY KEY (role_id, permission_id)
);

CREATE INDEX IF NOT EXISTS idx_warrant_role_permissions_perm ON warrant_role_permissions (permission_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS warrant_role_permissions;
DROP TABLE IF EXISTS warrant_roles;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_user_roles",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_user_roles (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    role_id         TEXT NOT NULL REFERENCES warrant_roles(id) ON DELETE CASCADE,
    is_primary      INTEGER NOT NULL DEFAULT 0,
    assigned_at     DATETIME NOT NULL DEFAULT (datetime('now')),
    assigned_by     TEXT NOT NULL DEFAULT '',

    UNIQUE(user_id, role_id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_warrant_user_roles_primary ON warrant_user_roles (user_id) WHERE is_primary = 1;
CREATE INDEX IF NOT EXISTS idx_warrant_user_roles_role ON warrant_user_roles (role_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_user_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_user_permissions",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_user_permissions (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    permission_id   TEXT NOT NULL REFERENCES warrant_permissions(id) ON DELETE CASCADE,
    is_granted      INTEGER NOT NULL,
    granted_at      DATETIME NOT NULL DEFAULT (datetime('now')),
    granted_by      TEXT NOT NULL DEFAULT '',
    expires_at      DATETIME,

    UNIQUE(user_id, permission_id)
);

CREATE INDEX IF NOT EXISTS idx_warrant_user_permissions_expires ON warrant_user_permissions (expires_at) WHERE expires_at IS NOT NULL;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_user_permissions`)
				return err
			},
		},
	)
}
