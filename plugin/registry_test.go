package plugin

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/override"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

// testPlugin implements Plugin + RoleCreated + AfterResolve + OverrideSet.
type testPlugin struct {
	roleCreatedCalled  bool
	afterResolveCalled bool
	overrideSetCalled  bool
	elapsed            time.Duration
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnRoleCreated(_ context.Context, _ *role.Role) error {
	t.roleCreatedCalled = true
	return nil
}

func (t *testPlugin) OnAfterResolve(_ context.Context, _ string, _ any, elapsed time.Duration, _ error) error {
	t.afterResolveCalled = true
	t.elapsed = elapsed
	return nil
}

func (t *testPlugin) OnOverrideSet(_ context.Context, _ *override.Override) error {
	t.overrideSetCalled = true
	return nil
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

// failingPlugin returns an error from every hook it implements.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnRoleAssigned(_ context.Context, _ *userrole.UserRole) error {
	return errors.New("boom")
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(reg.Plugins()))
	}

	// Should dispatch RoleCreated to testPlugin only.
	reg.EmitRoleCreated(ctx, &role.Role{ID: id.NewRoleID(), Name: "admin"})
	if !tp.roleCreatedCalled {
		t.Fatal("OnRoleCreated was not called")
	}

	reg.EmitAfterResolve(ctx, "u1", nil, 3*time.Millisecond, nil)
	if !tp.afterResolveCalled || tp.elapsed != 3*time.Millisecond {
		t.Fatal("OnAfterResolve was not called with the elapsed time")
	}

	reg.EmitOverrideSet(ctx, &override.Override{ID: id.NewOverrideID(), UserID: "u1"})
	if !tp.overrideSetCalled {
		t.Fatal("OnOverrideSet was not called")
	}

	// Should not panic on hooks with no listeners.
	reg.EmitAfterCheck(ctx, "u1", "orders:view", true, nil)
	reg.EmitRoleDeleted(ctx, id.NewRoleID())
	reg.EmitRolePermissionsChanged(ctx, id.NewRoleID())
	reg.EmitRoleRevoked(ctx, "u1", id.NewRoleID())
	reg.EmitUserRolesReplaced(ctx, "u1", nil)
	reg.EmitOverrideCleared(ctx, "u1", id.NewPermissionID())
	reg.EmitCatalogChanged(ctx, "module", id.NewModuleID())
	reg.EmitShutdown(ctx)
}

func TestRegistryLogsHookErrors(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	reg.Register(&failingPlugin{})

	reg.EmitRoleAssigned(context.Background(), &userrole.UserRole{UserID: "u1"})

	out := buf.String()
	if !strings.Contains(out, "plugin hook error") || !strings.Contains(out, "plugin=failing") {
		t.Fatalf("expected hook error to be logged, got %q", out)
	}
}
