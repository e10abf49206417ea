package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	forge "github.com/xraph/forge"
	forge_http "github.com/xraph/go-utils/http"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
	"github.com/xraph/warrant/store/memory"
	"github.com/xraph/warrant/userrole"
)

var errStoreDown = errors.New("store down")

// downStore fails every user role lookup.
type downStore struct {
	store.Store
}

func (downStore) ListUserRoles(context.Context, string) ([]*userrole.UserRole, error) {
	return nil, errStoreDown
}

// newEngine returns an engine where u1 holds orders:view and orders:edit.
func newEngine(t *testing.T, wrap func(store.Store) store.Store) *warrant.Engine {
	t.Helper()
	ctx := context.Background()

	var s store.Store = memory.New()
	if wrap != nil {
		s = wrap(s)
	}
	eng, err := warrant.NewEngine(warrant.WithStore(s))
	require.NoError(t, err)

	mod, err := eng.CreateModule(ctx, &warrant.ModuleInput{Name: "orders"})
	require.NoError(t, err)
	var permIDs []id.PermissionID
	for _, act := range []string{"view", "edit", "delete"} {
		a, err := eng.CreateAction(ctx, &warrant.ActionInput{Name: act})
		require.NoError(t, err)
		p, err := eng.CreatePermission(ctx, mod.ID, a.ID, "")
		require.NoError(t, err)
		if act != "delete" {
			permIDs = append(permIDs, p.ID)
		}
	}
	r, err := eng.CreateRole(ctx, &warrant.CreateRoleInput{Name: "clerk", PermissionIDs: permIDs})
	require.NoError(t, err)
	if wrap == nil {
		_, err = eng.AssignRole(ctx, "u1", r.ID, true)
		require.NoError(t, err)
	}
	return eng
}

// serve runs mw around a handler that answers 200 and reports whether the
// handler was reached.
func serve(t *testing.T, mw forge.Middleware, userID string) (*httptest.ResponseRecorder, bool) {
	t.Helper()

	reached := false
	handler := mw(func(ctx forge.Context) error {
		reached = true
		return ctx.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if userID != "" {
		req = req.WithContext(warrant.WithActor(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	require.NoError(t, handler(forge_http.NewContext(rec, req, nil)))
	return rec, reached
}

func assertDenied(t *testing.T, rec *httptest.ResponseRecorder, reached bool) {
	t.Helper()
	assert.False(t, reached, "handler must not run")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"access denied"}`, rec.Body.String())
}

func TestRequirePermission(t *testing.T) {
	eng := newEngine(t, nil)

	rec, reached := serve(t, RequirePermission(eng, "orders:view"), "u1")
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, reached = serve(t, RequirePermission(eng, "orders:delete"), "u1")
	assertDenied(t, rec, reached)

	rec, reached = serve(t, RequirePermission(eng, "orders:view"), "stranger")
	assertDenied(t, rec, reached)
}

func TestRequirePermissionDeniesAnonymous(t *testing.T) {
	eng := newEngine(t, nil)

	for name, mw := range map[string]forge.Middleware{
		"permission": RequirePermission(eng, "orders:view"),
		"any":        RequireAny(eng, "orders:view"),
		"all":        RequireAll(eng, "orders:view"),
	} {
		t.Run(name, func(t *testing.T) {
			rec, reached := serve(t, mw, "")
			assertDenied(t, rec, reached)
		})
	}
}

func TestResolverErrorDenies(t *testing.T) {
	eng := newEngine(t, func(s store.Store) store.Store { return downStore{Store: s} })

	_, err := eng.GetEffectivePermissions(context.Background(), "u1")
	require.ErrorIs(t, err, warrant.ErrStorageUnavailable)

	for name, mw := range map[string]forge.Middleware{
		"permission": RequirePermission(eng, "orders:view"),
		"any":        RequireAny(eng, "orders:view", "orders:edit"),
		"all":        RequireAll(eng, "orders:view"),
	} {
		t.Run(name, func(t *testing.T) {
			rec, reached := serve(t, mw, "u1")
			assertDenied(t, rec, reached)
		})
	}
}

func TestRequireAny(t *testing.T) {
	eng := newEngine(t, nil)

	rec, reached := serve(t, RequireAny(eng, "orders:delete", "orders:edit"), "u1")
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, reached = serve(t, RequireAny(eng, "orders:delete", "billing:view"), "u1")
	assertDenied(t, rec, reached)

	// No keys means nothing can match.
	rec, reached = serve(t, RequireAny(eng), "u1")
	assertDenied(t, rec, reached)
}

func TestRequireAll(t *testing.T) {
	eng := newEngine(t, nil)

	rec, reached := serve(t, RequireAll(eng, "orders:view", "orders:edit"), "u1")
	assert.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, reached = serve(t, RequireAll(eng, "orders:view", "orders:delete"), "u1")
	assertDenied(t, rec, reached)
}
