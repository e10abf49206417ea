package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/action"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/module"
	"github.com/xraph/warrant/permission"
)

func (a *API) registerCatalogRoutes(router forge.Router) error {
	g := router.Group("/v1/catalog", forge.WithGroupTags("catalog"))

	if err := g.POST("/modules", a.createModule,
		forge.WithSummary("Create module"),
		forge.WithOperationID("createModule"),
		forge.WithRequestSchema(CreateCatalogEntryRequest{}),
		forge.WithCreatedResponse(&module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/modules/:moduleId", a.updateModule,
		forge.WithSummary("Update module"),
		forge.WithDescription("Updates display name, sort order or active flag. Names are immutable."),
		forge.WithOperationID("updateModule"),
		forge.WithRequestSchema(UpdateCatalogEntryRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated module", &module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/modules", a.listModules,
		forge.WithSummary("List modules"),
		forge.WithOperationID("listModules"),
		forge.WithRequestSchema(ListCatalogRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Module list", []*module.Module{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/actions", a.createAction,
		forge.WithSummary("Create action"),
		forge.WithOperationID("createAction"),
		forge.WithRequestSchema(CreateCatalogEntryRequest{}),
		forge.WithCreatedResponse(&action.Action{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/actions/:actionId", a.updateAction,
		forge.WithSummary("Update action"),
		forge.WithOperationID("updateAction"),
		forge.WithRequestSchema(UpdateCatalogEntryRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated action", &action.Action{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/actions", a.listActions,
		forge.WithSummary("List actions"),
		forge.WithOperationID("listActions"),
		forge.WithRequestSchema(ListCatalogRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Action list", []*action.Action{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/permissions", a.createPermission,
		forge.WithSummary("Create permission"),
		forge.WithDescription("Registers the permission for a module and action pair. The key is derived as module:action."),
		forge.WithOperationID("createPermission"),
		forge.WithRequestSchema(CreatePermissionRequest{}),
		forge.WithCreatedResponse(&permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/permissions/:permissionId", a.getPermission,
		forge.WithSummary("Get permission"),
		forge.WithOperationID("getPermission"),
		forge.WithResponseSchema(http.StatusOK, "Permission details", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/permissions/:permissionId", a.updatePermission,
		forge.WithSummary("Update permission"),
		forge.WithOperationID("updatePermission"),
		forge.WithRequestSchema(UpdatePermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated permission", &permission.Permission{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/permissions", a.listPermissions,
		forge.WithSummary("List permissions"),
		forge.WithOperationID("listPermissions"),
		forge.WithRequestSchema(ListCatalogRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission list", []*permission.Permission{}),
		forge.WithErrorResponses(),
	)
}

// ──────────────────────────────────────────────────
// Modules
// ──────────────────────────────────────────────────

func (a *API) createModule(ctx forge.Context, req *CreateCatalogEntryRequest) (*module.Module, error) {
	m, err := a.eng.CreateModule(ctx.Context(), &warrant.ModuleInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return m, ctx.JSON(http.StatusCreated, m)
}

func (a *API) updateModule(ctx forge.Context, req *UpdateCatalogEntryRequest) (*module.Module, error) {
	moduleID, err := id.ParseModuleID(ctx.Param("moduleId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid module ID: %v", err))
	}

	m, err := a.eng.UpdateModule(ctx.Context(), moduleID, req.toUpdate())
	if err != nil {
		return nil, mapError(err)
	}

	return m, ctx.JSON(http.StatusOK, m)
}

func (a *API) listModules(ctx forge.Context, req *ListCatalogRequest) ([]*module.Module, error) {
	mods, err := a.eng.ListModules(ctx.Context(), &module.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return mods, ctx.JSON(http.StatusOK, mods)
}

// ──────────────────────────────────────────────────
// Actions
// ──────────────────────────────────────────────────

func (a *API) createAction(ctx forge.Context, req *CreateCatalogEntryRequest) (*action.Action, error) {
	act, err := a.eng.CreateAction(ctx.Context(), &warrant.ActionInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return act, ctx.JSON(http.StatusCreated, act)
}

func (a *API) updateAction(ctx forge.Context, req *UpdateCatalogEntryRequest) (*action.Action, error) {
	actionID, err := id.ParseActionID(ctx.Param("actionId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid action ID: %v", err))
	}

	act, err := a.eng.UpdateAction(ctx.Context(), actionID, req.toUpdate())
	if err != nil {
		return nil, mapError(err)
	}

	return act, ctx.JSON(http.StatusOK, act)
}

func (a *API) listActions(ctx forge.Context, req *ListCatalogRequest) ([]*action.Action, error) {
	acts, err := a.eng.ListActions(ctx.Context(), &action.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return acts, ctx.JSON(http.StatusOK, acts)
}

// ──────────────────────────────────────────────────
// Permissions
// ──────────────────────────────────────────────────

func (a *API) createPermission(ctx forge.Context, req *CreatePermissionRequest) (*permission.Permission, error) {
	if req.ModuleID == "" || req.ActionID == "" {
		return nil, forge.BadRequest("module_id and action_id are required")
	}

	moduleID, err := id.ParseModuleID(req.ModuleID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid module_id: %v", err))
	}
	actionID, err := id.ParseActionID(req.ActionID)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid action_id: %v", err))
	}

	p, err := a.eng.CreatePermission(ctx.Context(), moduleID, actionID, req.DisplayName)
	if err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusCreated, p)
}

func (a *API) getPermission(ctx forge.Context, _ *GetPermissionRequest) (*permission.Permission, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	p, err := a.eng.GetPermission(ctx.Context(), permID)
	if err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) updatePermission(ctx forge.Context, req *UpdatePermissionRequest) (*permission.Permission, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	p, err := a.eng.UpdatePermission(ctx.Context(), permID, &warrant.PermissionUpdate{
		DisplayName: req.DisplayName,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return p, ctx.JSON(http.StatusOK, p)
}

func (a *API) listPermissions(ctx forge.Context, req *ListCatalogRequest) ([]*permission.Permission, error) {
	filter := &permission.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}
	if req.ModuleID != "" {
		moduleID, err := id.ParseModuleID(req.ModuleID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid module_id: %v", err))
		}
		filter.ModuleID = &moduleID
	}

	perms, err := a.eng.ListPermissions(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return perms, ctx.JSON(http.StatusOK, perms)
}
