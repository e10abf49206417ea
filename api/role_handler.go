package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/role"
	"github.com/xraph/warrant/userrole"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("roles"))

	if err := g.POST("/roles", a.createRole,
		forge.WithSummary("Create role"),
		forge.WithDescription("Creates a new role with an optional initial permission set."),
		forge.WithOperationID("createRole"),
		forge.WithRequestSchema(CreateRoleRequest{}),
		forge.WithCreatedResponse(&role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId", a.getRole,
		forge.WithSummary("Get role"),
		forge.WithDescription("Returns a role and the permissions it grants."),
		forge.WithOperationID("getRole"),
		forge.WithResponseSchema(http.StatusOK, "Role details", &warrant.RoleWithPermissions{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/roles/:roleId", a.updateRole,
		forge.WithSummary("Update role"),
		forge.WithDescription("Updates a role. A present permission_ids replaces the grant set."),
		forge.WithOperationID("updateRole"),
		forge.WithRequestSchema(UpdateRoleRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated role", &role.Role{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/roles/:roleId", a.deleteRole,
		forge.WithSummary("Delete role"),
		forge.WithDescription("Deletes a role together with its grants and assignments."),
		forge.WithOperationID("deleteRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles", a.listRoles,
		forge.WithSummary("List roles"),
		forge.WithDescription("Lists roles ordered by sort order and name."),
		forge.WithOperationID("listRoles"),
		forge.WithRequestSchema(ListRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Role list", &ListResponse[*role.Role]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/roles/:roleId/members", a.listRoleMembers,
		forge.WithSummary("List role members"),
		forge.WithDescription("Lists the user assignments of a role."),
		forge.WithOperationID("listRoleMembers"),
		forge.WithResponseSchema(http.StatusOK, "Assignments", []*userrole.UserRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/roles/:roleId/permissions", a.grantRolePermission,
		forge.WithSummary("Grant permission to role"),
		forge.WithDescription("Grants a single permission to a role. Granting twice is a no-op."),
		forge.WithOperationID("grantRolePermission"),
		forge.WithRequestSchema(GrantPermissionRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/roles/:roleId/permissions/:permissionId", a.revokeRolePermission,
		forge.WithSummary("Revoke permission from role"),
		forge.WithDescription("Removes a single permission grant from a role."),
		forge.WithOperationID("revokeRolePermission"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) createRole(ctx forge.Context, req *CreateRoleRequest) (*role.Role, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	pids, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.CreateRole(ctx.Context(), &warrant.CreateRoleInput{
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		IsSystem:      req.IsSystem,
		SortOrder:     req.SortOrder,
		PermissionIDs: pids,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) getRole(ctx forge.Context, _ *GetRoleRequest) (*warrant.RoleWithPermissions, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	rp, err := a.eng.GetRoleWithPermissions(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return rp, ctx.JSON(http.StatusOK, rp)
}

func (a *API) updateRole(ctx forge.Context, req *UpdateRoleRequest) (*role.Role, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	pids, err := parsePermissionIDs(req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.UpdateRole(ctx.Context(), roleID, &warrant.UpdateRoleInput{
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		IsActive:      req.IsActive,
		SortOrder:     req.SortOrder,
		PermissionIDs: pids,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) deleteRole(ctx forge.Context, _ *GetRoleRequest) (*struct{}, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	if err := a.eng.DeleteRole(ctx.Context(), roleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listRoles(ctx forge.Context, req *ListRolesRequest) (*ListResponse[*role.Role], error) {
	filter := &role.ListFilter{
		ActiveOnly: req.ActiveOnly,
		Search:     req.Search,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}

	roles, err := a.eng.ListRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	total, err := a.eng.CountRoles(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*role.Role]{
		Items:  roles,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listRoleMembers(ctx forge.Context, _ *GetRoleRequest) ([]*userrole.UserRole, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	members, err := a.eng.ListRoleMembers(ctx.Context(), roleID)
	if err != nil {
		return nil, mapError(err)
	}

	return members, ctx.JSON(http.StatusOK, members)
}

func (a *API) grantRolePermission(ctx forge.Context, req *GrantPermissionRequest) (*struct{}, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	permID, err := parsePermissionID(req.PermissionID)
	if err != nil {
		return nil, err
	}

	if err := a.eng.GrantRolePermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) revokeRolePermission(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	if err := a.eng.RevokeRolePermission(ctx.Context(), roleID, permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
