package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/userrole"
)

func (a *API) registerAssignmentRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("assignments"))

	if err := g.POST("/users/:userId/roles", a.assignRole,
		forge.WithSummary("Assign role"),
		forge.WithDescription("Assigns a role to a user, optionally as the primary role."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&userrole.UserRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/users/:userId/roles", a.replaceUserRoles,
		forge.WithSummary("Replace user roles"),
		forge.WithDescription("Atomically replaces the full role set of a user."),
		forge.WithOperationID("replaceUserRoles"),
		forge.WithRequestSchema(ReplaceUserRolesRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Assignments", []*userrole.UserRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/roles", a.listUserRoles,
		forge.WithSummary("List user roles"),
		forge.WithDescription("Returns the role assignments of a user."),
		forge.WithOperationID("listUserRoles"),
		forge.WithResponseSchema(http.StatusOK, "Assignments", []*userrole.UserRole{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/users/:userId/roles/:roleId", a.revokeRole,
		forge.WithSummary("Revoke role"),
		forge.WithDescription("Removes a role from a user."),
		forge.WithOperationID("revokeRole"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*userrole.UserRole, error) {
	if req.RoleID == "" {
		return nil, forge.BadRequest("role_id is required")
	}

	roleID, err := parseRoleID(req.RoleID)
	if err != nil {
		return nil, err
	}

	ur, err := a.eng.AssignRole(ctx.Context(), ctx.Param("userId"), roleID, req.IsPrimary)
	if err != nil {
		return nil, mapError(err)
	}

	return ur, ctx.JSON(http.StatusCreated, ur)
}

func (a *API) replaceUserRoles(ctx forge.Context, req *ReplaceUserRolesRequest) ([]*userrole.UserRole, error) {
	roleIDs := make([]id.RoleID, 0, len(req.RoleIDs))
	for _, s := range req.RoleIDs {
		rid, err := parseRoleID(s)
		if err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, rid)
	}

	var primary *id.RoleID
	if req.PrimaryRoleID != "" {
		rid, err := parseRoleID(req.PrimaryRoleID)
		if err != nil {
			return nil, err
		}
		primary = &rid
	}

	assignments, err := a.eng.ReplaceUserRoles(ctx.Context(), ctx.Param("userId"), roleIDs, primary)
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}

func (a *API) listUserRoles(ctx forge.Context, _ *UserRequest) ([]*userrole.UserRole, error) {
	assignments, err := a.eng.ListUserRoles(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}

	return assignments, ctx.JSON(http.StatusOK, assignments)
}

func (a *API) revokeRole(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	roleID, err := parseRoleID(ctx.Param("roleId"))
	if err != nil {
		return nil, err
	}

	if err := a.eng.RevokeRole(ctx.Context(), ctx.Param("userId"), roleID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}
