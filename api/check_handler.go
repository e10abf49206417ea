package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
)

func (a *API) registerCheckRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("authorization"))

	if err := g.GET("/users/:userId/permissions", a.effectivePermissions,
		forge.WithSummary("Effective permissions"),
		forge.WithDescription("Resolves the effective permission set of a user from roles and overrides."),
		forge.WithOperationID("effectivePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Resolution", &warrant.Resolution{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/check", a.check,
		forge.WithSummary("Permission check"),
		forge.WithDescription("Reports whether the user holds a single permission."),
		forge.WithOperationID("checkPermission"),
		forge.WithRequestSchema(CheckPermissionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/users/:userId/batch-check", a.batchCheck,
		forge.WithSummary("Batch permission check"),
		forge.WithDescription("Evaluates several permission keys against one resolution."),
		forge.WithOperationID("batchCheckPermissions"),
		forge.WithRequestSchema(BatchCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Batch results", BatchCheckResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) effectivePermissions(ctx forge.Context, _ *UserRequest) (*warrant.Resolution, error) {
	res, err := a.eng.Resolve(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}

	return res, ctx.JSON(http.StatusOK, res)
}

func (a *API) check(ctx forge.Context, req *CheckPermissionRequest) (*CheckResponse, error) {
	if req.Permission == "" {
		return nil, forge.BadRequest("permission is required")
	}
	userID := ctx.Param("userId")

	allowed, err := a.eng.HasPermission(ctx.Context(), userID, req.Permission)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &CheckResponse{UserID: userID, Permission: req.Permission, Allowed: allowed}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) batchCheck(ctx forge.Context, req *BatchCheckRequest) (*BatchCheckResponse, error) {
	if len(req.Permissions) == 0 {
		return nil, forge.BadRequest("permissions is required")
	}
	if len(req.Permissions) > 100 {
		return nil, forge.BadRequest("maximum 100 permissions per batch")
	}
	userID := ctx.Param("userId")

	set, err := a.eng.GetEffectivePermissions(ctx.Context(), userID)
	if err != nil {
		return nil, mapError(err)
	}

	results := make([]CheckResponse, len(req.Permissions))
	for i, key := range req.Permissions {
		results[i] = CheckResponse{UserID: userID, Permission: key, Allowed: set.Has(key)}
	}

	resp := &BatchCheckResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}
