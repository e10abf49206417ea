package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/warrant/override"
)

func (a *API) registerOverrideRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("overrides"))

	if err := g.PUT("/users/:userId/overrides/:permissionId", a.setOverride,
		forge.WithSummary("Set permission override"),
		forge.WithDescription("Grants or denies a permission directly to a user, replacing any existing override."),
		forge.WithOperationID("setOverride"),
		forge.WithRequestSchema(SetOverrideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Override", &override.Override{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/users/:userId/overrides/:permissionId", a.clearOverride,
		forge.WithSummary("Clear permission override"),
		forge.WithOperationID("clearOverride"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/users/:userId/overrides", a.listOverrides,
		forge.WithSummary("List permission overrides"),
		forge.WithDescription("Returns every override of a user, including expired ones."),
		forge.WithOperationID("listOverrides"),
		forge.WithResponseSchema(http.StatusOK, "Overrides", []*override.Override{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/overrides/purge", a.purgeOverrides,
		forge.WithSummary("Purge expired overrides"),
		forge.WithDescription("Deletes overrides that expired at or before now."),
		forge.WithOperationID("purgeOverrides"),
		forge.WithResponseSchema(http.StatusOK, "Purge result", PurgeResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) setOverride(ctx forge.Context, req *SetOverrideRequest) (*override.Override, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	expiresAt, err := parseExpiry(req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	o, err := a.eng.SetPermissionOverride(ctx.Context(), ctx.Param("userId"), permID, req.IsGranted, expiresAt)
	if err != nil {
		return nil, mapError(err)
	}

	return o, ctx.JSON(http.StatusOK, o)
}

func (a *API) clearOverride(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	permID, err := parsePermissionID(ctx.Param("permissionId"))
	if err != nil {
		return nil, err
	}

	if err := a.eng.ClearPermissionOverride(ctx.Context(), ctx.Param("userId"), permID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listOverrides(ctx forge.Context, _ *UserRequest) ([]*override.Override, error) {
	list, err := a.eng.ListOverrides(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}

	return list, ctx.JSON(http.StatusOK, list)
}

func (a *API) purgeOverrides(ctx forge.Context, _ *struct{}) (*PurgeResponse, error) {
	n, err := a.eng.PurgeExpiredOverrides(ctx.Context(), time.Now())
	if err != nil {
		return nil, mapError(err)
	}

	resp := &PurgeResponse{Purged: n}
	return resp, ctx.JSON(http.StatusOK, resp)
}
