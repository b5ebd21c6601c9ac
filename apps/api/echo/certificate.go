package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	cg := g.Group("/certificates")

	// un-authed endpoints
	cg.GET("/verify/:number", api.verify)

	// authed endpoints
	cg.GET("/:id", api.retrieve, jwt)
}

// Handlers

func (api *certificateApi) verify(ctx echo.Context) error {
	cert, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("number"))
	if err != nil {
		return errors.Wrap(err, "verifying certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}

func (api *certificateApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cert, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting certificate")
	}
	return ctx.JSON(http.StatusOK, cert)
}
