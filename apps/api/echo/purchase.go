package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core/ledger"
	"github.com/trezcool/examportal/core/user"
)

type purchaseApi struct {
	svc *ledger.Service
}

func registerPurchaseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *ledger.Service) {
	api := purchaseApi{svc: svc}

	pg := g.Group("/exam-purchases", jwt, roleMiddleware(user.RoleAcademy))
	pg.POST("", api.create)
	pg.GET("", api.query)
	pg.GET("/can-assign", api.canAssign)
	pg.POST("/increment-used", api.incrementUsed)
}

// Handlers

func (api *purchaseApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data ledger.NewPurchase
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPurchase")
	}

	p, err := api.svc.Order(ctx.Request().Context(), actor.AcademyID, data)
	if err != nil {
		return errors.Wrap(err, "purchasing exam")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *purchaseApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	purchases, err := api.svc.Query(ctx.Request().Context(), actor.AcademyID)
	if err != nil {
		return errors.Wrap(err, "querying purchases")
	}
	return ctx.JSON(http.StatusOK, purchases)
}

func (api *purchaseApi) canAssign(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	av, err := api.svc.CanAssign(ctx.Request().Context(), actor.AcademyID, ctx.QueryParam("exam_id"))
	if err != nil {
		return errors.Wrap(err, "checking licenses")
	}
	return ctx.JSON(http.StatusOK, av)
}

func (api *purchaseApi) incrementUsed(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data ledger.LicenseUse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LicenseUse")
	}

	p, err := api.svc.UseLicense(ctx.Request().Context(), actor.AcademyID, data)
	if err != nil {
		return errors.Wrap(err, "incrementing used quantity")
	}
	return ctx.JSON(http.StatusOK, IncrementUsedResponse{Success: true, Purchase: p})
}

type IncrementUsedResponse struct {
	Success  bool            `json:"success"`
	Purchase ledger.Purchase `json:"purchase"`
}
