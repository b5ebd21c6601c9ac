package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/grading"
	"github.com/trezcool/examportal/core/user"
)

type enrollmentApi struct {
	svc     *enrollment.Service
	grading *grading.Service
}

func registerEnrollmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *enrollment.Service, gradingSvc *grading.Service) {
	api := enrollmentApi{svc: svc, grading: gradingSvc}
	students := roleMiddleware(user.RoleStudent)

	eg := g.Group("/enrollments", jwt)
	eg.POST("", api.create)
	eg.GET("", api.query)

	// detail endpoints
	eg.GET("/:id", api.retrieve)
	eg.DELETE("/:id", api.destroy)
	eg.PUT("/:id/start", api.start, students)
	eg.GET("/:id/session", api.session, students)
	eg.PUT("/:id/answers", api.answer, students)
	eg.POST("/:id/submit", api.submit, students)
	eg.POST("/:id/review", api.review, roleMiddleware(user.RoleAcademy, user.RoleSuperAdmin))
}

// Handlers

func (api *enrollmentApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.NewEnrollment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter enrollment.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}

	enrs, err := api.svc.Query(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.Remove(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) start(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	enr, err := api.svc.Start(ctx.Request().Context(), ctx.Param("id"), actor.ID)
	if err != nil {
		return errors.Wrap(err, "starting exam")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) session(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sess, err := api.svc.Session(ctx.Request().Context(), actor.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *enrollmentApi) answer(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data enrollment.AnswerInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerInput")
	}

	a, err := api.svc.RecordAnswer(ctx.Request().Context(), actor.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording answer")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *enrollmentApi) submit(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data grading.SubmitRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}

	out, err := api.grading.Submit(ctx.Request().Context(), actor, ctx.Param("id"), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}
	return ctx.JSON(http.StatusOK, out)
}

func (api *enrollmentApi) review(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data grading.ReviewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewRequest")
	}

	out, err := api.grading.Review(ctx.Request().Context(), actor, ctx.Param("id"), data.Grades)
	if err != nil {
		return errors.Wrap(err, "reviewing answers")
	}
	return ctx.JSON(http.StatusOK, out)
}
