package echoapi

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examportal/core/enrollment"
	"github.com/trezcool/examportal/core/exam"
	"github.com/trezcool/examportal/core/user"
	exportsvc "github.com/trezcool/examportal/services/export"
)

type examApi struct {
	svc         *exam.Service
	enrollments *enrollment.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *exam.Service, enrollments *enrollment.Service) {
	api := examApi{svc: svc, enrollments: enrollments}
	authors := roleMiddleware(user.RoleAcademy, user.RoleSuperAdmin)

	eg := g.Group("/exams", jwt)
	eg.POST("", api.create, authors)
	eg.GET("", api.query)

	// detail endpoints
	eg.GET("/:id", api.retrieve)
	eg.PUT("/:id", api.update, authors)
	eg.POST("/:id/publish", api.publish, authors)
	eg.GET("/:id/questions", api.questions)
	eg.POST("/:id/questions", api.addQuestion, authors)
	eg.DELETE("/:id/questions/:qid", api.deleteQuestion, authors)
	eg.GET("/:id/results", api.results, authors)
	eg.GET("/:id/results/export", api.exportResults, authors)
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data exam.NewExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}

	e, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var filter exam.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	exams, err := api.svc.Query(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data exam.UpdateExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}

	e, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) publish(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, err := api.svc.Publish(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

// questions hides the answer key from anyone but the exam's academy and super admins.
func (api *examApi) questions(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	questions, withKey, err := api.svc.Questions(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if withKey {
		return ctx.JSON(http.StatusOK, questions)
	}
	return ctx.JSON(http.StatusOK, exam.StudentView(questions))
}

func (api *examApi) addQuestion(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data exam.NewQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}

	q, err := api.svc.AddQuestion(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding question")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *examApi) deleteQuestion(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteQuestion(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("qid")); err != nil {
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) results(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	_, enrs, err := api.enrollments.Results(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting results")
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *examApi) exportResults(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	e, enrs, err := api.enrollments.Results(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting results")
	}

	var buf bytes.Buffer
	if err = exportsvc.WriteResults(&buf, e, enrs); err != nil {
		return errors.Wrap(err, "exporting results")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="results-%s.xlsx"`, e.ID))
	return ctx.Blob(http.StatusOK, exportsvc.ContentType, buf.Bytes())
}
