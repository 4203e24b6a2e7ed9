package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/enrollment"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/core/user"
)

type dashboardDeps struct {
	users       *user.Service
	courses     *course.Service
	progress    *progress.Service
	passcodes   *passcode.Service
	revenue     *revenue.Service
	enrollments *enrollment.Service
}

type dashboardApi struct {
	dashboardDeps
}

type (
	AdminDashboard struct {
		Students           int                  `json:"students"`
		Teachers           int                  `json:"teachers"`
		PendingTeachers    int                  `json:"pending_teachers"`
		Courses            int                  `json:"courses"`
		PendingCourses     int                  `json:"pending_courses"`
		PendingEnrollments int                  `json:"pending_enrollments"`
		PendingWithdrawals int                  `json:"pending_withdrawals"`
		Revenue            revenue.AgencyTotals `json:"revenue"`
	}

	TeacherDashboard struct {
		Courses          int             `json:"courses"`
		PublishedCourses int             `json:"published_courses"`
		Videos           int             `json:"videos"`
		Balance          revenue.Summary `json:"balance"`
	}

	StudentDashboard struct {
		Courses      int                       `json:"courses"`
		Completed    int                       `json:"completed"`
		Certificates int                       `json:"certificates"`
		Progress     []progress.CourseProgress `json:"progress"`
	}
)

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps dashboardDeps) {
	api := dashboardApi{deps}

	dg := g.Group("/dashboard", jwt)
	dg.GET("/admin", api.admin, adminMiddleware())
	dg.GET("/teacher", api.teacher, teacherMiddleware())
	dg.GET("/student", api.student, studentMiddleware())
}

func (api *dashboardApi) admin(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)
	var (
		dash       AdminDashboard
		yes, no    = true, false
		noOrdering []core.DBOrdering
	)

	students, err := api.users.Query(rctx, &user.QueryFilter{Roles: []string{user.RoleStudent}}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	dash.Students = len(students)

	teachers, err := api.users.Query(rctx, &user.QueryFilter{Roles: []string{user.RoleTeacher}}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting teachers")
	}
	dash.Teachers = len(teachers)

	pending, err := api.users.Query(rctx, &user.QueryFilter{PendingTeacher: &yes}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting teacher applications")
	}
	dash.PendingTeachers = len(pending)

	courses, err := api.courses.Query(rctx, actor, nil, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting courses")
	}
	dash.Courses = len(courses)

	unapproved, err := api.courses.Query(rctx, actor, &course.QueryFilter{IsApproved: &no}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting courses to approve")
	}
	dash.PendingCourses = len(unapproved)

	reqs, err := api.enrollments.Query(rctx, &enrollment.QueryFilter{Status: enrollment.StatusPending}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting enrollment requests")
	}
	dash.PendingEnrollments = len(reqs)

	ws, err := api.revenue.QueryWithdrawals(rctx, &revenue.WithdrawalFilter{Status: revenue.StatusPending}, noOrdering)
	if err != nil {
		return errors.Wrap(err, "counting withdrawals")
	}
	dash.PendingWithdrawals = len(ws)

	if dash.Revenue, err = api.revenue.AgencyTotals(rctx); err != nil {
		return errors.Wrap(err, "computing agency totals")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) teacher(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)
	var dash TeacherDashboard

	courses, err := api.courses.Query(rctx, actor, &course.QueryFilter{TeacherID: actor.ID}, nil)
	if err != nil {
		return errors.Wrap(err, "listing own courses")
	}
	dash.Courses = len(courses)
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
		if c.IsPublished {
			dash.PublishedCourses++
		}
	}

	counts, err := api.courses.CountVideos(rctx, ids)
	if err != nil {
		return errors.Wrap(err, "counting videos")
	}
	for _, n := range counts {
		dash.Videos += n
	}

	if dash.Balance, err = api.revenue.Summary(rctx, actor.ID); err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *dashboardApi) student(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	actor := getActor(ctx)
	var dash StudentDashboard

	ids, err := api.passcodes.AccessibleCourseIDs(rctx, actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing accessible courses")
	}
	if dash.Progress, err = api.progress.Overview(rctx, actor.ID, ids); err != nil {
		return errors.Wrap(err, "computing progress overview")
	}
	dash.Courses = len(dash.Progress)
	for _, cp := range dash.Progress {
		if cp.Completed {
			dash.Completed++
		}
	}

	certs, err := api.progress.ListCertificates(rctx, actor.ID)
	if err != nil {
		return errors.Wrap(err, "listing certificates")
	}
	dash.Certificates = len(certs)
	return ctx.JSON(http.StatusOK, dash)
}
