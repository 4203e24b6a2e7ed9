package tests

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/progress"
	"github.com/alphazero/academy/testutil"
)

var sortStrings = cmpopts.SortSlices(func(a, b string) bool { return a < b })

func courseIDs(courses []course.Course) []string {
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	return ids
}

func Test_courseApi_catalog(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	public := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Public Go", 150000, true)
	draft := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Draft Rust", 0, false)

	tests := []struct {
		name    string
		path    string
		token   string
		wantIDs []string
	}{
		{name: "anonymous sees public courses", path: "/v1/courses", wantIDs: []string{public.ID}},
		{name: "student sees public courses", path: "/v1/courses", token: app.token(t, fx.student), wantIDs: []string{public.ID}},
		{name: "teacher sees own drafts", path: "/v1/courses?teacher=" + fx.teacher.ID, token: app.token(t, fx.teacher), wantIDs: []string{draft.ID, public.ID}},
		{name: "admin sees everything", path: "/v1/courses", token: app.token(t, fx.admin), wantIDs: []string{draft.ID, public.ID}},
		{name: "search", path: "/v1/courses?search=rust", token: app.token(t, fx.admin), wantIDs: []string{draft.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(http.MethodGet, tt.path, tt.token, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
			}
			var got []course.Course
			decode(t, rec, &got)
			if diff := cmp.Diff(tt.wantIDs, courseIDs(got), sortStrings); diff != "" {
				t.Errorf("failed! ids mismatch (-want +got):\n%s", diff)
			}
		})
	}

	app.run(t, []httpTest{
		{name: "draft hidden from anonymous", method: http.MethodGet, path: "/v1/courses/" + draft.ID, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "course not found"})},
		{name: "draft visible to owner", method: http.MethodGet, path: "/v1/courses/" + draft.ID, token: app.token(t, fx.teacher), wantCode: http.StatusOK},
		{name: "public course", method: http.MethodGet, path: "/v1/courses/" + public.ID, wantCode: http.StatusOK},
		{name: "malformed id", method: http.MethodGet, path: "/v1/courses/lol", wantCode: http.StatusNotFound},
	})
}

func Test_courseApi_lifecycle(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	other := testutil.CreateUser(t, app.UserRepo, "Other", "other@test.id", "", []string{"teacher"}, true)

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/courses", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "students cannot create", method: http.MethodPost, path: "/v1/courses", token: app.token(t, fx.student),
			body: marshalObj(t, course.NewCourse{Title: "Go"}), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", method: http.MethodPost, path: "/v1/courses", token: app.token(t, fx.teacher),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"title": "this field is required"}),
		},
	})

	// teacher creates a course waiting for approval
	rec := app.do(http.MethodPost, "/v1/courses", app.token(t, fx.teacher), marshalObj(t, course.NewCourse{Title: " Go 101 ", Price: 100000}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var crs course.Course
	decode(t, rec, &crs)
	if crs.Title != "Go 101" || crs.TeacherID != fx.teacher.ID || crs.CourseType != course.TypeRecorded {
		t.Errorf("create: got %+v", crs)
	}
	if crs.IsApproved || crs.IsPublished {
		t.Errorf("create: approved %v, published %v; want both false", crs.IsApproved, crs.IsPublished)
	}

	path := "/v1/courses/" + crs.ID
	app.run(t, []httpTest{
		{name: "other teacher cannot update", method: http.MethodPut, path: path, token: app.token(t, other), body: marshalObj(t, course.UpdateCourse{Title: "Mine"}), wantCode: http.StatusForbidden},
		{name: "owner updates", method: http.MethodPut, path: path, token: app.token(t, fx.teacher), body: marshalObj(t, course.UpdateCourse{Title: "Go 102"}), wantCode: http.StatusOK},
		{name: "owner publishes", method: http.MethodPost, path: path + "/publish", token: app.token(t, fx.teacher), wantCode: http.StatusOK},
		{name: "teacher cannot approve", method: http.MethodPost, path: path + "/approve", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden},
		{name: "still hidden until approved", method: http.MethodGet, path: path, wantCode: http.StatusNotFound},
		{name: "admin approves", method: http.MethodPost, path: path + "/approve", token: app.token(t, fx.admin), wantCode: http.StatusOK},
		{name: "now public", method: http.MethodGet, path: path, wantCode: http.StatusOK},
		{name: "admin rejects", method: http.MethodPost, path: path + "/reject", token: app.token(t, fx.admin), wantCode: http.StatusOK},
		{name: "hidden again", method: http.MethodGet, path: path, wantCode: http.StatusNotFound},
		{name: "other teacher cannot delete", method: http.MethodDelete, path: path, token: app.token(t, other), wantCode: http.StatusForbidden},
		{name: "owner deletes", method: http.MethodDelete, path: path, token: app.token(t, fx.teacher), wantCode: http.StatusNoContent},
		{name: "gone", method: http.MethodGet, path: path, token: app.token(t, fx.admin), wantCode: http.StatusNotFound},
	})

	t.Run("rejecting unpublishes", func(t *testing.T) {
		c := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Live", 0, true)
		rec := app.do(http.MethodPost, "/v1/courses/"+c.ID+"/reject", app.token(t, fx.admin), nil)
		var got course.Course
		decode(t, rec, &got)
		if got.IsPublished || got.IsApproved {
			t.Errorf("failed! published %v, approved %v; want both false", got.IsPublished, got.IsApproved)
		}
	})
}

func Test_courseApi_videos(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	crs := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 0, true)
	v0 := testutil.CreateVideo(t, app.CourseRepo, crs.ID, "intro", 0)
	v1 := testutil.CreateVideo(t, app.CourseRepo, crs.ID, "basics", 1)
	teacherToken := app.token(t, fx.teacher)
	videosPath := "/v1/courses/" + crs.ID + "/videos"

	t.Run("order defaults to max+1", func(t *testing.T) {
		rec := app.do(http.MethodPost, videosPath, teacherToken,
			marshalObj(t, course.NewVideo{Title: "advanced", VideoURL: "https://vimeo.com/1", VideoType: "VIMEO"}))
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var v course.Video
		decode(t, rec, &v)
		if v.OrderIndex != 2 || v.VideoType != course.VideoVimeo {
			t.Errorf("failed! order %d type %q; want 2 %q", v.OrderIndex, v.VideoType, course.VideoVimeo)
		}
	})

	app.run(t, []httpTest{
		{
			name: "invalid video", method: http.MethodPost, path: videosPath, token: teacherToken,
			body:     marshalObj(t, course.NewVideo{Title: "x", VideoURL: "lol", VideoType: "tiktok"}),
			wantCode: http.StatusBadRequest,
		},
		{name: "student without pass code", method: http.MethodGet, path: videosPath, token: app.token(t, fx.student), wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "you do not have access to this course"})},
		{name: "owner lists", method: http.MethodGet, path: videosPath, token: teacherToken, wantCode: http.StatusOK},
		{
			name: "reorder must list every video", method: http.MethodPut, path: videosPath + "/order", token: teacherToken,
			body:     marshalObj(t, course.ReorderVideos{VideoIDs: []string{v1.ID, v0.ID}}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"video_ids": "video_ids must list every video of the course exactly once"}),
		},
	})

	t.Run("reorder", func(t *testing.T) {
		rec := app.do(http.MethodGet, videosPath, teacherToken, nil)
		var videos []course.Video
		decode(t, rec, &videos)
		ids := make([]string, 0, len(videos))
		for i := len(videos) - 1; i >= 0; i-- {
			ids = append(ids, videos[i].ID)
		}

		rec = app.do(http.MethodPut, videosPath+"/order", teacherToken, marshalObj(t, course.ReorderVideos{VideoIDs: ids}))
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var got []course.Video
		decode(t, rec, &got)
		for i, v := range got {
			if v.ID != ids[i] || v.OrderIndex != i {
				t.Errorf("failed! position %d = %s (order %d); want %s", i, v.ID, v.OrderIndex, ids[i])
			}
		}
	})

	t.Run("student with pass code sees materials", func(t *testing.T) {
		testutil.Grant(t, app.PassCodeSvc, fx.admin.ID, fx.student.ID, crs.ID)

		rec := app.do(http.MethodPost, "/v1/videos/"+v0.ID+"/materials", teacherToken,
			marshalObj(t, course.NewMaterial{Title: "Notes", MaterialType: course.MaterialNote, NoteContent: "read me"}))
		if rec.Code != http.StatusCreated {
			t.Fatalf("add material: code = %v; body %s", rec.Code, rec.Body.String())
		}

		rec = app.do(http.MethodGet, videosPath, app.token(t, fx.student), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var videos []course.Video
		decode(t, rec, &videos)
		var found bool
		for _, v := range videos {
			if v.ID == v0.ID {
				found = len(v.Materials) == 1 && v.Materials[0].NoteContent == "read me"
			}
		}
		if !found {
			t.Errorf("failed! material missing from %+v", videos)
		}

		// students cannot edit
		rec = app.do(http.MethodPut, "/v1/videos/"+v0.ID, app.token(t, fx.student), marshalObj(t, course.UpdateVideo{Title: "hacked"}))
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! update code = %v; want %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("material type is required", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/videos/"+v0.ID+"/materials", teacherToken, marshalObj(t, course.NewMaterial{Title: "x"}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"material_type": "this field is required"})}, rec)
	})

	t.Run("deleting a video", func(t *testing.T) {
		rec := app.do(http.MethodDelete, "/v1/videos/"+v1.ID, teacherToken, nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		rec = app.do(http.MethodPut, "/v1/videos/"+v1.ID, teacherToken, marshalObj(t, course.UpdateVideo{Title: "x"}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "video not found"})}, rec)
	})
}

func Test_progressApi(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)

	crs := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 0, true)
	v0 := testutil.CreateVideo(t, app.CourseRepo, crs.ID, "intro", 0)
	v1 := testutil.CreateVideo(t, app.CourseRepo, crs.ID, "basics", 1)
	token := app.token(t, fx.student)

	rec := app.do(http.MethodPost, "/v1/videos/"+v0.ID+"/progress", token, marshalObj(t, progress.RecordProgress{ProgressPercent: 50}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "you do not have access to this course"})}, rec)

	testutil.Grant(t, app.PassCodeSvc, fx.admin.ID, fx.student.ID, crs.ID)

	record := func(t *testing.T, videoID string, rp progress.RecordProgress) progress.RecordResult {
		t.Helper()
		rec := app.do(http.MethodPost, "/v1/videos/"+videoID+"/progress", token, marshalObj(t, rp))
		if rec.Code != http.StatusOK {
			t.Fatalf("record: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var res progress.RecordResult
		decode(t, rec, &res)
		return res
	}

	res := record(t, v0.ID, progress.RecordProgress{ProgressPercent: 60})
	if res.Progress.ProgressPercent != 60 || res.Progress.IsCompleted {
		t.Errorf("failed! progress = %+v", res.Progress)
	}
	// never goes backwards
	res = record(t, v0.ID, progress.RecordProgress{ProgressPercent: 20})
	if res.Progress.ProgressPercent != 60 {
		t.Errorf("failed! percent = %d; want 60", res.Progress.ProgressPercent)
	}
	res = record(t, v0.ID, progress.RecordProgress{IsCompleted: true})
	if res.CourseProgress.Percent != 50 || res.CourseProgress.Completed || res.Certificate != nil {
		t.Errorf("failed! course progress = %+v", res.CourseProgress)
	}

	res = record(t, v1.ID, progress.RecordProgress{ProgressPercent: 150})
	if !res.CourseProgress.Completed || res.CourseProgress.Percent != 100 {
		t.Fatalf("failed! course progress = %+v", res.CourseProgress)
	}
	if res.Certificate == nil || res.Certificate.Number == "" {
		t.Fatalf("failed! no certificate issued")
	}
	number := res.Certificate.Number

	// replays keep the same certificate
	res = record(t, v1.ID, progress.RecordProgress{IsCompleted: true})
	if res.Certificate != nil {
		t.Errorf("failed! certificate issued twice")
	}
	if res.CourseProgress.Certificate == nil || res.CourseProgress.Certificate.Number != number {
		t.Errorf("failed! course progress certificate = %+v; want %s", res.CourseProgress.Certificate, number)
	}

	t.Run("overview", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/progress", token, nil)
		var overview []progress.CourseProgress
		decode(t, rec, &overview)
		if len(overview) != 1 || !overview[0].Completed || overview[0].CourseTitle != "Go" {
			t.Errorf("failed! overview = %+v", overview)
		}
	})

	app.run(t, []httpTest{
		{name: "certificates of the user", method: http.MethodGet, path: "/v1/certificates", token: token, wantCode: http.StatusOK},
		{name: "public verification", method: http.MethodGet, path: "/v1/certificates/" + number, wantCode: http.StatusOK},
		{name: "unknown certificate", method: http.MethodGet, path: "/v1/certificates/AZ-1999-DEADBEEF", wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "certificate not found"})},
		{name: "overview is for students", method: http.MethodGet, path: "/v1/progress", token: app.token(t, fx.teacher), wantCode: http.StatusForbidden},
	})
}
