package tests

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alphazero/academy/core/content"
)

func Test_contentApi_team(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	adminToken := app.token(t, fx.admin)
	hidden := false

	app.run(t, []httpTest{
		{name: "admins only", method: http.MethodPost, path: "/v1/content/team", token: app.token(t, fx.teacher), body: marshalObj(t, content.TeamMemberInput{Name: "X"}), wantCode: http.StatusForbidden},
		{name: "name required", method: http.MethodPost, path: "/v1/content/team", token: adminToken, wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"name": "this field is required"})},
		{name: "create", method: http.MethodPost, path: "/v1/content/team", token: adminToken, body: marshalObj(t, content.TeamMemberInput{Name: " Ayu ", Role: "CEO"}), wantCode: http.StatusCreated},
		{name: "create hidden", method: http.MethodPost, path: "/v1/content/team", token: adminToken, body: marshalObj(t, content.TeamMemberInput{Name: "Budi", IsActive: &hidden}), wantCode: http.StatusCreated},
	})

	list := func(t *testing.T, path, token string) []string {
		t.Helper()
		rec := app.do(http.MethodGet, path, token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("list: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var members []content.TeamMember
		decode(t, rec, &members)
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.Name
		}
		return names
	}

	tests := []struct {
		name  string
		path  string
		token string
		want  []string
	}{
		{name: "public sees active members", path: "/v1/content/team", want: []string{"Ayu"}},
		{name: "all is for admins", path: "/v1/content/team?all=true", token: app.token(t, fx.student), want: []string{"Ayu"}},
		{name: "admin sees hidden members", path: "/v1/content/team?all=true", token: adminToken, want: []string{"Ayu", "Budi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, list(t, tt.path, tt.token), sortStrings); diff != "" {
				t.Errorf("failed! names mismatch (-want +got):\n%s", diff)
			}
		})
	}

	app.run(t, []httpTest{
		{name: "update unknown", method: http.MethodPut, path: "/v1/content/team/lol", token: adminToken, body: marshalObj(t, content.TeamMemberInput{Name: "X"}), wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "team member not found"})},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/content/team/lol", token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_contentApi_works(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	adminToken := app.token(t, fx.admin)
	draft := false

	for _, in := range []content.WorkInput{
		{Title: "Site", Category: "Web", Link: "https://site.test"},
		{Title: "App", Category: "mobile"},
		{Title: "Secret", Category: "web", IsPublished: &draft},
	} {
		rec := app.do(http.MethodPost, "/v1/content/works", adminToken, marshalObj(t, in))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create %s: code = %v; body %s", in.Title, rec.Code, rec.Body.String())
		}
	}

	rec := app.do(http.MethodGet, "/v1/content/works?category=WEB", "", nil)
	var works []content.Work
	decode(t, rec, &works)
	if len(works) != 1 || works[0].Title != "Site" {
		t.Errorf("failed! works = %+v", works)
	}

	rec = app.do(http.MethodPost, "/v1/content/works", adminToken, marshalObj(t, content.WorkInput{Title: "Bad", Link: "nope"}))
	checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest}, rec)
}

func Test_contentApi_siteSettings(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	adminToken := app.token(t, fx.admin)

	app.run(t, []httpTest{
		{name: "set", method: http.MethodPut, path: "/v1/content/settings", token: adminToken, body: marshalObj(t, content.SettingInput{Key: "Contact_Email", Value: "hi@academy.test"}), wantCode: http.StatusOK},
		{name: "overwrite", method: http.MethodPut, path: "/v1/content/settings", token: adminToken, body: marshalObj(t, content.SettingInput{Key: "whatsapp", Value: "+62"}), wantCode: http.StatusOK},
		{name: "invalid key", method: http.MethodPut, path: "/v1/content/settings", token: adminToken, body: marshalObj(t, content.SettingInput{Key: "no spaces"}), wantCode: http.StatusBadRequest},
		{name: "public read", method: http.MethodGet, path: "/v1/content/settings", wantCode: http.StatusOK, wantData: marshalObj(t, map[string]string{"contact_email": "hi@academy.test", "whatsapp": "+62"})},
		{name: "delete", method: http.MethodDelete, path: "/v1/content/settings/whatsapp", token: adminToken, wantCode: http.StatusNoContent},
		{name: "delete unknown", method: http.MethodDelete, path: "/v1/content/settings/whatsapp", token: adminToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "setting not found"})},
	})

	for _, in := range []content.FooterLinkInput{
		{Section: "Social", Label: "Instagram", URL: "https://instagram.com/academy"},
		{Section: "social", Label: "YouTube", URL: "https://youtube.com/academy"},
		{Section: "company", Label: "About", URL: "/about"},
	} {
		rec := app.do(http.MethodPost, "/v1/content/footer/links", adminToken, marshalObj(t, in))
		if rec.Code != http.StatusCreated {
			t.Fatalf("footer link %s: code = %v; body %s", in.Label, rec.Code, rec.Body.String())
		}
	}
	t.Run("footer is grouped by section", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/content/footer", "", nil)
		var sections map[string][]content.FooterLink
		decode(t, rec, &sections)
		if len(sections) != 2 || len(sections["social"]) != 2 || len(sections["company"]) != 1 {
			t.Errorf("failed! sections = %+v", sections)
		}
	})

	t.Run("page sections are upserted", func(t *testing.T) {
		for _, body := range []string{"old", "new"} {
			rec := app.do(http.MethodPut, "/v1/content/pages", adminToken,
				marshalObj(t, content.PageSectionInput{Page: "Home", Section: "hero", Content: body}))
			if rec.Code != http.StatusOK {
				t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
			}
		}
		rec := app.do(http.MethodGet, "/v1/content/pages/home", "", nil)
		var sections map[string]content.PageSection
		decode(t, rec, &sections)
		if len(sections) != 1 || sections["hero"].Content != "new" {
			t.Errorf("failed! sections = %+v", sections)
		}
	})
}
