package tests

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/testutil"
)

func Test_revenueApi(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	other := testutil.CreateUser(t, app.UserRepo, "Other", "other@test.id", "", []string{"teacher"}, true)

	adminToken := app.token(t, fx.admin)
	teacherToken := app.token(t, fx.teacher)

	summary := func(t *testing.T) revenue.Summary {
		t.Helper()
		rec := app.do(http.MethodGet, "/v1/revenue/summary", teacherToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("summary: code = %v; body %s", rec.Code, rec.Body.String())
		}
		var sum revenue.Summary
		decode(t, rec, &sum)
		return sum
	}

	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/revenue/summary", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "students are kept out", method: http.MethodGet, path: "/v1/revenue/summary", token: app.token(t, fx.student), wantCode: http.StatusForbidden},
		{name: "admins must name a teacher", method: http.MethodGet, path: "/v1/revenue/summary", token: adminToken, wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"teacher": "this field is required"})},
		{
			name: "teachers cannot record revenue", method: http.MethodPost, path: "/v1/revenue/records", token: teacherToken,
			body: marshalObj(t, revenue.NewManualRecord{TeacherID: fx.teacher.ID, GrossAmount: 1000}), wantCode: http.StatusForbidden,
		},
		{
			name: "paid works need a teacher", method: http.MethodPost, path: "/v1/paid-works", token: adminToken,
			body:     marshalObj(t, revenue.NewPaidWork{TeacherID: fx.student.ID, Title: "Logo", Amount: 50000}),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"teacher_id": "user is not a teacher"}),
		},
	})

	// manual sale at the default 70% share
	rec := app.do(http.MethodPost, "/v1/revenue/records", adminToken,
		marshalObj(t, revenue.NewManualRecord{TeacherID: fx.teacher.ID, GrossAmount: 100000, Note: "offline class"}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("record: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var record revenue.Record
	decode(t, rec, &record)
	if record.TeacherAmount != 70000 || record.AgencyAmount != 30000 || record.Source != revenue.SourceManual {
		t.Errorf("record: got %+v", record)
	}

	// paid work credited in full once paid
	rec = app.do(http.MethodPost, "/v1/paid-works", adminToken,
		marshalObj(t, revenue.NewPaidWork{TeacherID: fx.teacher.ID, Title: "Logo", Amount: 50000}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("paid work: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var work revenue.PaidWork
	decode(t, rec, &work)
	if work.Status != revenue.StatusPending || work.TeacherName != "Teacher" {
		t.Errorf("paid work: got %+v", work)
	}

	workPath := "/v1/paid-works/" + work.ID
	app.run(t, []httpTest{
		{name: "other teachers cannot see it", method: http.MethodGet, path: workPath, token: app.token(t, other), wantCode: http.StatusNotFound},
		{name: "owner sees it", method: http.MethodGet, path: workPath, token: teacherToken, wantCode: http.StatusOK},
		{name: "teachers cannot change the status", method: http.MethodPut, path: workPath + "/status", token: teacherToken, body: marshalObj(t, revenue.UpdatePaidWorkStatus{Status: "paid"}), wantCode: http.StatusForbidden},
		{name: "unknown status", method: http.MethodPut, path: workPath + "/status", token: adminToken, body: marshalObj(t, revenue.UpdatePaidWorkStatus{Status: "rejected"}), wantCode: http.StatusBadRequest},
		{name: "mark paid", method: http.MethodPut, path: workPath + "/status", token: adminToken, body: marshalObj(t, revenue.UpdatePaidWorkStatus{Status: "PAID"}), wantCode: http.StatusOK},
		{name: "no way back", method: http.MethodPut, path: workPath + "/status", token: adminToken, body: marshalObj(t, revenue.UpdatePaidWorkStatus{Status: "approved"}), wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "status change not allowed"})},
	})

	want := revenue.Summary{TeacherID: fx.teacher.ID, TotalEarned: 120000, Available: 120000}
	if diff := cmp.Diff(want, summary(t)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	t.Run("teachers only see their ledger", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/revenue/records?teacher="+fx.teacher.ID, app.token(t, other), nil)
		var got []revenue.Record
		decode(t, rec, &got)
		if len(got) != 0 {
			t.Errorf("failed! got %d records; want 0", len(got))
		}
		rec = app.do(http.MethodGet, "/v1/revenue/records", teacherToken, nil)
		decode(t, rec, &got)
		if len(got) != 2 {
			t.Errorf("failed! got %d records; want 2", len(got))
		}
	})

	withdrawal := func(amount int64) []byte {
		return marshalObj(t, revenue.NewWithdrawal{Amount: amount, Method: "Bank", AccountDetails: "BCA 123456"})
	}
	app.run(t, []httpTest{
		{name: "admins cannot withdraw", method: http.MethodPost, path: "/v1/withdrawals", token: adminToken, body: withdrawal(20000), wantCode: http.StatusForbidden},
		{name: "below minimum", method: http.MethodPost, path: "/v1/withdrawals", token: teacherToken, body: withdrawal(5000), wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"amount": "amount must be at least 10000"})},
		{name: "above balance", method: http.MethodPost, path: "/v1/withdrawals", token: teacherToken, body: withdrawal(200000), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "amount exceeds the available balance"})},
	})

	rec = app.do(http.MethodPost, "/v1/withdrawals", teacherToken, withdrawal(100000))
	if rec.Code != http.StatusCreated {
		t.Fatalf("withdrawal: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var w revenue.Withdrawal
	decode(t, rec, &w)
	if w.Status != revenue.StatusPending || w.Method != "bank" {
		t.Errorf("withdrawal: got %+v", w)
	}

	// the pending request is reserved
	want = revenue.Summary{TeacherID: fx.teacher.ID, TotalEarned: 120000, PendingWithdrawals: 100000, Available: 20000}
	if diff := cmp.Diff(want, summary(t)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	wPath := "/v1/withdrawals/" + w.ID
	app.run(t, []httpTest{
		{name: "reserved balance", method: http.MethodPost, path: "/v1/withdrawals", token: teacherToken, body: withdrawal(30000), wantCode: http.StatusBadRequest},
		{name: "other teachers cannot see it", method: http.MethodGet, path: wPath, token: app.token(t, other), wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "withdrawal request not found"})},
		{name: "teachers cannot process", method: http.MethodPut, path: wPath, token: teacherToken, body: marshalObj(t, revenue.ProcessWithdrawal{Status: "paid"}), wantCode: http.StatusForbidden},
		{name: "pending cannot be paid", method: http.MethodPut, path: wPath, token: adminToken, body: marshalObj(t, revenue.ProcessWithdrawal{Status: "paid"}), wantCode: http.StatusConflict},
	})

	app.Mail.Reset()
	for _, status := range []string{revenue.StatusApproved, revenue.StatusPaid} {
		rec = app.do(http.MethodPut, wPath, adminToken, marshalObj(t, revenue.ProcessWithdrawal{Status: status, AdminNote: "ok"}))
		if rec.Code != http.StatusOK {
			t.Fatalf("process %s: code = %v; body %s", status, rec.Code, rec.Body.String())
		}
		decode(t, rec, &w)
		if w.Status != status || w.ProcessedAt == nil {
			t.Errorf("process %s: got %+v", status, w)
		}
	}
	sent := app.Mail.SentMessages()
	if len(sent) != 2 || sent[1].To[0].Address != fx.teacher.Email {
		t.Fatalf("notifications = %+v; want 2 sent to the teacher", sent)
	}
	if sent[0].HasAttachments() {
		t.Errorf("approval notification carries attachments: %+v", sent[0].Attachments)
	}
	if ats := sent[1].Attachments; len(ats) != 1 || ats[0].Filename != "withdrawal-"+w.ID+".csv" || ats[0].ContentType != "text/csv" {
		t.Errorf("payment notification attachments = %+v; want the CSV receipt", ats)
	}

	want = revenue.Summary{TeacherID: fx.teacher.ID, TotalEarned: 120000, TotalWithdrawn: 100000, Available: 20000}
	if diff := cmp.Diff(want, summary(t)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	t.Run("agency totals", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/revenue/totals", adminToken, nil)
		var got revenue.AgencyTotals
		decode(t, rec, &got)
		want := revenue.AgencyTotals{GrossTotal: 150000, TeacherTotal: 120000, AgencyTotal: 30000, PaidOut: 100000, RecordCount: 2}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("failed! totals mismatch (-want +got):\n%s", diff)
		}
	})
}
