package tests

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core/payment"
	"github.com/alphazero/academy/core/revenue"
	"github.com/alphazero/academy/testutil"
)

const serverKey = "SB-Mid-server-test"

// stubGateway records the orders it is given.
type stubGateway struct {
	mu     sync.Mutex
	orders []payment.Order
	fail   bool
}

func (gw *stubGateway) CreateTransaction(_ context.Context, o payment.Order) (payment.Transaction, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.fail {
		return payment.Transaction{}, errors.New("gateway down")
	}
	gw.orders = append(gw.orders, o)
	return payment.Transaction{Token: "snap-" + o.OrderID, RedirectURL: "https://pay.test/" + o.OrderID}, nil
}

func (gw *stubGateway) ServerKey() string { return serverKey }

func notification(orderID, status string, amount int64, key string) payment.Notification {
	gross := strconv.FormatInt(amount, 10) + ".00"
	return payment.Notification{
		OrderID:           orderID,
		TransactionStatus: status,
		StatusCode:        "200",
		GrossAmount:       gross,
		PaymentType:       "bank_transfer",
		SignatureKey:      payment.Signature(orderID, "200", gross, key),
	}
}

func Test_paymentApi_disabled(t *testing.T) {
	app := setup(t, nil)
	fx := app.seed(t)
	crs := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 150000, true)

	app.run(t, []httpTest{
		{
			name: "checkout", method: http.MethodPost, path: "/v1/payments/checkout", token: app.token(t, fx.student),
			body:     marshalObj(t, payment.CheckoutRequest{CourseID: crs.ID}),
			wantCode: http.StatusServiceUnavailable, wantData: marshalObj(t, httpErr{Error: "payments are not configured"}),
		},
		{
			name: "notification", method: http.MethodPost, path: "/v1/payments/notification",
			body:     marshalObj(t, notification("AZ-1", "settlement", 150000, serverKey)),
			wantCode: http.StatusServiceUnavailable,
		},
	})
}

func Test_paymentApi(t *testing.T) {
	gw := new(stubGateway)
	app := setup(t, gw)
	fx := app.seed(t)

	crs := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Go", 150000, true)
	free := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Free", 0, true)
	draft := testutil.CreateCourse(t, app.CourseRepo, fx.teacher.ID, "Draft", 90000, false)
	studentToken := app.token(t, fx.student)

	checkout := func(courseID string) []byte {
		return marshalObj(t, payment.CheckoutRequest{CourseID: courseID})
	}
	app.run(t, []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/payments/checkout", body: checkout(crs.ID), wantCode: http.StatusUnauthorized},
		{name: "students only", method: http.MethodPost, path: "/v1/payments/checkout", token: app.token(t, fx.teacher), body: checkout(crs.ID), wantCode: http.StatusForbidden},
		{name: "course id required", method: http.MethodPost, path: "/v1/payments/checkout", token: studentToken, wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"course_id": "this field is required"})},
		{name: "free courses are not sold", method: http.MethodPost, path: "/v1/payments/checkout", token: studentToken, body: checkout(free.ID), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "this course cannot be purchased"})},
		{name: "drafts are not sold", method: http.MethodPost, path: "/v1/payments/checkout", token: studentToken, body: checkout(draft.ID), wantCode: http.StatusBadRequest},
	})

	rec := app.do(http.MethodPost, "/v1/payments/checkout", studentToken, checkout(crs.ID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: code = %v; body %s", rec.Code, rec.Body.String())
	}
	var p payment.Payment
	decode(t, rec, &p)
	if p.Status != payment.StatusPending || p.Amount != 150000 || p.SnapToken != "snap-"+p.OrderID {
		t.Errorf("checkout: got %+v", p)
	}
	if len(gw.orders) != 1 || gw.orders[0].CustomerEmail != fx.student.Email || gw.orders[0].ItemName != "Go" {
		t.Errorf("checkout: orders = %+v", gw.orders)
	}

	notify := func(n payment.Notification) []byte { return marshalObj(t, n) }
	forged := notification(p.OrderID, "settlement", 150000, "wrong-key")
	cheap := notification(p.OrderID, "settlement", 1000, serverKey)

	app.run(t, []httpTest{
		{name: "forged signature", method: http.MethodPost, path: "/v1/payments/notification", body: notify(forged), wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid notification signature"})},
		{name: "unknown order", method: http.MethodPost, path: "/v1/payments/notification", body: notify(notification("AZ-0-NOPE", "settlement", 150000, serverKey)), wantCode: http.StatusNotFound},
		{name: "amount mismatch", method: http.MethodPost, path: "/v1/payments/notification", body: notify(cheap), wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "notified amount does not match the payment"})},
		{name: "still pending", method: http.MethodPost, path: "/v1/payments/notification", body: notify(notification(p.OrderID, "pending", 150000, serverKey)), wantCode: http.StatusOK, wantData: marshalObj(t, map[string]string{"order_id": p.OrderID, "status": "pending"})},
		{name: "no access before settlement", method: http.MethodGet, path: "/v1/courses/" + crs.ID + "/videos", token: studentToken, wantCode: http.StatusForbidden},
	})

	// replays must not grant or credit twice
	settled := notify(notification(p.OrderID, "settlement", 150000, serverKey))
	for i := 0; i < 2; i++ {
		rec = app.do(http.MethodPost, "/v1/payments/notification", "", settled)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, map[string]string{"order_id": p.OrderID, "status": "paid"})}, rec)
	}
	// a late failure cannot undo a paid payment
	rec = app.do(http.MethodPost, "/v1/payments/notification", "", notify(notification(p.OrderID, "expire", 150000, serverKey)))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marshalObj(t, map[string]string{"order_id": p.OrderID, "status": "paid"})}, rec)

	app.run(t, []httpTest{
		{name: "access granted", method: http.MethodGet, path: "/v1/courses/" + crs.ID + "/videos", token: studentToken, wantCode: http.StatusOK},
		{name: "already owned", method: http.MethodPost, path: "/v1/payments/checkout", token: studentToken, body: checkout(crs.ID), wantCode: http.StatusConflict, wantData: marshalObj(t, httpErr{Error: "you already have access to this course"})},
	})

	t.Run("teacher credited once", func(t *testing.T) {
		sum, err := app.RevenueSvc.Summary(context.Background(), fx.teacher.ID)
		if err != nil {
			t.Fatalf("Summary(): %v", err)
		}
		want := int64(150000 * app.Conf.Revenue.TeacherSharePercent / 100)
		if sum.TotalEarned != want {
			t.Errorf("failed! earned = %d; want %d", sum.TotalEarned, want)
		}
		records, err := app.RevenueSvc.QueryRecords(context.Background(), &revenue.RecordFilter{Source: revenue.SourceCourseSale}, nil)
		if err != nil {
			t.Fatalf("QueryRecords(): %v", err)
		}
		if len(records) != 1 || records[0].PaymentID != p.ID {
			t.Errorf("failed! records = %+v", records)
		}
	})

	t.Run("listing is scoped to the student", func(t *testing.T) {
		other := testutil.CreateUser(t, app.UserRepo, "Other", "other@test.id", "", []string{"student"}, true)
		rec := app.do(http.MethodGet, "/v1/payments", app.token(t, other), nil)
		var got []payment.Payment
		decode(t, rec, &got)
		if len(got) != 0 {
			t.Errorf("failed! got %d payments; want 0", len(got))
		}
		rec = app.do(http.MethodGet, "/v1/payments?status=paid", app.token(t, fx.admin), nil)
		decode(t, rec, &got)
		if len(got) != 1 || got[0].ID != p.ID || got[0].PaidAt == nil {
			t.Errorf("failed! got %+v", got)
		}
	})

	t.Run("gateway failure fails the payment", func(t *testing.T) {
		other := testutil.CreateUser(t, app.UserRepo, "Buyer", "buyer@test.id", "", []string{"student"}, true)
		gw.mu.Lock()
		gw.fail = true
		gw.mu.Unlock()
		rec := app.do(http.MethodPost, "/v1/payments/checkout", app.token(t, other), checkout(crs.ID))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("failed! code = %v; want %v", rec.Code, http.StatusInternalServerError)
		}
		payments, err := app.PaymentSvc.Query(context.Background(), &payment.QueryFilter{StudentID: other.ID}, nil)
		if err != nil {
			t.Fatalf("Query(): %v", err)
		}
		if len(payments) != 1 || payments[0].Status != payment.StatusFailed {
			t.Errorf("failed! payments = %+v", payments)
		}
	})
}
