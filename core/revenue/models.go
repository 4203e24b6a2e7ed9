package revenue

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

// Revenue sources
const (
	SourceCourseSale = "course_sale"
	SourcePaidWork   = "paid_work"
	SourceManual     = "manual"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

var (
	// paidWorkTransitions lists the statuses a paid work may move to.
	paidWorkTransitions = map[string][]string{
		StatusPending:  {StatusApproved, StatusPaid},
		StatusApproved: {StatusPaid},
	}

	// withdrawalTransitions lists the statuses a withdrawal request may move to.
	withdrawalTransitions = map[string][]string{
		StatusPending:  {StatusApproved, StatusRejected},
		StatusApproved: {StatusPaid, StatusRejected},
	}
)

func canTransition(transitions map[string][]string, from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type (
	// Record is a ledger row splitting a gross amount between a teacher and the agency.
	Record struct {
		ID             string    `json:"id"`
		TeacherID      string    `json:"teacher_id"`
		TeacherName    string    `json:"teacher_name"`
		CourseID       string    `json:"course_id"`
		PaidWorkID     string    `json:"paid_work_id"`
		PaymentID      string    `json:"payment_id"`
		Source         string    `json:"source"`
		GrossAmount    int64     `json:"gross_amount"`
		TeacherPercent int       `json:"teacher_percent"`
		TeacherAmount  int64     `json:"teacher_amount"`
		AgencyAmount   int64     `json:"agency_amount"`
		Note           string    `json:"note"`
		CreatedAt      time.Time `json:"created_at"`
	}

	PaidWork struct {
		ID          string    `json:"id"`
		TeacherID   string    `json:"teacher_id"`
		TeacherName string    `json:"teacher_name"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Amount      int64     `json:"amount"`
		Status      string    `json:"status"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	Withdrawal struct {
		ID             string     `json:"id"`
		TeacherID      string     `json:"teacher_id"`
		TeacherName    string     `json:"teacher_name"`
		Amount         int64      `json:"amount"`
		Method         string     `json:"method"`
		AccountDetails string     `json:"account_details"`
		Status         string     `json:"status"`
		AdminNote      string     `json:"admin_note"`
		CreatedAt      time.Time  `json:"created_at"`
		ProcessedAt    *time.Time `json:"processed_at"`
	}

	// Summary is the balance of a teacher.
	Summary struct {
		TeacherID          string `json:"teacher_id"`
		TotalEarned        int64  `json:"total_earned"`
		TotalWithdrawn     int64  `json:"total_withdrawn"`
		PendingWithdrawals int64  `json:"pending_withdrawals"`
		Available          int64  `json:"available"`
	}

	// AgencyTotals aggregates the whole ledger for the admin dashboard.
	AgencyTotals struct {
		GrossTotal     int64 `json:"gross_total"`
		TeacherTotal   int64 `json:"teacher_total"`
		AgencyTotal    int64 `json:"agency_total"`
		PaidOut        int64 `json:"paid_out"`
		PendingPayouts int64 `json:"pending_payouts"`
		RecordCount    int   `json:"record_count"`
	}
)

type NewManualRecord struct {
	TeacherID      string `json:"teacher_id" validate:"required,uuid"`
	CourseID       string `json:"course_id" validate:"omitempty,uuid"`
	GrossAmount    int64  `json:"gross_amount" validate:"required,min=1"`
	TeacherPercent *int   `json:"teacher_percent" validate:"omitempty,min=0,max=100"`
	Note           string `json:"note" validate:"omitempty,max=1000"`
}

func (nr *NewManualRecord) Validate(validate *validator.Validate) error {
	nr.Note = core.CleanString(nr.Note)
	return validate.Struct(nr)
}

type NewPaidWork struct {
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Amount      int64  `json:"amount" validate:"required,min=1"`
}

func (nw *NewPaidWork) Validate(validate *validator.Validate) error {
	nw.Title = core.CleanString(nw.Title)
	nw.Description = core.CleanString(nw.Description)
	return validate.Struct(nw)
}

type UpdatePaidWorkStatus struct {
	Status string `json:"status" validate:"required,oneof=approved paid"`
}

type NewWithdrawal struct {
	Amount         int64  `json:"amount" validate:"required,min=1"`
	Method         string `json:"method" validate:"required,max=32"`
	AccountDetails string `json:"account_details" validate:"required,max=500"`
}

func (nw *NewWithdrawal) Validate(validate *validator.Validate) error {
	nw.Method = core.CleanString(nw.Method, true /* lower */)
	nw.AccountDetails = core.CleanString(nw.AccountDetails)
	return validate.Struct(nw)
}

type ProcessWithdrawal struct {
	Status    string `json:"status" validate:"required,oneof=approved rejected paid"`
	AdminNote string `json:"admin_note" validate:"omitempty,max=1000"`
}

func (pw *ProcessWithdrawal) Validate(validate *validator.Validate) error {
	pw.Status = core.CleanString(pw.Status, true /* lower */)
	pw.AdminNote = core.CleanString(pw.AdminNote)
	return validate.Struct(pw)
}

type (
	RecordFilter struct {
		TeacherID string    `query:"teacher"`
		CourseID  string    `query:"course"`
		Source    string    `query:"source"`
		From      time.Time `query:"from"`
		To        time.Time `query:"to"`
	}

	PaidWorkFilter struct {
		TeacherID string `query:"teacher"`
		Status    string `query:"status"`
	}

	WithdrawalFilter struct {
		TeacherID string `query:"teacher"`
		Status    string `query:"status"`
	}
)

func (f *RecordFilter) Clean() {
	f.TeacherID = core.CleanString(f.TeacherID)
	f.CourseID = core.CleanString(f.CourseID)
	f.Source = core.CleanString(f.Source, true /* lower */)
}

func (f *PaidWorkFilter) Clean() {
	f.TeacherID = core.CleanString(f.TeacherID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}

func (f *WithdrawalFilter) Clean() {
	f.TeacherID = core.CleanString(f.TeacherID)
	f.Status = core.CleanString(f.Status, true /* lower */)
}
