package enrollment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/passcode"
	"github.com/alphazero/academy/core/user"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is an enrollment submitted from the public site.
type Request struct {
	ID          string     `json:"id"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Message     string     `json:"message"`
	CourseIDs   []string   `json:"course_ids"`
	Status      string     `json:"status"`
	AdminNote   string     `json:"admin_note"`
	StudentID   string     `json:"student_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}

// Provisioned is the outcome of onboarding a student.
// Password is only set when it was generated.
type Provisioned struct {
	Student  user.User          `json:"student"`
	Password string             `json:"password,omitempty"`
	PassCode *passcode.PassCode `json:"pass_code,omitempty"`
}

// PublicEnrollment is the payload of the "public-enrollment" function.
// OTP is the code previously sent to Email through "send-otp".
type PublicEnrollment struct {
	FullName  string   `json:"full_name" validate:"required,max=200"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phone" validate:"required,max=32"`
	Message   string   `json:"message" validate:"omitempty,max=2000"`
	CourseIDs []string `json:"course_ids" validate:"required,min=1,uuids"`
	OTP       string   `json:"otp" validate:"required,numeric"`
}

func (pe *PublicEnrollment) Validate(validate *validator.Validate) error {
	pe.FullName = core.CleanString(pe.FullName)
	pe.Email = core.CleanString(pe.Email, true /* lower */)
	pe.Phone = core.CleanString(pe.Phone)
	pe.Message = core.CleanString(pe.Message)
	pe.OTP = core.CleanString(pe.OTP)
	return validate.Struct(pe)
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

func (rr *RejectRequest) Validate(validate *validator.Validate) error {
	rr.Reason = core.CleanString(rr.Reason)
	return validate.Struct(rr)
}

type QueryFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}
