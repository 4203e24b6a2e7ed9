package passcode

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

const (
	CodeLength = 8
	// CodeAlphabet leaves out the look-alike characters 0, O, 1 and I.
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type PassCode struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	StudentID   string    `json:"student_id"`
	StudentName string    `json:"student_name"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by"`
	CourseIDs   []string  `json:"course_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// Grants reports whether the pass code currently gives studentID access to courseID.
func (pc PassCode) Grants(studentID, courseID string) bool {
	if !pc.IsActive || pc.StudentID == "" || pc.StudentID != studentID {
		return false
	}
	for _, id := range pc.CourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

type GeneratePassCodes struct {
	Count     int      `json:"count" validate:"required,min=1,max=500"`
	CourseIDs []string `json:"course_ids" validate:"required,min=1,uuids"`
	StudentID string   `json:"student_id" validate:"omitempty,uuid"`
}

func (gp *GeneratePassCodes) Validate(validate *validator.Validate) error {
	gp.StudentID = core.CleanString(gp.StudentID)
	gp.CourseIDs = dedupe(gp.CourseIDs)
	if gp.StudentID != "" && gp.Count > 1 {
		return core.NewFieldError("count", "only one pass code can be assigned to a student at once")
	}
	return validate.Struct(gp)
}

type AssignCourses struct {
	CourseIDs []string `json:"course_ids" validate:"required,min=1,uuids"`
}

func (ac *AssignCourses) Validate(validate *validator.Validate) error {
	ac.CourseIDs = dedupe(ac.CourseIDs)
	return validate.Struct(ac)
}

type AssignStudent struct {
	// StudentID is empty to unassign the pass code.
	StudentID string `json:"student_id" validate:"omitempty,uuid"`
}

type Redeem struct {
	Code string `json:"code" validate:"required,len=8,passcode"`
}

func (r *Redeem) Validate(validate *validator.Validate) error {
	r.Code = NormalizeCode(r.Code)
	return validate.Struct(r)
}

type QueryFilter struct {
	Search    string `query:"search"`
	StudentID string `query:"student"`
	CourseID  string `query:"course"`
	IsActive  *bool  `query:"is_active"`
	Assigned  *bool  `query:"assigned"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = NormalizeCode(qf.Search)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.CourseID = core.CleanString(qf.CourseID)
}

// GetFilter selects a single PassCode; the first non-empty field wins.
type GetFilter struct {
	ID   string
	Code string
}

// NormalizeCode upper-cases a user typed code and strips separators.
func NormalizeCode(code string) string {
	code = core.CleanString(code)
	out := make([]rune, 0, len(code))
	for _, r := range code {
		switch {
		case r == '-' || r == ' ':
		case r >= 'a' && r <= 'z':
			out = append(out, r-'a'+'A')
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

func dedupe(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
