package passcode

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

const maxGenerateAttempts = 10

var (
	// errors
	ErrNotFound   = errors.New("pass code not found")
	ErrCodeTaken  = errors.New("pass code already used by another student")
	ErrInactive   = errors.New("pass code is not active")
	errExhaustion = errors.New("could not generate a unique pass code")
)

type (
	Repository interface {
		CreatePassCode(ctx context.Context, pc PassCode, exec ...core.DBExecutor) (PassCode, error)
		// UpdatePassCode saves the student and the active flag.
		UpdatePassCode(ctx context.Context, pc PassCode, exec ...core.DBExecutor) (PassCode, error)
		// ClaimPassCode binds an active pass code to studentID unless another student holds it.
		// Returns ErrCodeTaken when it lost the race.
		ClaimPassCode(ctx context.Context, id, studentID string, exec ...core.DBExecutor) (PassCode, error)
		// SetCourses replaces the course set of a pass code.
		SetCourses(ctx context.Context, id string, courseIDs []string, exec ...core.DBExecutor) error
		DeletePassCode(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetPassCode(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (PassCode, error)
		QueryPassCodes(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]PassCode, error)
		// AccessibleCourseIDs lists the courses granted by the active pass codes of a student.
		AccessibleCourseIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]string, error)
	}

	Service struct {
		repo Repository
		tx   core.TxRunner
	}
)

func NewService(repo Repository, tx core.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// newCode draws codes until one is not used yet.
func (svc *Service) newCode(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	for i := 0; i < maxGenerateAttempts; i++ {
		code, err := core.RandomString(CodeLength, CodeAlphabet)
		if err != nil {
			return "", errors.Wrap(err, "drawing code")
		}
		_, err = svc.repo.GetPassCode(ctx, GetFilter{Code: code}, exec...)
		if errors.Cause(err) == ErrNotFound {
			return code, nil
		} else if err != nil {
			return "", errors.Wrap(err, "checking code")
		}
	}
	return "", errExhaustion
}

func (svc *Service) create(ctx context.Context, createdBy, studentID string, courseIDs []string, exec ...core.DBExecutor) (PassCode, error) {
	code, err := svc.newCode(ctx, exec...)
	if err != nil {
		return PassCode{}, err
	}
	pc, err := svc.repo.CreatePassCode(ctx, PassCode{
		ID:        uuid.NewString(),
		Code:      code,
		StudentID: studentID,
		IsActive:  true,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}, exec...)
	if err != nil {
		return PassCode{}, errors.Wrap(err, "creating pass code")
	}
	if err = svc.repo.SetCourses(ctx, pc.ID, courseIDs, exec...); err != nil {
		return PassCode{}, errors.Wrap(err, "setting courses")
	}
	pc.CourseIDs = courseIDs
	return pc, nil
}

// Generate creates gp.Count pass codes for the same course set.
func (svc *Service) Generate(ctx context.Context, actor core.Actor, gp GeneratePassCodes) ([]PassCode, error) {
	if !actor.Admin {
		return nil, core.ErrForbidden
	}
	codes := make([]PassCode, 0, gp.Count)
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		for i := 0; i < gp.Count; i++ {
			pc, err := svc.create(ctx, actor.ID, gp.StudentID, gp.CourseIDs, exec)
			if err != nil {
				return err
			}
			codes = append(codes, pc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Grant creates a single pass code bound to studentID. It joins the caller's transaction.
func (svc *Service) Grant(ctx context.Context, createdBy, studentID string, courseIDs []string, exec ...core.DBExecutor) (PassCode, error) {
	return svc.create(ctx, createdBy, studentID, dedupe(courseIDs), exec...)
}

func (svc *Service) Get(ctx context.Context, id string) (PassCode, error) {
	if !core.IsUUID(id) {
		return PassCode{}, ErrNotFound
	}
	return svc.repo.GetPassCode(ctx, GetFilter{ID: id})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]PassCode, error) {
	return svc.repo.QueryPassCodes(ctx, filter, ordering)
}

// AssignCourses replaces the courses granted by a pass code.
func (svc *Service) AssignCourses(ctx context.Context, id string, courseIDs []string) (PassCode, error) {
	pc, err := svc.Get(ctx, id)
	if err != nil {
		return PassCode{}, err
	}
	courseIDs = dedupe(courseIDs)
	if err = svc.repo.SetCourses(ctx, pc.ID, courseIDs); err != nil {
		return PassCode{}, errors.Wrap(err, "setting courses")
	}
	pc.CourseIDs = courseIDs
	return pc, nil
}

// AssignStudent binds the pass code to a student, or unbinds it when studentID is empty.
func (svc *Service) AssignStudent(ctx context.Context, id, studentID string) (PassCode, error) {
	pc, err := svc.Get(ctx, id)
	if err != nil {
		return PassCode{}, err
	}
	pc.StudentID = studentID
	return svc.repo.UpdatePassCode(ctx, pc)
}

func (svc *Service) SetActive(ctx context.Context, id string, active bool) (PassCode, error) {
	pc, err := svc.Get(ctx, id)
	if err != nil {
		return PassCode{}, err
	}
	pc.IsActive = active
	return svc.repo.UpdatePassCode(ctx, pc)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if _, err := svc.Get(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeletePassCode(ctx, id)
}

// Redeem binds an unassigned active code to the student. Redeeming one's own code again is a no-op.
func (svc *Service) Redeem(ctx context.Context, studentID, code string) (PassCode, error) {
	pc, err := svc.repo.GetPassCode(ctx, GetFilter{Code: NormalizeCode(code)})
	if err != nil {
		return PassCode{}, err
	}
	if !pc.IsActive {
		return PassCode{}, ErrInactive
	}
	switch pc.StudentID {
	case studentID:
		return pc, nil
	case "":
		return svc.repo.ClaimPassCode(ctx, pc.ID, studentID)
	default:
		return PassCode{}, ErrCodeTaken
	}
}

// AccessibleCourseIDs lists the courses a student may follow.
func (svc *Service) AccessibleCourseIDs(ctx context.Context, studentID string) ([]string, error) {
	if studentID == "" {
		return nil, nil
	}
	return svc.repo.AccessibleCourseIDs(ctx, studentID)
}

func (svc *Service) HasAccess(ctx context.Context, studentID, courseID string) (bool, error) {
	ids, err := svc.AccessibleCourseIDs(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == courseID {
			return true, nil
		}
	}
	return false, nil
}
