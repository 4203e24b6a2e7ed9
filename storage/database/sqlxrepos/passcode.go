package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/passcode"
)

const passCodeSelect = `
SELECT pc.id, pc.code, pc.student_id, COALESCE(p.full_name, '') AS student_name, pc.is_active, pc.created_by, pc.created_at,
       ARRAY(SELECT pcc.course_id::text FROM pass_code_courses pcc WHERE pcc.pass_code_id = pc.id ORDER BY pcc.course_id) AS course_ids
FROM pass_codes pc
LEFT JOIN profiles p ON p.user_id = pc.student_id`

var passCodeOrderings = map[string]string{
	"created_at": "pc.created_at",
	"code":       "pc.code",
}

type passCodeRow struct {
	ID          string         `db:"id"`
	Code        string         `db:"code"`
	StudentID   null.String    `db:"student_id"`
	StudentName string         `db:"student_name"`
	IsActive    bool           `db:"is_active"`
	CreatedBy   null.String    `db:"created_by"`
	CreatedAt   time.Time      `db:"created_at"`
	CourseIDs   pq.StringArray `db:"course_ids"`
}

func (row passCodeRow) toPassCode() passcode.PassCode {
	return passcode.PassCode{
		ID:          row.ID,
		Code:        row.Code,
		StudentID:   row.StudentID.String,
		StudentName: row.StudentName,
		IsActive:    row.IsActive,
		CreatedBy:   row.CreatedBy.String,
		CourseIDs:   []string(row.CourseIDs),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type passCodeRepository struct {
	repository
}

var _ passcode.Repository = (*passCodeRepository)(nil) // interface compliance check

func NewPassCodeRepository(db *sqlx.DB) *passCodeRepository {
	return &passCodeRepository{repository{db: db}}
}

func (repo passCodeRepository) CreatePassCode(ctx context.Context, pc passcode.PassCode, exec ...core.DBExecutor) (passcode.PassCode, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO pass_codes (id, code, student_id, is_active, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		pc.ID, pc.Code, nullString(pc.StudentID), pc.IsActive, nullString(pc.CreatedBy), pc.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return passcode.PassCode{}, passcode.ErrCodeTaken
		}
		return passcode.PassCode{}, errors.Wrap(err, "inserting pass code")
	}
	return repo.GetPassCode(ctx, passcode.GetFilter{ID: pc.ID}, exec...)
}

func (repo passCodeRepository) UpdatePassCode(ctx context.Context, pc passcode.PassCode, exec ...core.DBExecutor) (passcode.PassCode, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("UPDATE pass_codes SET student_id = ?, is_active = ? WHERE id = ?"),
		nullString(pc.StudentID), pc.IsActive, pc.ID)
	if err = checkAffected(res, err, passcode.ErrNotFound, "updating pass code"); err != nil {
		return passcode.PassCode{}, err
	}
	return repo.GetPassCode(ctx, passcode.GetFilter{ID: pc.ID}, exec...)
}

func (repo passCodeRepository) ClaimPassCode(ctx context.Context, id, studentID string, exec ...core.DBExecutor) (passcode.PassCode, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE pass_codes SET student_id = ?
		WHERE id = ? AND is_active AND (student_id IS NULL OR student_id = ?)`),
		studentID, id, studentID,
	)
	if err = checkAffected(res, err, passcode.ErrCodeTaken, "claiming pass code"); err != nil {
		return passcode.PassCode{}, err
	}
	return repo.GetPassCode(ctx, passcode.GetFilter{ID: id}, exec...)
}

func (repo passCodeRepository) SetCourses(ctx context.Context, id string, courseIDs []string, exec ...core.DBExecutor) error {
	return repo.atomic(ctx, exec, func(tx core.DBExecutor) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM pass_code_courses WHERE pass_code_id = ?"), id); err != nil {
			return errors.Wrap(err, "clearing pass code courses")
		}
		for _, courseID := range courseIDs {
			_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO pass_code_courses (pass_code_id, course_id) VALUES (?, ?)"), id, courseID)
			if err != nil {
				return errors.Wrap(err, "inserting pass code course")
			}
		}
		return nil
	})
}

func (repo passCodeRepository) DeletePassCode(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM pass_codes WHERE id = ?"), id)
	return checkAffected(res, err, passcode.ErrNotFound, "deleting pass code")
}

func (repo passCodeRepository) GetPassCode(ctx context.Context, filter passcode.GetFilter, exec ...core.DBExecutor) (passcode.PassCode, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("pc.id = ?", filter.ID)
	case filter.Code != "":
		w.add("pc.code = ?", filter.Code)
	default:
		return passcode.PassCode{}, passcode.ErrNotFound
	}
	ex := repo.getExec(exec)
	var row passCodeRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(passCodeSelect+w.String()), w.args...); err != nil {
		return passcode.PassCode{}, trapNoRowsErr(err, passcode.ErrNotFound, "getting pass code")
	}
	return row.toPassCode(), nil
}

func (repo passCodeRepository) QueryPassCodes(ctx context.Context, filter *passcode.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]passcode.PassCode, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "pc.code", "p.full_name")
		if filter.StudentID != "" {
			w.add("pc.student_id = ?", filter.StudentID)
		}
		if filter.CourseID != "" {
			w.add("EXISTS (SELECT 1 FROM pass_code_courses pcc WHERE pcc.pass_code_id = pc.id AND pcc.course_id = ?)", filter.CourseID)
		}
		if filter.IsActive != nil {
			w.add("pc.is_active = ?", *filter.IsActive)
		}
		if filter.Assigned != nil {
			w.add("(pc.student_id IS NOT NULL) = ?", *filter.Assigned)
		}
	}
	query := passCodeSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, passCodeOrderings, "pc.created_at DESC")

	var rows []passCodeRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying pass codes")
	}
	codes := make([]passcode.PassCode, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.toPassCode())
	}
	return codes, nil
}

func (repo passCodeRepository) AccessibleCourseIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]string, error) {
	ex := repo.getExec(exec)
	ids := make([]string, 0)
	err := ex.SelectContext(ctx, &ids, ex.Rebind(`
		SELECT DISTINCT pcc.course_id
		FROM pass_code_courses pcc
		JOIN pass_codes pc ON pc.id = pcc.pass_code_id
		WHERE pc.student_id = ? AND pc.is_active
		ORDER BY pcc.course_id`), studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing accessible courses")
	}
	return ids, nil
}
