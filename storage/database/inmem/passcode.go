package inmemdb

import (
	"context"
	"sort"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/passcode"
)

type passCodeRepository struct {
	db *DB
}

var _ passcode.Repository = (*passCodeRepository)(nil) // interface compliance check

func NewPassCodeRepository(db *DB) *passCodeRepository {
	return &passCodeRepository{db: db}
}

// passCode must be called with the lock held.
func (repo *passCodeRepository) passCode(pc *passcode.PassCode) passcode.PassCode {
	out := *pc
	out.StudentName = repo.db.fullName(pc.StudentID)
	out.CourseIDs = copyStrings(pc.CourseIDs)
	sort.Strings(out.CourseIDs)
	return out
}

func (repo *passCodeRepository) CreatePassCode(_ context.Context, pc passcode.PassCode, _ ...core.DBExecutor) (passcode.PassCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.passCodes {
		if other.Code == pc.Code {
			return passcode.PassCode{}, passcode.ErrCodeTaken
		}
	}
	pc.CourseIDs = copyStrings(pc.CourseIDs)
	repo.db.passCodes[pc.ID] = &pc
	return repo.passCode(&pc), nil
}

func (repo *passCodeRepository) UpdatePassCode(_ context.Context, pc passcode.PassCode, _ ...core.DBExecutor) (passcode.PassCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.passCodes[pc.ID]
	if !ok {
		return passcode.PassCode{}, passcode.ErrNotFound
	}
	orig.StudentID = pc.StudentID
	orig.IsActive = pc.IsActive
	return repo.passCode(orig), nil
}

func (repo *passCodeRepository) ClaimPassCode(_ context.Context, id, studentID string, _ ...core.DBExecutor) (passcode.PassCode, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pc, ok := repo.db.passCodes[id]
	if !ok || !pc.IsActive || (pc.StudentID != "" && pc.StudentID != studentID) {
		return passcode.PassCode{}, passcode.ErrCodeTaken
	}
	pc.StudentID = studentID
	return repo.passCode(pc), nil
}

func (repo *passCodeRepository) SetCourses(_ context.Context, id string, courseIDs []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pc, ok := repo.db.passCodes[id]
	if !ok {
		return passcode.ErrNotFound
	}
	pc.CourseIDs = copyStrings(courseIDs)
	return nil
}

func (repo *passCodeRepository) DeletePassCode(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.passCodes[id]; !ok {
		return passcode.ErrNotFound
	}
	delete(repo.db.passCodes, id)
	return nil
}

func (repo *passCodeRepository) GetPassCode(_ context.Context, filter passcode.GetFilter, _ ...core.DBExecutor) (passcode.PassCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if pc, ok := repo.db.passCodes[filter.ID]; ok {
			return repo.passCode(pc), nil
		}
	case filter.Code != "":
		for _, pc := range repo.db.passCodes {
			if pc.Code == filter.Code {
				return repo.passCode(pc), nil
			}
		}
	}
	return passcode.PassCode{}, passcode.ErrNotFound
}

func (repo *passCodeRepository) QueryPassCodes(_ context.Context, filter *passcode.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]passcode.PassCode, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	codes := make([]passcode.PassCode, 0, len(repo.db.passCodes))
	for _, pc := range repo.db.passCodes {
		if filter != nil {
			if !matches(filter.Search, pc.Code, repo.db.fullName(pc.StudentID)) {
				continue
			}
			if filter.StudentID != "" && pc.StudentID != filter.StudentID {
				continue
			}
			if filter.CourseID != "" && !contains(pc.CourseIDs, filter.CourseID) {
				continue
			}
			if filter.IsActive != nil && pc.IsActive != *filter.IsActive {
				continue
			}
			if filter.Assigned != nil && (pc.StudentID != "") != *filter.Assigned {
				continue
			}
		}
		codes = append(codes, repo.passCode(pc))
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i].CreatedAt.After(codes[j].CreatedAt) })
	return codes, nil
}

func (repo *passCodeRepository) AccessibleCourseIDs(_ context.Context, studentID string, _ ...core.DBExecutor) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for _, pc := range repo.db.passCodes {
		if !pc.IsActive || pc.StudentID == "" || pc.StudentID != studentID {
			continue
		}
		for _, id := range pc.CourseIDs {
			if !contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
