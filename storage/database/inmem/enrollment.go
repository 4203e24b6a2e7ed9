package inmemdb

import (
	"context"
	"sort"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/enrollment"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db}
}

func cloneRequest(r *enrollment.Request) enrollment.Request {
	out := *r
	out.CourseIDs = copyStrings(r.CourseIDs)
	out.ProcessedAt = copyTime(r.ProcessedAt)
	return out
}

func (repo *enrollmentRepository) CreateRequest(_ context.Context, r enrollment.Request, _ ...core.DBExecutor) (enrollment.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored := cloneRequest(&r)
	repo.db.enrollments[r.ID] = &stored
	return cloneRequest(&stored), nil
}

func (repo *enrollmentRepository) UpdateRequest(_ context.Context, r enrollment.Request, from string, _ ...core.DBExecutor) (enrollment.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments[r.ID]
	if !ok {
		return enrollment.Request{}, enrollment.ErrNotFound
	}
	if orig.Status != from {
		return enrollment.Request{}, enrollment.ErrAlreadyProcessed
	}
	orig.Status, orig.AdminNote, orig.StudentID = r.Status, r.AdminNote, r.StudentID
	orig.ProcessedAt = copyTime(r.ProcessedAt)
	return cloneRequest(orig), nil
}

func (repo *enrollmentRepository) GetRequest(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.enrollments[id]; ok {
		return cloneRequest(r), nil
	}
	return enrollment.Request{}, enrollment.ErrNotFound
}

func (repo *enrollmentRepository) QueryRequests(_ context.Context, filter *enrollment.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]enrollment.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]enrollment.Request, 0, len(repo.db.enrollments))
	for _, r := range repo.db.enrollments {
		if filter != nil {
			if !matches(filter.Search, r.FullName, r.Email, r.Phone) {
				continue
			}
			if filter.Status != "" && r.Status != filter.Status {
				continue
			}
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
