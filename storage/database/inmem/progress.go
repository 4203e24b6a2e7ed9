package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/progress"
)

type progressRepository struct {
	db *DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db}
}

func pairKey(a, b string) string {
	return a + "/" + b
}

// certificate joins the user name and the course title; must be called with the lock held.
func (repo *progressRepository) certificate(cert *progress.Certificate) progress.Certificate {
	out := *cert
	out.UserName = repo.db.fullName(cert.UserID)
	out.CourseTitle = ""
	if c, ok := repo.db.courses[cert.CourseID]; ok {
		out.CourseTitle = c.Title
	}
	return out
}

func (repo *progressRepository) UpsertProgress(_ context.Context, p progress.Progress, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := pairKey(p.UserID, p.VideoID)
	if prev, ok := repo.db.progress[key]; ok {
		p.ID = prev.ID
	}
	repo.db.progress[key] = &p
	return p, nil
}

func (repo *progressRepository) GetProgress(_ context.Context, userID, videoID string, _ ...core.DBExecutor) (progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.progress[pairKey(userID, videoID)]; ok {
		return *p, nil
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) ListProgress(_ context.Context, userID string, videoIDs []string, _ ...core.DBExecutor) ([]progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]progress.Progress, 0, len(videoIDs))
	for _, id := range videoIDs {
		if p, ok := repo.db.progress[pairKey(userID, id)]; ok {
			out = append(out, *p)
		}
	}
	orderOf := func(videoID string) int {
		if v, ok := repo.db.videos[videoID]; ok {
			return v.OrderIndex
		}
		return 0
	}
	sort.SliceStable(out, func(i, j int) bool { return orderOf(out[i].VideoID) < orderOf(out[j].VideoID) })
	return out, nil
}

func (repo *progressRepository) CreateCompletion(_ context.Context, c progress.Completion, _ ...core.DBExecutor) (progress.Completion, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := pairKey(c.UserID, c.CourseID)
	if existing, ok := repo.db.completions[key]; ok {
		return *existing, nil
	}
	repo.db.completions[key] = &c
	return c, nil
}

func (repo *progressRepository) ListCompletionsWithoutCertificate(_ context.Context, limit int, _ ...core.DBExecutor) ([]progress.Completion, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]progress.Completion, 0)
	for key, c := range repo.db.completions {
		if _, ok := repo.db.certificates[key]; !ok {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (repo *progressRepository) CreateCertificate(_ context.Context, cert progress.Certificate, _ ...core.DBExecutor) (progress.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := pairKey(cert.UserID, cert.CourseID)
	if _, ok := repo.db.certificates[key]; ok {
		return progress.Certificate{}, progress.ErrCertificateExists
	}
	for _, other := range repo.db.certificates {
		if other.Number == cert.Number {
			return progress.Certificate{}, errors.New("certificate number already used")
		}
	}
	repo.db.certificates[key] = &cert
	return repo.certificate(&cert), nil
}

func (repo *progressRepository) GetCertificate(_ context.Context, filter progress.CertificateFilter, _ ...core.DBExecutor) (progress.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.Number != "":
		for _, cert := range repo.db.certificates {
			if cert.Number == filter.Number {
				return repo.certificate(cert), nil
			}
		}
	case filter.UserID != "" && filter.CourseID != "":
		if cert, ok := repo.db.certificates[pairKey(filter.UserID, filter.CourseID)]; ok {
			return repo.certificate(cert), nil
		}
	}
	return progress.Certificate{}, progress.ErrCertificateNotFound
}

func (repo *progressRepository) ListCertificates(_ context.Context, userID string, _ ...core.DBExecutor) ([]progress.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]progress.Certificate, 0)
	for _, cert := range repo.db.certificates {
		if cert.UserID == userID {
			out = append(out, repo.certificate(cert))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.After(out[j].IssuedAt) })
	return out, nil
}
