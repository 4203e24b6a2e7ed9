package progress

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

// racedRepo holds a certificate written by another issuer between the initial lookup and the insert.
type racedRepo struct {
	Repository
	winner  Certificate
	lookups int
	created int
}

func (r *racedRepo) GetCertificate(_ context.Context, filter CertificateFilter, _ ...core.DBExecutor) (Certificate, error) {
	if filter.Number != "" {
		return Certificate{}, ErrCertificateNotFound
	}
	r.lookups++
	if r.lookups == 1 {
		return Certificate{}, ErrCertificateNotFound
	}
	return r.winner, nil
}

func (r *racedRepo) CreateCertificate(_ context.Context, _ Certificate, _ ...core.DBExecutor) (Certificate, error) {
	r.created++
	return Certificate{}, ErrCertificateExists
}

type failingRepo struct {
	racedRepo
}

func (r *failingRepo) CreateCertificate(_ context.Context, _ Certificate, _ ...core.DBExecutor) (Certificate, error) {
	return Certificate{}, errors.New("disk full")
}

func TestService_issue(t *testing.T) {
	winner := Certificate{ID: "c1", UserID: "u1", CourseID: "k1", Number: "AZ-2024-0000CAFE", IssuedAt: time.Now().UTC()}

	t.Run("lost race returns the existing certificate", func(t *testing.T) {
		repo := &racedRepo{winner: winner}
		svc := &Service{repo: repo}
		got, err := svc.issue(context.Background(), "u1", "k1", nil)
		if err != nil {
			t.Fatalf("issue() error = %v", err)
		}
		if got != winner {
			t.Errorf("issue() = %+v; want %+v", got, winner)
		}
		if repo.created != 1 || repo.lookups != 2 {
			t.Errorf("failed! %d inserts and %d lookups; want 1 and 2", repo.created, repo.lookups)
		}
	})

	t.Run("other insert errors are returned", func(t *testing.T) {
		svc := &Service{repo: &failingRepo{racedRepo{winner: winner}}}
		if _, err := svc.issue(context.Background(), "u1", "k1", nil); err == nil || errors.Cause(err) == ErrCertificateExists {
			t.Errorf("issue() error = %v; want the insert error", err)
		}
	})
}
