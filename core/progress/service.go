package progress

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/passcode"
)

const maxNumberAttempts = 10

var (
	// errors
	ErrNotFound            = errors.New("progress not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrCertificateExists   = errors.New("certificate already issued")
	ErrCompletionNotFound  = errors.New("course completion not found")
	ErrNoAccess            = errors.New("you do not have access to this course")
)

type (
	Repository interface {
		// UpsertProgress inserts or updates the (user, video) progress row.
		UpsertProgress(ctx context.Context, p Progress, exec ...core.DBExecutor) (Progress, error)
		GetProgress(ctx context.Context, userID, videoID string, exec ...core.DBExecutor) (Progress, error)
		ListProgress(ctx context.Context, userID string, videoIDs []string, exec ...core.DBExecutor) ([]Progress, error)

		// CreateCompletion is a no-op returning the existing row if the course was already completed.
		CreateCompletion(ctx context.Context, c Completion, exec ...core.DBExecutor) (Completion, error)
		// ListCompletionsWithoutCertificate returns at most limit completions lacking a certificate.
		ListCompletionsWithoutCertificate(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Completion, error)

		// CreateCertificate returns ErrCertificateExists when the (user, course) pair already holds one.
		CreateCertificate(ctx context.Context, cert Certificate, exec ...core.DBExecutor) (Certificate, error)
		GetCertificate(ctx context.Context, filter CertificateFilter, exec ...core.DBExecutor) (Certificate, error)
		ListCertificates(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Certificate, error)
	}

	Service struct {
		repo      Repository
		tx        core.TxRunner
		courses   *course.Service
		passcodes *passcode.Service
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	courses *course.Service,
	passcodes *passcode.Service,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, tx: tx, courses: courses, passcodes: passcodes, logger: logger}
}

// CanAccess reports whether the actor may follow the course: admins, the owning teacher and
// students holding an active pass code for it.
func (svc *Service) CanAccess(ctx context.Context, actor core.Actor, c course.Course) (bool, error) {
	if actor.CanManage(c.TeacherID) {
		return true, nil
	}
	return svc.passcodes.HasAccess(ctx, actor.ID, c.ID)
}

// Record saves the progress of the actor on a video and completes the course when every
// video is completed.
func (svc *Service) Record(ctx context.Context, actor core.Actor, videoID string, rp RecordProgress) (RecordResult, error) {
	video, err := svc.courses.GetVideo(ctx, videoID)
	if err != nil {
		return RecordResult{}, err
	}
	crs, err := svc.courses.Get(ctx, video.CourseID)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "getting course")
	}
	ok, err := svc.CanAccess(ctx, actor, crs)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "checking access")
	}
	if !ok {
		return RecordResult{}, ErrNoAccess
	}

	prev, err := svc.repo.GetProgress(ctx, actor.ID, videoID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return RecordResult{}, errors.Wrap(err, "getting progress")
		}
		prev = Progress{ID: uuid.NewString(), UserID: actor.ID, VideoID: videoID}
	}
	next := merge(prev, rp)
	next.LastWatchedAt = time.Now().UTC()

	p, err := svc.repo.UpsertProgress(ctx, next)
	if err != nil {
		return RecordResult{}, errors.Wrap(err, "saving progress")
	}

	cp, err := svc.CourseProgress(ctx, actor.ID, crs)
	if err != nil {
		return RecordResult{}, err
	}
	res := RecordResult{Progress: p, CourseProgress: cp}
	if cp.Completed && cp.Certificate == nil {
		cert, err := svc.complete(ctx, actor.ID, crs.ID)
		if err != nil {
			return RecordResult{}, err
		}
		res.Certificate = &cert
		res.CourseProgress.Certificate = &cert
	}
	return res, nil
}

// CourseProgress computes the progress of a user over a course.
func (svc *Service) CourseProgress(ctx context.Context, userID string, crs course.Course) (CourseProgress, error) {
	videos, err := svc.courses.ListVideos(ctx, crs.ID, false)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "listing videos")
	}
	cp := CourseProgress{CourseID: crs.ID, CourseTitle: crs.Title, TotalVideos: len(videos), Videos: []Progress{}}
	if len(videos) > 0 {
		ids := make([]string, len(videos))
		for i, v := range videos {
			ids[i] = v.ID
		}
		progresses, err := svc.repo.ListProgress(ctx, userID, ids)
		if err != nil {
			return CourseProgress{}, errors.Wrap(err, "listing progress")
		}
		for _, p := range progresses {
			if p.IsCompleted {
				cp.CompletedVideos++
			}
		}
		cp.Videos = progresses
	}
	cp.Percent = coursePercent(cp.CompletedVideos, cp.TotalVideos)
	cp.Completed = cp.TotalVideos > 0 && cp.CompletedVideos == cp.TotalVideos

	cert, err := svc.repo.GetCertificate(ctx, CertificateFilter{UserID: userID, CourseID: crs.ID})
	if err == nil {
		cp.Certificate = &cert
	} else if errors.Cause(err) != ErrCertificateNotFound {
		return CourseProgress{}, errors.Wrap(err, "getting certificate")
	}
	return cp, nil
}

// Overview computes the progress of a user over several courses.
func (svc *Service) Overview(ctx context.Context, userID string, courseIDs []string) ([]CourseProgress, error) {
	out := make([]CourseProgress, 0, len(courseIDs))
	for _, id := range courseIDs {
		crs, err := svc.courses.Get(ctx, id)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				continue
			}
			return nil, errors.Wrap(err, "getting course")
		}
		cp, err := svc.CourseProgress(ctx, userID, crs)
		if err != nil {
			return nil, err
		}
		cp.Videos = nil
		out = append(out, cp)
	}
	return out, nil
}

// complete records the course completion and issues its certificate, both at most once.
func (svc *Service) complete(ctx context.Context, userID, courseID string) (Certificate, error) {
	var cert Certificate
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		_, err := svc.repo.CreateCompletion(ctx, Completion{
			ID:          uuid.NewString(),
			UserID:      userID,
			CourseID:    courseID,
			CompletedAt: time.Now().UTC(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "creating completion")
		}
		cert, err = svc.issue(ctx, userID, courseID, exec)
		return err
	})
	return cert, err
}

func (svc *Service) issue(ctx context.Context, userID, courseID string, exec core.DBExecutor) (Certificate, error) {
	existing, err := svc.repo.GetCertificate(ctx, CertificateFilter{UserID: userID, CourseID: courseID}, exec)
	if err == nil {
		return existing, nil
	} else if errors.Cause(err) != ErrCertificateNotFound {
		return Certificate{}, errors.Wrap(err, "getting certificate")
	}

	now := time.Now().UTC()
	number, err := svc.newNumber(ctx, now, exec)
	if err != nil {
		return Certificate{}, err
	}
	cert, err := svc.repo.CreateCertificate(ctx, Certificate{
		ID:       uuid.NewString(),
		UserID:   userID,
		CourseID: courseID,
		Number:   number,
		IssuedAt: now,
	}, exec)
	if errors.Cause(err) == ErrCertificateExists {
		// issued concurrently
		existing, err = svc.repo.GetCertificate(ctx, CertificateFilter{UserID: userID, CourseID: courseID}, exec)
		return existing, errors.Wrap(err, "getting concurrent certificate")
	} else if err != nil {
		return Certificate{}, errors.Wrap(err, "creating certificate")
	}
	svc.logger.Info(fmt.Sprintf("certificate %s issued", cert.Number), map[string]interface{}{"user": userID, "course": courseID})
	return cert, nil
}

// newNumber draws a certificate number of the form AZ-<yyyy>-<8 hex> not used yet.
func (svc *Service) newNumber(ctx context.Context, at time.Time, exec core.DBExecutor) (string, error) {
	for i := 0; i < maxNumberAttempts; i++ {
		number, err := certificateNumber(at)
		if err != nil {
			return "", err
		}
		_, err = svc.repo.GetCertificate(ctx, CertificateFilter{Number: number}, exec)
		if errors.Cause(err) == ErrCertificateNotFound {
			return number, nil
		} else if err != nil {
			return "", errors.Wrap(err, "checking certificate number")
		}
	}
	return "", errors.New("could not generate a unique certificate number")
}

func certificateNumber(at time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return fmt.Sprintf("AZ-%d-%s", at.Year(), strings.ToUpper(hex.EncodeToString(b))), nil
}

func (svc *Service) ListCertificates(ctx context.Context, userID string) ([]Certificate, error) {
	return svc.repo.ListCertificates(ctx, userID)
}

// GetCertificate looks a certificate up by number, for public verification.
func (svc *Service) GetCertificate(ctx context.Context, number string) (Certificate, error) {
	number = core.CleanString(strings.ToUpper(number))
	if number == "" {
		return Certificate{}, ErrCertificateNotFound
	}
	return svc.repo.GetCertificate(ctx, CertificateFilter{Number: number})
}

// IssueMissingCertificates issues the certificates of completions that lack one and returns how
// many were issued.
func (svc *Service) IssueMissingCertificates(ctx context.Context) (int, error) {
	const batch = 100
	var issued int
	for {
		completions, err := svc.repo.ListCompletionsWithoutCertificate(ctx, batch)
		if err != nil {
			return issued, errors.Wrap(err, "listing completions")
		}
		for _, c := range completions {
			err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
				_, err := svc.issue(ctx, c.UserID, c.CourseID, exec)
				return err
			})
			if err != nil {
				return issued, err
			}
			issued++
		}
		if len(completions) < batch {
			return issued, nil
		}
	}
}
