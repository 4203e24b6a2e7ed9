package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/progress"
)

const certificateSelect = `
SELECT ct.id, ct.user_id, COALESCE(p.full_name, '') AS user_name, ct.course_id, c.title AS course_title,
       ct.certificate_number, ct.issued_at
FROM certificates ct
JOIN courses c ON c.id = ct.course_id
LEFT JOIN profiles p ON p.user_id = ct.user_id`

type (
	progressRow struct {
		ID              string    `db:"id"`
		UserID          string    `db:"user_id"`
		VideoID         string    `db:"video_id"`
		IsCompleted     bool      `db:"is_completed"`
		ProgressPercent int       `db:"progress_percent"`
		LastWatchedAt   time.Time `db:"last_watched_at"`
	}

	completionRow struct {
		ID          string    `db:"id"`
		UserID      string    `db:"user_id"`
		CourseID    string    `db:"course_id"`
		CompletedAt time.Time `db:"completed_at"`
	}

	certificateRow struct {
		ID          string    `db:"id"`
		UserID      string    `db:"user_id"`
		UserName    string    `db:"user_name"`
		CourseID    string    `db:"course_id"`
		CourseTitle string    `db:"course_title"`
		Number      string    `db:"certificate_number"`
		IssuedAt    time.Time `db:"issued_at"`
	}
)

func (row progressRow) toProgress() progress.Progress {
	return progress.Progress{
		ID:              row.ID,
		UserID:          row.UserID,
		VideoID:         row.VideoID,
		IsCompleted:     row.IsCompleted,
		ProgressPercent: row.ProgressPercent,
		LastWatchedAt:   row.LastWatchedAt.UTC(),
	}
}

func (row completionRow) toCompletion() progress.Completion {
	return progress.Completion{ID: row.ID, UserID: row.UserID, CourseID: row.CourseID, CompletedAt: row.CompletedAt.UTC()}
}

func (row certificateRow) toCertificate() progress.Certificate {
	return progress.Certificate{
		ID:          row.ID,
		UserID:      row.UserID,
		UserName:    row.UserName,
		CourseID:    row.CourseID,
		CourseTitle: row.CourseTitle,
		Number:      row.Number,
		IssuedAt:    row.IssuedAt.UTC(),
	}
}

type progressRepository struct {
	repository
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{repository{db: db}}
}

func (repo progressRepository) UpsertProgress(ctx context.Context, p progress.Progress, exec ...core.DBExecutor) (progress.Progress, error) {
	ex := repo.getExec(exec)
	var row progressRow
	err := ex.GetContext(ctx, &row, ex.Rebind(`
		INSERT INTO video_progress (id, user_id, video_id, is_completed, progress_percent, last_watched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, video_id) DO UPDATE
		SET is_completed = EXCLUDED.is_completed, progress_percent = EXCLUDED.progress_percent, last_watched_at = EXCLUDED.last_watched_at
		RETURNING id, user_id, video_id, is_completed, progress_percent, last_watched_at`),
		p.ID, p.UserID, p.VideoID, p.IsCompleted, p.ProgressPercent, p.LastWatchedAt.UTC(),
	)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "upserting progress")
	}
	return row.toProgress(), nil
}

func (repo progressRepository) GetProgress(ctx context.Context, userID, videoID string, exec ...core.DBExecutor) (progress.Progress, error) {
	ex := repo.getExec(exec)
	var row progressRow
	err := ex.GetContext(ctx, &row, ex.Rebind(`
		SELECT id, user_id, video_id, is_completed, progress_percent, last_watched_at
		FROM video_progress WHERE user_id = ? AND video_id = ?`), userID, videoID)
	if err != nil {
		return progress.Progress{}, trapNoRowsErr(err, progress.ErrNotFound, "getting progress")
	}
	return row.toProgress(), nil
}

func (repo progressRepository) ListProgress(ctx context.Context, userID string, videoIDs []string, exec ...core.DBExecutor) ([]progress.Progress, error) {
	out := make([]progress.Progress, 0, len(videoIDs))
	if len(videoIDs) == 0 {
		return out, nil
	}
	var rows []progressRow
	err := selectIn(ctx, repo.getExec(exec), &rows, `
		SELECT vp.id, vp.user_id, vp.video_id, vp.is_completed, vp.progress_percent, vp.last_watched_at
		FROM video_progress vp
		JOIN videos v ON v.id = vp.video_id
		WHERE vp.user_id = ? AND vp.video_id IN (?)
		ORDER BY v.order_index`, userID, videoIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing progress")
	}
	for _, row := range rows {
		out = append(out, row.toProgress())
	}
	return out, nil
}

func (repo progressRepository) CreateCompletion(ctx context.Context, c progress.Completion, exec ...core.DBExecutor) (progress.Completion, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO course_completions (id, user_id, course_id, completed_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING`),
		c.ID, c.UserID, c.CourseID, c.CompletedAt.UTC(),
	)
	if err != nil {
		return progress.Completion{}, errors.Wrap(err, "inserting completion")
	}
	var row completionRow
	err = ex.GetContext(ctx, &row, ex.Rebind(`
		SELECT id, user_id, course_id, completed_at FROM course_completions WHERE user_id = ? AND course_id = ?`),
		c.UserID, c.CourseID)
	if err != nil {
		return progress.Completion{}, trapNoRowsErr(err, progress.ErrCompletionNotFound, "getting completion")
	}
	return row.toCompletion(), nil
}

func (repo progressRepository) ListCompletionsWithoutCertificate(ctx context.Context, limit int, exec ...core.DBExecutor) ([]progress.Completion, error) {
	ex := repo.getExec(exec)
	var rows []completionRow
	err := ex.SelectContext(ctx, &rows, ex.Rebind(`
		SELECT cc.id, cc.user_id, cc.course_id, cc.completed_at
		FROM course_completions cc
		WHERE NOT EXISTS (SELECT 1 FROM certificates ct WHERE ct.user_id = cc.user_id AND ct.course_id = cc.course_id)
		ORDER BY cc.completed_at
		LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing completions without certificate")
	}
	out := make([]progress.Completion, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCompletion())
	}
	return out, nil
}

func (repo progressRepository) CreateCertificate(ctx context.Context, cert progress.Certificate, exec ...core.DBExecutor) (progress.Certificate, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO certificates (id, user_id, course_id, certificate_number, issued_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, course_id) DO NOTHING`),
		cert.ID, cert.UserID, cert.CourseID, cert.Number, cert.IssuedAt.UTC(),
	)
	if err = checkAffected(res, err, progress.ErrCertificateExists, "inserting certificate"); err != nil {
		return progress.Certificate{}, err
	}
	return repo.GetCertificate(ctx, progress.CertificateFilter{Number: cert.Number}, exec...)
}

func (repo progressRepository) GetCertificate(ctx context.Context, filter progress.CertificateFilter, exec ...core.DBExecutor) (progress.Certificate, error) {
	var w where
	switch {
	case filter.Number != "":
		w.add("ct.certificate_number = ?", filter.Number)
	case filter.UserID != "" && filter.CourseID != "":
		w.add("ct.user_id = ?", filter.UserID)
		w.add("ct.course_id = ?", filter.CourseID)
	default:
		return progress.Certificate{}, progress.ErrCertificateNotFound
	}
	ex := repo.getExec(exec)
	var row certificateRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(certificateSelect+w.String()), w.args...); err != nil {
		return progress.Certificate{}, trapNoRowsErr(err, progress.ErrCertificateNotFound, "getting certificate")
	}
	return row.toCertificate(), nil
}

func (repo progressRepository) ListCertificates(ctx context.Context, userID string, exec ...core.DBExecutor) ([]progress.Certificate, error) {
	ex := repo.getExec(exec)
	var rows []certificateRow
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(certificateSelect+" WHERE ct.user_id = ? ORDER BY ct.issued_at DESC"), userID); err != nil {
		return nil, errors.Wrap(err, "listing certificates")
	}
	out := make([]progress.Certificate, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toCertificate())
	}
	return out, nil
}
