package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
)

const courseSelect = `
SELECT c.id, c.title, c.title_en, c.description, c.price, c.thumbnail_url, c.is_published, c.is_approved,
       c.teacher_id, COALESCE(p.full_name, '') AS teacher_name, c.course_type, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM videos v WHERE v.course_id = c.id) AS video_count
FROM courses c
LEFT JOIN profiles p ON p.user_id = c.teacher_id`

const videoSelect = `
SELECT id, course_id, title, video_url, video_type, order_index, duration_seconds, created_at FROM videos`

const materialSelect = `
SELECT id, video_id, title, material_type, material_url, note_content, order_index, created_at FROM video_materials`

var courseOrderings = map[string]string{
	"created_at": "c.created_at",
	"updated_at": "c.updated_at",
	"title":      "c.title",
	"price":      "c.price",
}

type (
	courseRow struct {
		ID           string      `db:"id"`
		Title        string      `db:"title"`
		TitleEn      null.String `db:"title_en"`
		Description  null.String `db:"description"`
		Price        int64       `db:"price"`
		ThumbnailURL null.String `db:"thumbnail_url"`
		IsPublished  bool        `db:"is_published"`
		IsApproved   bool        `db:"is_approved"`
		TeacherID    null.String `db:"teacher_id"`
		TeacherName  string      `db:"teacher_name"`
		CourseType   string      `db:"course_type"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
		VideoCount   int         `db:"video_count"`
	}

	videoRow struct {
		ID              string    `db:"id"`
		CourseID        string    `db:"course_id"`
		Title           string    `db:"title"`
		VideoURL        string    `db:"video_url"`
		VideoType       string    `db:"video_type"`
		OrderIndex      int       `db:"order_index"`
		DurationSeconds int       `db:"duration_seconds"`
		CreatedAt       time.Time `db:"created_at"`
	}

	materialRow struct {
		ID           string      `db:"id"`
		VideoID      string      `db:"video_id"`
		Title        string      `db:"title"`
		MaterialType string      `db:"material_type"`
		MaterialURL  null.String `db:"material_url"`
		NoteContent  null.String `db:"note_content"`
		OrderIndex   int         `db:"order_index"`
		CreatedAt    time.Time   `db:"created_at"`
	}
)

func (row courseRow) toCourse() course.Course {
	return course.Course{
		ID:           row.ID,
		Title:        row.Title,
		TitleEn:      row.TitleEn.String,
		Description:  row.Description.String,
		Price:        row.Price,
		ThumbnailURL: row.ThumbnailURL.String,
		IsPublished:  row.IsPublished,
		IsApproved:   row.IsApproved,
		TeacherID:    row.TeacherID.String,
		TeacherName:  row.TeacherName,
		CourseType:   row.CourseType,
		VideoCount:   row.VideoCount,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (row videoRow) toVideo() course.Video {
	return course.Video{
		ID:              row.ID,
		CourseID:        row.CourseID,
		Title:           row.Title,
		VideoURL:        row.VideoURL,
		VideoType:       row.VideoType,
		OrderIndex:      row.OrderIndex,
		DurationSeconds: row.DurationSeconds,
		CreatedAt:       row.CreatedAt.UTC(),
	}
}

func (row materialRow) toMaterial() course.Material {
	return course.Material{
		ID:           row.ID,
		VideoID:      row.VideoID,
		Title:        row.Title,
		MaterialType: row.MaterialType,
		MaterialURL:  row.MaterialURL.String,
		NoteContent:  row.NoteContent.String,
		OrderIndex:   row.OrderIndex,
		CreatedAt:    row.CreatedAt.UTC(),
	}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{repository{db: db}}
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO courses (id, title, title_en, description, price, thumbnail_url, is_published, is_approved, teacher_id, course_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		c.ID, c.Title, nullString(c.TitleEn), nullString(c.Description), c.Price, nullString(c.ThumbnailURL),
		c.IsPublished, c.IsApproved, nullString(c.TeacherID), c.CourseType, c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.GetCourse(ctx, c.ID, exec...)
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE courses
		SET title = ?, title_en = ?, description = ?, price = ?, thumbnail_url = ?, is_published = ?, is_approved = ?,
		    teacher_id = ?, course_type = ?, updated_at = ?
		WHERE id = ?`),
		c.Title, nullString(c.TitleEn), nullString(c.Description), c.Price, nullString(c.ThumbnailURL), c.IsPublished,
		c.IsApproved, nullString(c.TeacherID), c.CourseType, c.UpdatedAt.UTC(), c.ID,
	)
	if err = checkAffected(res, err, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID, exec...)
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM courses WHERE id = ?"), id)
	return checkAffected(res, err, course.ErrNotFound, "deleting course")
}

func (repo courseRepository) GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (course.Course, error) {
	ex := repo.getExec(exec)
	var row courseRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(courseSelect+" WHERE c.id = ?"), id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "getting course")
	}
	return row.toCourse(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter *course.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "c.title", "c.title_en", "c.description")
		if filter.TeacherID != "" {
			w.add("c.teacher_id = ?", filter.TeacherID)
		}
		if filter.IsPublished != nil {
			w.add("c.is_published = ?", *filter.IsPublished)
		}
		if filter.IsApproved != nil {
			w.add("c.is_approved = ?", *filter.IsApproved)
		}
		if filter.CourseType != "" {
			w.add("c.course_type = ?", filter.CourseType)
		}
		if len(filter.IDs) > 0 {
			w.add("c.id IN (?)", filter.IDs)
		}
	}
	query := courseSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, courseOrderings, "c.created_at DESC")

	var rows []courseRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

// Videos

func (repo courseRepository) CreateVideo(ctx context.Context, v course.Video, exec ...core.DBExecutor) (course.Video, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO videos (id, course_id, title, video_url, video_type, order_index, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.CourseID, v.Title, v.VideoURL, v.VideoType, v.OrderIndex, v.DurationSeconds, v.CreatedAt.UTC(),
	)
	if err != nil {
		return course.Video{}, errors.Wrap(err, "inserting video")
	}
	return v, nil
}

func (repo courseRepository) UpdateVideo(ctx context.Context, v course.Video, exec ...core.DBExecutor) (course.Video, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE videos SET title = ?, video_url = ?, video_type = ?, order_index = ?, duration_seconds = ? WHERE id = ?`),
		v.Title, v.VideoURL, v.VideoType, v.OrderIndex, v.DurationSeconds, v.ID,
	)
	if err = checkAffected(res, err, course.ErrVideoNotFound, "updating video"); err != nil {
		return course.Video{}, err
	}
	return v, nil
}

func (repo courseRepository) DeleteVideo(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM videos WHERE id = ?"), id)
	return checkAffected(res, err, course.ErrVideoNotFound, "deleting video")
}

func (repo courseRepository) GetVideo(ctx context.Context, id string, exec ...core.DBExecutor) (course.Video, error) {
	ex := repo.getExec(exec)
	var row videoRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(videoSelect+" WHERE id = ?"), id); err != nil {
		return course.Video{}, trapNoRowsErr(err, course.ErrVideoNotFound, "getting video")
	}
	return row.toVideo(), nil
}

func (repo courseRepository) ListVideos(ctx context.Context, courseIDs []string, exec ...core.DBExecutor) ([]course.Video, error) {
	videos := make([]course.Video, 0)
	if len(courseIDs) == 0 {
		return videos, nil
	}
	var rows []videoRow
	query := videoSelect + " WHERE course_id IN (?) ORDER BY course_id, order_index, created_at"
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, courseIDs); err != nil {
		return nil, errors.Wrap(err, "listing videos")
	}
	for _, row := range rows {
		videos = append(videos, row.toVideo())
	}
	return videos, nil
}

func (repo courseRepository) MaxVideoOrder(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var max int
	err := ex.GetContext(ctx, &max, ex.Rebind("SELECT COALESCE(MAX(order_index), -1) FROM videos WHERE course_id = ?"), courseID)
	return max, errors.Wrap(err, "getting max video order")
}

// Materials

func (repo courseRepository) CreateMaterial(ctx context.Context, m course.Material, exec ...core.DBExecutor) (course.Material, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO video_materials (id, video_id, title, material_type, material_url, note_content, order_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		m.ID, m.VideoID, m.Title, m.MaterialType, nullString(m.MaterialURL), nullString(m.NoteContent), m.OrderIndex, m.CreatedAt.UTC(),
	)
	if err != nil {
		return course.Material{}, errors.Wrap(err, "inserting material")
	}
	return m, nil
}

func (repo courseRepository) UpdateMaterial(ctx context.Context, m course.Material, exec ...core.DBExecutor) (course.Material, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE video_materials SET title = ?, material_url = ?, note_content = ?, order_index = ? WHERE id = ?`),
		m.Title, nullString(m.MaterialURL), nullString(m.NoteContent), m.OrderIndex, m.ID,
	)
	if err = checkAffected(res, err, course.ErrMaterialNotFound, "updating material"); err != nil {
		return course.Material{}, err
	}
	return m, nil
}

func (repo courseRepository) DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM video_materials WHERE id = ?"), id)
	return checkAffected(res, err, course.ErrMaterialNotFound, "deleting material")
}

func (repo courseRepository) GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (course.Material, error) {
	ex := repo.getExec(exec)
	var row materialRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(materialSelect+" WHERE id = ?"), id); err != nil {
		return course.Material{}, trapNoRowsErr(err, course.ErrMaterialNotFound, "getting material")
	}
	return row.toMaterial(), nil
}

func (repo courseRepository) ListMaterials(ctx context.Context, videoIDs []string, exec ...core.DBExecutor) ([]course.Material, error) {
	materials := make([]course.Material, 0)
	if len(videoIDs) == 0 {
		return materials, nil
	}
	var rows []materialRow
	query := materialSelect + " WHERE video_id IN (?) ORDER BY video_id, order_index, created_at"
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, videoIDs); err != nil {
		return nil, errors.Wrap(err, "listing materials")
	}
	for _, row := range rows {
		materials = append(materials, row.toMaterial())
	}
	return materials, nil
}

func (repo courseRepository) MaxMaterialOrder(ctx context.Context, videoID string, exec ...core.DBExecutor) (int, error) {
	ex := repo.getExec(exec)
	var max int
	err := ex.GetContext(ctx, &max, ex.Rebind("SELECT COALESCE(MAX(order_index), -1) FROM video_materials WHERE video_id = ?"), videoID)
	return max, errors.Wrap(err, "getting max material order")
}

// checkAffected wraps err, or returns notFound when no row was affected.
func checkAffected(res sql.Result, err, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, msg)
	} else if n == 0 {
		return notFound
	}
	return nil
}
