package inmemdb

import (
	"context"
	"sort"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// course joins the teacher name and the video count; must be called with the lock held.
func (repo *courseRepository) course(c *course.Course) course.Course {
	out := *c
	out.TeacherName = repo.db.fullName(c.TeacherID)
	out.VideoCount = 0
	for _, v := range repo.db.videos {
		if v.CourseID == c.ID {
			out.VideoCount++
		}
	}
	return out
}

// Courses

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.TeacherName, c.VideoCount = "", 0
	repo.db.courses[c.ID] = &c
	return repo.course(&c), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	c.CreatedAt = orig.CreatedAt
	repo.db.courses[c.ID] = &c
	return repo.course(&c), nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for vid, v := range repo.db.videos {
		if v.CourseID == id {
			repo.deleteVideo(vid)
		}
	}
	for _, pc := range repo.db.passCodes {
		ids := pc.CourseIDs[:0]
		for _, cid := range pc.CourseIDs {
			if cid != id {
				ids = append(ids, cid)
			}
		}
		pc.CourseIDs = ids
	}
	for key, c := range repo.db.completions {
		if c.CourseID == id {
			delete(repo.db.completions, key)
		}
	}
	for key, cert := range repo.db.certificates {
		if cert.CourseID == id {
			delete(repo.db.certificates, key)
		}
	}
	return nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return repo.course(c), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *course.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if filter != nil {
			if !matches(filter.Search, c.Title, c.TitleEn, c.Description) {
				continue
			}
			if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
				continue
			}
			if filter.IsPublished != nil && c.IsPublished != *filter.IsPublished {
				continue
			}
			if filter.IsApproved != nil && c.IsApproved != *filter.IsApproved {
				continue
			}
			if filter.CourseType != "" && c.CourseType != filter.CourseType {
				continue
			}
			if filter.IDs != nil && !contains(filter.IDs, c.ID) {
				continue
			}
		}
		courses = append(courses, repo.course(c))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

// Videos

func (repo *courseRepository) CreateVideo(_ context.Context, v course.Video, _ ...core.DBExecutor) (course.Video, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[v.CourseID]; !ok {
		return course.Video{}, course.ErrNotFound
	}
	v.Materials = nil
	repo.db.videos[v.ID] = &v
	return v, nil
}

func (repo *courseRepository) UpdateVideo(_ context.Context, v course.Video, _ ...core.DBExecutor) (course.Video, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.videos[v.ID]
	if !ok {
		return course.Video{}, course.ErrVideoNotFound
	}
	v.CourseID, v.CreatedAt, v.Materials = orig.CourseID, orig.CreatedAt, nil
	repo.db.videos[v.ID] = &v
	return v, nil
}

// deleteVideo cascades to materials and progress; must be called with the lock held.
func (repo *courseRepository) deleteVideo(id string) {
	delete(repo.db.videos, id)
	for mid, m := range repo.db.materials {
		if m.VideoID == id {
			delete(repo.db.materials, mid)
		}
	}
	for key, p := range repo.db.progress {
		if p.VideoID == id {
			delete(repo.db.progress, key)
		}
	}
}

func (repo *courseRepository) DeleteVideo(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.videos[id]; !ok {
		return course.ErrVideoNotFound
	}
	repo.deleteVideo(id)
	return nil
}

func (repo *courseRepository) GetVideo(_ context.Context, id string, _ ...core.DBExecutor) (course.Video, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if v, ok := repo.db.videos[id]; ok {
		return *v, nil
	}
	return course.Video{}, course.ErrVideoNotFound
}

func (repo *courseRepository) ListVideos(_ context.Context, courseIDs []string, _ ...core.DBExecutor) ([]course.Video, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	videos := make([]course.Video, 0)
	for _, v := range repo.db.videos {
		if contains(courseIDs, v.CourseID) {
			videos = append(videos, *v)
		}
	}
	sort.Slice(videos, func(i, j int) bool {
		a, b := videos[i], videos[j]
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return videos, nil
}

func (repo *courseRepository) MaxVideoOrder(_ context.Context, courseID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	max := -1
	for _, v := range repo.db.videos {
		if v.CourseID == courseID && v.OrderIndex > max {
			max = v.OrderIndex
		}
	}
	return max, nil
}

// Materials

func (repo *courseRepository) CreateMaterial(_ context.Context, m course.Material, _ ...core.DBExecutor) (course.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.videos[m.VideoID]; !ok {
		return course.Material{}, course.ErrVideoNotFound
	}
	repo.db.materials[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) UpdateMaterial(_ context.Context, m course.Material, _ ...core.DBExecutor) (course.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.materials[m.ID]
	if !ok {
		return course.Material{}, course.ErrMaterialNotFound
	}
	m.VideoID, m.CreatedAt = orig.VideoID, orig.CreatedAt
	repo.db.materials[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) DeleteMaterial(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.materials[id]; !ok {
		return course.ErrMaterialNotFound
	}
	delete(repo.db.materials, id)
	return nil
}

func (repo *courseRepository) GetMaterial(_ context.Context, id string, _ ...core.DBExecutor) (course.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.materials[id]; ok {
		return *m, nil
	}
	return course.Material{}, course.ErrMaterialNotFound
}

func (repo *courseRepository) ListMaterials(_ context.Context, videoIDs []string, _ ...core.DBExecutor) ([]course.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	materials := make([]course.Material, 0)
	for _, m := range repo.db.materials {
		if contains(videoIDs, m.VideoID) {
			materials = append(materials, *m)
		}
	}
	sort.Slice(materials, func(i, j int) bool {
		a, b := materials[i], materials[j]
		if a.VideoID != b.VideoID {
			return a.VideoID < b.VideoID
		}
		if a.OrderIndex != b.OrderIndex {
			return a.OrderIndex < b.OrderIndex
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return materials, nil
}

func (repo *courseRepository) MaxMaterialOrder(_ context.Context, videoID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	max := -1
	for _, m := range repo.db.materials {
		if m.VideoID == videoID && m.OrderIndex > max {
			max = m.OrderIndex
		}
	}
	return max, nil
}
