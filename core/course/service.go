package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

var (
	// errors
	ErrNotFound         = errors.New("course not found")
	ErrVideoNotFound    = errors.New("video not found")
	ErrMaterialNotFound = errors.New("material not found")
	invalidOrderText    = "video_ids must list every video of the course exactly once"
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, c Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetCourse(ctx context.Context, id string, exec ...core.DBExecutor) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		QueryCourses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)

		CreateVideo(ctx context.Context, v Video, exec ...core.DBExecutor) (Video, error)
		UpdateVideo(ctx context.Context, v Video, exec ...core.DBExecutor) (Video, error)
		DeleteVideo(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetVideo(ctx context.Context, id string, exec ...core.DBExecutor) (Video, error)
		// ListVideos returns the videos of the given courses ordered by order_index.
		ListVideos(ctx context.Context, courseIDs []string, exec ...core.DBExecutor) ([]Video, error)
		// MaxVideoOrder returns the highest order_index of a course, -1 if it has no video.
		MaxVideoOrder(ctx context.Context, courseID string, exec ...core.DBExecutor) (int, error)

		CreateMaterial(ctx context.Context, m Material, exec ...core.DBExecutor) (Material, error)
		UpdateMaterial(ctx context.Context, m Material, exec ...core.DBExecutor) (Material, error)
		DeleteMaterial(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (Material, error)
		ListMaterials(ctx context.Context, videoIDs []string, exec ...core.DBExecutor) ([]Material, error)
		MaxMaterialOrder(ctx context.Context, videoID string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo Repository
		tx   core.TxRunner
	}
)

func NewService(repo Repository, tx core.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

// Courses

// Create creates a course. Courses created by teachers are theirs and wait for an admin approval.
func (svc *Service) Create(ctx context.Context, actor core.Actor, nc NewCourse) (Course, error) {
	if !(actor.Admin || actor.Teacher) {
		return Course{}, core.ErrForbidden
	}
	now := time.Now().UTC()
	c := Course{
		ID:           uuid.NewString(),
		Title:        nc.Title,
		TitleEn:      nc.TitleEn,
		Description:  nc.Description,
		Price:        nc.Price,
		ThumbnailURL: nc.ThumbnailURL,
		CourseType:   nc.CourseType,
		TeacherID:    actor.ID,
		IsApproved:   actor.Admin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if actor.Admin && nc.TeacherID != "" {
		c.TeacherID = nc.TeacherID
	}
	return svc.repo.CreateCourse(ctx, c)
}

func (svc *Service) Get(ctx context.Context, id string) (Course, error) {
	if !core.IsUUID(id) {
		return Course{}, ErrNotFound
	}
	return svc.repo.GetCourse(ctx, id)
}

// View returns a course the actor may see: public courses, or any course the actor manages.
func (svc *Service) View(ctx context.Context, actor core.Actor, id string) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !c.IsPublic() && !actor.CanManage(c.TeacherID) {
		return Course{}, ErrNotFound
	}
	return c, nil
}

// getManaged returns the course if the actor may mutate it.
func (svc *Service) getManaged(ctx context.Context, actor core.Actor, id string) (Course, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !actor.CanManage(c.TeacherID) {
		return Course{}, core.ErrForbidden
	}
	return c, nil
}

// Query lists courses. Admins see everything, teachers also see their own courses; anybody else
// is restricted to the public catalog.
func (svc *Service) Query(ctx context.Context, actor core.Actor, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if !actor.Admin && !(actor.Teacher && filter.TeacherID != "" && actor.Owns(filter.TeacherID)) {
		published, approved := true, true
		filter.IsPublished, filter.IsApproved = &published, &approved
	}
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// ListPublic lists the published and approved courses.
func (svc *Service) ListPublic(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	return svc.Query(ctx, core.Actor{}, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, actor core.Actor, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	uc.apply(&c, actor.Admin)
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// Delete deletes a course with its videos, materials and progress.
func (svc *Service) Delete(ctx context.Context, actor core.Actor, id string) error {
	if _, err := svc.getManaged(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *Service) SetPublished(ctx context.Context, actor core.Actor, id string, published bool) (Course, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	c.IsPublished = published
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// SetApproval approves or rejects a course. Rejecting also unpublishes it.
func (svc *Service) SetApproval(ctx context.Context, actor core.Actor, id string, approved bool) (Course, error) {
	if !actor.Admin {
		return Course{}, core.ErrForbidden
	}
	c, err := svc.Get(ctx, id)
	if err != nil {
		return Course{}, err
	}
	c.IsApproved = approved
	if !approved {
		c.IsPublished = false
	}
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *Service) SetThumbnail(ctx context.Context, actor core.Actor, id, url string) (Course, error) {
	c, err := svc.getManaged(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}
	c.ThumbnailURL = url
	c.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

// Videos

func (svc *Service) GetVideo(ctx context.Context, id string) (Video, error) {
	if !core.IsUUID(id) {
		return Video{}, ErrVideoNotFound
	}
	return svc.repo.GetVideo(ctx, id)
}

// ListVideos returns the videos of a course ordered by order_index, with their materials if asked.
func (svc *Service) ListVideos(ctx context.Context, courseID string, withMaterials bool) ([]Video, error) {
	videos, err := svc.repo.ListVideos(ctx, []string{courseID})
	if err != nil {
		return nil, errors.Wrap(err, "listing videos")
	}
	if !withMaterials || len(videos) == 0 {
		return videos, nil
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}
	materials, err := svc.repo.ListMaterials(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "listing materials")
	}
	byVideo := make(map[string][]Material, len(videos))
	for _, m := range materials {
		byVideo[m.VideoID] = append(byVideo[m.VideoID], m)
	}
	for i := range videos {
		videos[i].Materials = byVideo[videos[i].ID]
	}
	return videos, nil
}

// CountVideos returns the number of videos per course.
func (svc *Service) CountVideos(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}
	videos, err := svc.repo.ListVideos(ctx, courseIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing videos")
	}
	for _, v := range videos {
		counts[v.CourseID]++
	}
	return counts, nil
}

// AddVideo appends a video to a course; order_index defaults to max+1.
func (svc *Service) AddVideo(ctx context.Context, actor core.Actor, courseID string, nv NewVideo) (Video, error) {
	if _, err := svc.getManaged(ctx, actor, courseID); err != nil {
		return Video{}, err
	}
	v := Video{
		ID:              uuid.NewString(),
		CourseID:        courseID,
		Title:           nv.Title,
		VideoURL:        nv.VideoURL,
		VideoType:       nv.VideoType,
		DurationSeconds: nv.DurationSeconds,
		CreatedAt:       time.Now().UTC(),
	}
	if nv.OrderIndex != nil {
		v.OrderIndex = *nv.OrderIndex
	} else {
		max, err := svc.repo.MaxVideoOrder(ctx, courseID)
		if err != nil {
			return Video{}, errors.Wrap(err, "getting max order")
		}
		v.OrderIndex = max + 1
	}
	return svc.repo.CreateVideo(ctx, v)
}

// getManagedVideo returns the video if the actor may mutate its course.
func (svc *Service) getManagedVideo(ctx context.Context, actor core.Actor, id string) (Video, error) {
	v, err := svc.GetVideo(ctx, id)
	if err != nil {
		return Video{}, err
	}
	if _, err = svc.getManaged(ctx, actor, v.CourseID); err != nil {
		return Video{}, err
	}
	return v, nil
}

func (svc *Service) UpdateVideo(ctx context.Context, actor core.Actor, id string, uv UpdateVideo) (Video, error) {
	v, err := svc.getManagedVideo(ctx, actor, id)
	if err != nil {
		return Video{}, err
	}
	if uv.Title != "" {
		v.Title = uv.Title
	}
	if uv.VideoURL != "" {
		v.VideoURL = uv.VideoURL
	}
	if uv.VideoType != "" {
		v.VideoType = uv.VideoType
	}
	if uv.OrderIndex != nil {
		v.OrderIndex = *uv.OrderIndex
	}
	if uv.DurationSeconds != nil {
		v.DurationSeconds = *uv.DurationSeconds
	}
	return svc.repo.UpdateVideo(ctx, v)
}

func (svc *Service) DeleteVideo(ctx context.Context, actor core.Actor, id string) error {
	if _, err := svc.getManagedVideo(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteVideo(ctx, id)
}

// ReorderVideos sets order_index to the position of each video in videoIDs.
func (svc *Service) ReorderVideos(ctx context.Context, actor core.Actor, courseID string, videoIDs []string) ([]Video, error) {
	if _, err := svc.getManaged(ctx, actor, courseID); err != nil {
		return nil, err
	}
	videos, err := svc.repo.ListVideos(ctx, []string{courseID})
	if err != nil {
		return nil, errors.Wrap(err, "listing videos")
	}
	byID := make(map[string]Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	if len(videoIDs) != len(byID) {
		return nil, core.NewFieldError("video_ids", invalidOrderText)
	}
	seen := make(map[string]bool, len(videoIDs))
	for _, id := range videoIDs {
		if _, ok := byID[id]; !ok || seen[id] {
			return nil, core.NewFieldError("video_ids", invalidOrderText)
		}
		seen[id] = true
	}

	err = svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		for i, id := range videoIDs {
			v := byID[id]
			v.OrderIndex = i
			if _, err := svc.repo.UpdateVideo(ctx, v, exec); err != nil {
				return errors.Wrap(err, "updating video order")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return svc.ListVideos(ctx, courseID, false)
}

// Materials

func (svc *Service) ListMaterials(ctx context.Context, videoID string) ([]Material, error) {
	return svc.repo.ListMaterials(ctx, []string{videoID})
}

// AddMaterial attaches a material to a video; order_index defaults to max+1.
func (svc *Service) AddMaterial(ctx context.Context, actor core.Actor, videoID string, nm NewMaterial) (Material, error) {
	if _, err := svc.getManagedVideo(ctx, actor, videoID); err != nil {
		return Material{}, err
	}
	m := Material{
		ID:           uuid.NewString(),
		VideoID:      videoID,
		Title:        nm.Title,
		MaterialType: nm.MaterialType,
		CreatedAt:    time.Now().UTC(),
	}
	if nm.MaterialType == MaterialNote {
		m.NoteContent = nm.NoteContent
	} else {
		m.MaterialURL = nm.MaterialURL
	}
	if nm.OrderIndex != nil {
		m.OrderIndex = *nm.OrderIndex
	} else {
		max, err := svc.repo.MaxMaterialOrder(ctx, videoID)
		if err != nil {
			return Material{}, errors.Wrap(err, "getting max order")
		}
		m.OrderIndex = max + 1
	}
	return svc.repo.CreateMaterial(ctx, m)
}

func (svc *Service) getManagedMaterial(ctx context.Context, actor core.Actor, id string) (Material, error) {
	if !core.IsUUID(id) {
		return Material{}, ErrMaterialNotFound
	}
	m, err := svc.repo.GetMaterial(ctx, id)
	if err != nil {
		return Material{}, err
	}
	if _, err = svc.getManagedVideo(ctx, actor, m.VideoID); err != nil {
		return Material{}, err
	}
	return m, nil
}

func (svc *Service) UpdateMaterial(ctx context.Context, actor core.Actor, id string, um UpdateMaterial) (Material, error) {
	m, err := svc.getManagedMaterial(ctx, actor, id)
	if err != nil {
		return Material{}, err
	}
	if um.Title != "" {
		m.Title = um.Title
	}
	if um.OrderIndex != nil {
		m.OrderIndex = *um.OrderIndex
	}
	switch m.MaterialType {
	case MaterialNote:
		if um.NoteContent != nil {
			if core.CleanString(*um.NoteContent) == "" {
				return Material{}, core.NewFieldError("note_content", "this field is required")
			}
			m.NoteContent = core.CleanString(*um.NoteContent)
		}
	default:
		if um.MaterialURL != nil {
			if core.CleanString(*um.MaterialURL) == "" {
				return Material{}, core.NewFieldError("material_url", "this field is required")
			}
			m.MaterialURL = core.CleanString(*um.MaterialURL)
		}
	}
	return svc.repo.UpdateMaterial(ctx, m)
}

func (svc *Service) DeleteMaterial(ctx context.Context, actor core.Actor, id string) error {
	if _, err := svc.getManagedMaterial(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteMaterial(ctx, id)
}
