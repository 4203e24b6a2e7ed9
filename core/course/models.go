package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

// Course types
const (
	TypeRecorded = "recorded"
	TypeLive     = "live"
)

// Video types
const (
	VideoYoutube = "youtube"
	VideoVimeo   = "vimeo"
	VideoUpload  = "upload"
	VideoDrive   = "drive"
)

// Material types
const (
	MaterialPDF  = "pdf"
	MaterialDoc  = "doc"
	MaterialNote = "note"
)

var (
	CourseTypes   = []string{TypeRecorded, TypeLive}
	VideoTypes    = []string{VideoYoutube, VideoVimeo, VideoUpload, VideoDrive}
	MaterialTypes = []string{MaterialPDF, MaterialDoc, MaterialNote}
)

type (
	Course struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		TitleEn      string    `json:"title_en"`
		Description  string    `json:"description"`
		Price        int64     `json:"price"`
		ThumbnailURL string    `json:"thumbnail_url"`
		IsPublished  bool      `json:"is_published"`
		IsApproved   bool      `json:"is_approved"`
		TeacherID    string    `json:"teacher_id"`
		TeacherName  string    `json:"teacher_name"`
		CourseType   string    `json:"course_type"`
		VideoCount   int       `json:"video_count"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	Video struct {
		ID              string     `json:"id"`
		CourseID        string     `json:"course_id"`
		Title           string     `json:"title"`
		VideoURL        string     `json:"video_url"`
		VideoType       string     `json:"video_type"`
		OrderIndex      int        `json:"order_index"`
		DurationSeconds int        `json:"duration_seconds"`
		CreatedAt       time.Time  `json:"created_at"`
		Materials       []Material `json:"materials,omitempty"`
	}

	Material struct {
		ID           string    `json:"id"`
		VideoID      string    `json:"video_id"`
		Title        string    `json:"title"`
		MaterialType string    `json:"material_type"`
		MaterialURL  string    `json:"material_url"`
		NoteContent  string    `json:"note_content"`
		OrderIndex   int       `json:"order_index"`
		CreatedAt    time.Time `json:"created_at"`
	}
)

// IsPublic reports whether the course is visible on the public catalog.
func (c Course) IsPublic() bool {
	return c.IsPublished && c.IsApproved
}

type NewCourse struct {
	Title        string `json:"title" validate:"required,max=200"`
	TitleEn      string `json:"title_en" validate:"omitempty,max=200"`
	Description  string `json:"description" validate:"omitempty,max=10000"`
	Price        int64  `json:"price" validate:"min=0"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url"`
	CourseType   string `json:"course_type" validate:"omitempty,coursetype"`
	// TeacherID is only honored for admins; teachers always own the courses they create.
	TeacherID string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.TitleEn = core.CleanString(nc.TitleEn)
	nc.Description = core.CleanString(nc.Description)
	nc.CourseType = core.CleanString(nc.CourseType, true /* lower */)
	if nc.CourseType == "" {
		nc.CourseType = TypeRecorded
	}
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Title        string  `json:"title" validate:"omitempty,max=200"`
	TitleEn      *string `json:"title_en" validate:"omitempty,max=200"`
	Description  *string `json:"description" validate:"omitempty,max=10000"`
	Price        *int64  `json:"price" validate:"omitempty,min=0"`
	ThumbnailURL *string `json:"thumbnail_url" validate:"omitempty,url"`
	CourseType   string  `json:"course_type" validate:"omitempty,coursetype"`
	TeacherID    *string `json:"teacher_id" validate:"omitempty,uuid"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Title = core.CleanString(uc.Title)
	uc.CourseType = core.CleanString(uc.CourseType, true /* lower */)
	return validate.Struct(uc)
}

func (uc UpdateCourse) apply(c *Course, admin bool) {
	if uc.Title != "" {
		c.Title = uc.Title
	}
	if uc.TitleEn != nil {
		c.TitleEn = core.CleanString(*uc.TitleEn)
	}
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Price != nil {
		c.Price = *uc.Price
	}
	if uc.ThumbnailURL != nil {
		c.ThumbnailURL = *uc.ThumbnailURL
	}
	if uc.CourseType != "" {
		c.CourseType = uc.CourseType
	}
	if uc.TeacherID != nil && admin {
		c.TeacherID = *uc.TeacherID
	}
}

type QueryFilter struct {
	Search      string   `query:"search"`
	TeacherID   string   `query:"teacher"`
	IsPublished *bool    `query:"published"`
	IsApproved  *bool    `query:"approved"`
	CourseType  string   `query:"type"`
	IDs         []string `query:"id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.CourseType = core.CleanString(qf.CourseType, true /* lower */)
}

type NewVideo struct {
	Title           string `json:"title" validate:"required,max=200"`
	VideoURL        string `json:"video_url" validate:"required,url"`
	VideoType       string `json:"video_type" validate:"omitempty,videotype"`
	OrderIndex      *int   `json:"order_index" validate:"omitempty,min=0"`
	DurationSeconds int    `json:"duration_seconds" validate:"min=0"`
}

func (nv *NewVideo) Validate(validate *validator.Validate) error {
	nv.Title = core.CleanString(nv.Title)
	nv.VideoURL = core.CleanString(nv.VideoURL)
	nv.VideoType = core.CleanString(nv.VideoType, true /* lower */)
	if nv.VideoType == "" {
		nv.VideoType = VideoYoutube
	}
	return validate.Struct(nv)
}

type UpdateVideo struct {
	Title           string `json:"title" validate:"omitempty,max=200"`
	VideoURL        string `json:"video_url" validate:"omitempty,url"`
	VideoType       string `json:"video_type" validate:"omitempty,videotype"`
	OrderIndex      *int   `json:"order_index" validate:"omitempty,min=0"`
	DurationSeconds *int   `json:"duration_seconds" validate:"omitempty,min=0"`
}

func (uv *UpdateVideo) Validate(validate *validator.Validate) error {
	uv.Title = core.CleanString(uv.Title)
	uv.VideoURL = core.CleanString(uv.VideoURL)
	uv.VideoType = core.CleanString(uv.VideoType, true /* lower */)
	return validate.Struct(uv)
}

type NewMaterial struct {
	Title        string `json:"title" validate:"required,max=200"`
	MaterialType string `json:"material_type" validate:"required,materialtype"`
	MaterialURL  string `json:"material_url" validate:"omitempty,url"`
	NoteContent  string `json:"note_content" validate:"omitempty,max=50000"`
	OrderIndex   *int   `json:"order_index" validate:"omitempty,min=0"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.MaterialType = core.CleanString(nm.MaterialType, true /* lower */)
	nm.MaterialURL = core.CleanString(nm.MaterialURL)
	nm.NoteContent = core.CleanString(nm.NoteContent)
	return validate.Struct(nm)
}

type UpdateMaterial struct {
	Title       string  `json:"title" validate:"omitempty,max=200"`
	MaterialURL *string `json:"material_url" validate:"omitempty,url"`
	NoteContent *string `json:"note_content" validate:"omitempty,max=50000"`
	OrderIndex  *int    `json:"order_index" validate:"omitempty,min=0"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	return validate.Struct(um)
}

type ReorderVideos struct {
	VideoIDs []string `json:"video_ids" validate:"required,min=1,uuids"`
}
