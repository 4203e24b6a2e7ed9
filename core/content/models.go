package content

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/alphazero/academy/core"
)

type (
	TeamMember struct {
		ID         string    `json:"id"`
		Name       string    `json:"name"`
		NameEn     string    `json:"name_en"`
		Role       string    `json:"role"`
		RoleEn     string    `json:"role_en"`
		Bio        string    `json:"bio"`
		PhotoURL   string    `json:"photo_url"`
		OrderIndex int       `json:"order_index"`
		IsActive   bool      `json:"is_active"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Work struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		TitleEn     string    `json:"title_en"`
		Description string    `json:"description"`
		ImageURL    string    `json:"image_url"`
		Category    string    `json:"category"`
		Link        string    `json:"link"`
		OrderIndex  int       `json:"order_index"`
		IsPublished bool      `json:"is_published"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Offering is a service the agency sells, listed on the marketing site.
	Offering struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		TitleEn     string    `json:"title_en"`
		Description string    `json:"description"`
		Icon        string    `json:"icon"`
		OrderIndex  int       `json:"order_index"`
		IsActive    bool      `json:"is_active"`
		CreatedAt   time.Time `json:"created_at"`
	}

	FooterLink struct {
		ID         string    `json:"id"`
		Section    string    `json:"section"`
		Label      string    `json:"label"`
		LabelEn    string    `json:"label_en"`
		URL        string    `json:"url"`
		OrderIndex int       `json:"order_index"`
		CreatedAt  time.Time `json:"created_at"`
	}

	Setting struct {
		Key       string    `json:"key"`
		Value     string    `json:"value"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	PageSection struct {
		ID        string    `json:"id"`
		Page      string    `json:"page"`
		Section   string    `json:"section"`
		Content   string    `json:"content"`
		ContentEn string    `json:"content_en"`
		UpdatedAt time.Time `json:"updated_at"`
	}
)

// TeamMemberInput creates or replaces a team member.
type TeamMemberInput struct {
	Name       string `json:"name" validate:"required,max=200"`
	NameEn     string `json:"name_en" validate:"omitempty,max=200"`
	Role       string `json:"role" validate:"omitempty,max=200"`
	RoleEn     string `json:"role_en" validate:"omitempty,max=200"`
	Bio        string `json:"bio" validate:"omitempty,max=5000"`
	PhotoURL   string `json:"photo_url" validate:"omitempty,url"`
	OrderIndex *int   `json:"order_index" validate:"omitempty,min=0"`
	IsActive   *bool  `json:"is_active"`
}

func (in *TeamMemberInput) Validate(validate *validator.Validate) error {
	in.Name = core.CleanString(in.Name)
	in.NameEn = core.CleanString(in.NameEn)
	in.Role = core.CleanString(in.Role)
	in.RoleEn = core.CleanString(in.RoleEn)
	in.Bio = core.CleanString(in.Bio)
	in.PhotoURL = core.CleanString(in.PhotoURL)
	return validate.Struct(in)
}

func (in TeamMemberInput) apply(tm *TeamMember) {
	tm.Name, tm.NameEn = in.Name, in.NameEn
	tm.Role, tm.RoleEn = in.Role, in.RoleEn
	tm.Bio, tm.PhotoURL = in.Bio, in.PhotoURL
	if in.OrderIndex != nil {
		tm.OrderIndex = *in.OrderIndex
	}
	tm.IsActive = boolOr(in.IsActive, true)
}

type WorkInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	TitleEn     string `json:"title_en" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Category    string `json:"category" validate:"omitempty,max=64"`
	Link        string `json:"link" validate:"omitempty,url"`
	OrderIndex  *int   `json:"order_index" validate:"omitempty,min=0"`
	IsPublished *bool  `json:"is_published"`
}

func (in *WorkInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.TitleEn = core.CleanString(in.TitleEn)
	in.Description = core.CleanString(in.Description)
	in.ImageURL = core.CleanString(in.ImageURL)
	in.Category = core.CleanString(in.Category, true /* lower */)
	in.Link = core.CleanString(in.Link)
	return validate.Struct(in)
}

func (in WorkInput) apply(w *Work) {
	w.Title, w.TitleEn = in.Title, in.TitleEn
	w.Description, w.ImageURL = in.Description, in.ImageURL
	w.Category, w.Link = in.Category, in.Link
	if in.OrderIndex != nil {
		w.OrderIndex = *in.OrderIndex
	}
	w.IsPublished = boolOr(in.IsPublished, true)
}

type OfferingInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	TitleEn     string `json:"title_en" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Icon        string `json:"icon" validate:"omitempty,max=64"`
	OrderIndex  *int   `json:"order_index" validate:"omitempty,min=0"`
	IsActive    *bool  `json:"is_active"`
}

func (in *OfferingInput) Validate(validate *validator.Validate) error {
	in.Title = core.CleanString(in.Title)
	in.TitleEn = core.CleanString(in.TitleEn)
	in.Description = core.CleanString(in.Description)
	in.Icon = core.CleanString(in.Icon)
	return validate.Struct(in)
}

func (in OfferingInput) apply(o *Offering) {
	o.Title, o.TitleEn = in.Title, in.TitleEn
	o.Description, o.Icon = in.Description, in.Icon
	if in.OrderIndex != nil {
		o.OrderIndex = *in.OrderIndex
	}
	o.IsActive = boolOr(in.IsActive, true)
}

type FooterLinkInput struct {
	Section    string `json:"section" validate:"required,max=64"`
	Label      string `json:"label" validate:"required,max=200"`
	LabelEn    string `json:"label_en" validate:"omitempty,max=200"`
	URL        string `json:"url" validate:"required,max=2000"`
	OrderIndex *int   `json:"order_index" validate:"omitempty,min=0"`
}

func (in *FooterLinkInput) Validate(validate *validator.Validate) error {
	in.Section = core.CleanString(in.Section, true /* lower */)
	in.Label = core.CleanString(in.Label)
	in.LabelEn = core.CleanString(in.LabelEn)
	in.URL = core.CleanString(in.URL)
	return validate.Struct(in)
}

func (in FooterLinkInput) apply(fl *FooterLink) {
	fl.Section, fl.Label, fl.LabelEn, fl.URL = in.Section, in.Label, in.LabelEn, in.URL
	if in.OrderIndex != nil {
		fl.OrderIndex = *in.OrderIndex
	}
}

type SettingInput struct {
	Key   string `json:"key" validate:"required,max=100,alphanum_"`
	Value string `json:"value" validate:"max=10000"`
}

func (in *SettingInput) Validate(validate *validator.Validate) error {
	in.Key = core.CleanString(in.Key, true /* lower */)
	return validate.Struct(in)
}

type PageSectionInput struct {
	Page      string `json:"page" validate:"required,max=64,alphanum_"`
	Section   string `json:"section" validate:"required,max=64,alphanum_"`
	Content   string `json:"content" validate:"max=100000"`
	ContentEn string `json:"content_en" validate:"max=100000"`
}

func (in *PageSectionInput) Validate(validate *validator.Validate) error {
	in.Page = core.CleanString(in.Page, true /* lower */)
	in.Section = core.CleanString(in.Section, true /* lower */)
	return validate.Struct(in)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
