package content

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

var (
	// errors
	ErrTeamMemberNotFound = errors.New("team member not found")
	ErrWorkNotFound       = errors.New("work not found")
	ErrOfferingNotFound   = errors.New("service not found")
	ErrFooterLinkNotFound = errors.New("footer link not found")
	ErrSettingNotFound    = errors.New("setting not found")
)

type (
	// Repository lists rows ordered by order_index then created_at.
	Repository interface {
		CreateTeamMember(ctx context.Context, tm TeamMember, exec ...core.DBExecutor) (TeamMember, error)
		UpdateTeamMember(ctx context.Context, tm TeamMember, exec ...core.DBExecutor) (TeamMember, error)
		DeleteTeamMember(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetTeamMember(ctx context.Context, id string, exec ...core.DBExecutor) (TeamMember, error)
		ListTeamMembers(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]TeamMember, error)

		CreateWork(ctx context.Context, w Work, exec ...core.DBExecutor) (Work, error)
		UpdateWork(ctx context.Context, w Work, exec ...core.DBExecutor) (Work, error)
		DeleteWork(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetWork(ctx context.Context, id string, exec ...core.DBExecutor) (Work, error)
		ListWorks(ctx context.Context, publishedOnly bool, category string, exec ...core.DBExecutor) ([]Work, error)

		CreateOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) (Offering, error)
		UpdateOffering(ctx context.Context, o Offering, exec ...core.DBExecutor) (Offering, error)
		DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (Offering, error)
		ListOfferings(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]Offering, error)

		CreateFooterLink(ctx context.Context, fl FooterLink, exec ...core.DBExecutor) (FooterLink, error)
		UpdateFooterLink(ctx context.Context, fl FooterLink, exec ...core.DBExecutor) (FooterLink, error)
		DeleteFooterLink(ctx context.Context, id string, exec ...core.DBExecutor) error
		GetFooterLink(ctx context.Context, id string, exec ...core.DBExecutor) (FooterLink, error)
		ListFooterLinks(ctx context.Context, exec ...core.DBExecutor) ([]FooterLink, error)

		GetSetting(ctx context.Context, key string, exec ...core.DBExecutor) (Setting, error)
		// SetSetting inserts or replaces the value of a key.
		SetSetting(ctx context.Context, s Setting, exec ...core.DBExecutor) (Setting, error)
		DeleteSetting(ctx context.Context, key string, exec ...core.DBExecutor) error
		ListSettings(ctx context.Context, exec ...core.DBExecutor) ([]Setting, error)

		// UpsertPageSection inserts or replaces the content of (page, section).
		UpsertPageSection(ctx context.Context, ps PageSection, exec ...core.DBExecutor) (PageSection, error)
		// ListPageSections returns every section of page, or of all pages when page is empty.
		ListPageSections(ctx context.Context, page string, exec ...core.DBExecutor) ([]PageSection, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Team members

func (svc *Service) ListTeamMembers(ctx context.Context, activeOnly bool) ([]TeamMember, error) {
	return svc.repo.ListTeamMembers(ctx, activeOnly)
}

func (svc *Service) GetTeamMember(ctx context.Context, id string) (TeamMember, error) {
	if !core.IsUUID(id) {
		return TeamMember{}, ErrTeamMemberNotFound
	}
	return svc.repo.GetTeamMember(ctx, id)
}

func (svc *Service) CreateTeamMember(ctx context.Context, in TeamMemberInput) (TeamMember, error) {
	tm := TeamMember{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	in.apply(&tm)
	return svc.repo.CreateTeamMember(ctx, tm)
}

func (svc *Service) UpdateTeamMember(ctx context.Context, id string, in TeamMemberInput) (TeamMember, error) {
	tm, err := svc.GetTeamMember(ctx, id)
	if err != nil {
		return TeamMember{}, err
	}
	in.apply(&tm)
	return svc.repo.UpdateTeamMember(ctx, tm)
}

func (svc *Service) DeleteTeamMember(ctx context.Context, id string) error {
	if _, err := svc.GetTeamMember(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteTeamMember(ctx, id)
}

// Works

func (svc *Service) ListWorks(ctx context.Context, publishedOnly bool, category string) ([]Work, error) {
	return svc.repo.ListWorks(ctx, publishedOnly, core.CleanString(category, true /* lower */))
}

func (svc *Service) GetWork(ctx context.Context, id string) (Work, error) {
	if !core.IsUUID(id) {
		return Work{}, ErrWorkNotFound
	}
	return svc.repo.GetWork(ctx, id)
}

func (svc *Service) CreateWork(ctx context.Context, in WorkInput) (Work, error) {
	w := Work{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	in.apply(&w)
	return svc.repo.CreateWork(ctx, w)
}

func (svc *Service) UpdateWork(ctx context.Context, id string, in WorkInput) (Work, error) {
	w, err := svc.GetWork(ctx, id)
	if err != nil {
		return Work{}, err
	}
	in.apply(&w)
	return svc.repo.UpdateWork(ctx, w)
}

func (svc *Service) DeleteWork(ctx context.Context, id string) error {
	if _, err := svc.GetWork(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteWork(ctx, id)
}

// Offerings

func (svc *Service) ListOfferings(ctx context.Context, activeOnly bool) ([]Offering, error) {
	return svc.repo.ListOfferings(ctx, activeOnly)
}

func (svc *Service) GetOffering(ctx context.Context, id string) (Offering, error) {
	if !core.IsUUID(id) {
		return Offering{}, ErrOfferingNotFound
	}
	return svc.repo.GetOffering(ctx, id)
}

func (svc *Service) CreateOffering(ctx context.Context, in OfferingInput) (Offering, error) {
	o := Offering{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	in.apply(&o)
	return svc.repo.CreateOffering(ctx, o)
}

func (svc *Service) UpdateOffering(ctx context.Context, id string, in OfferingInput) (Offering, error) {
	o, err := svc.GetOffering(ctx, id)
	if err != nil {
		return Offering{}, err
	}
	in.apply(&o)
	return svc.repo.UpdateOffering(ctx, o)
}

func (svc *Service) DeleteOffering(ctx context.Context, id string) error {
	if _, err := svc.GetOffering(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteOffering(ctx, id)
}

// Footer links

func (svc *Service) ListFooterLinks(ctx context.Context) ([]FooterLink, error) {
	return svc.repo.ListFooterLinks(ctx)
}

// FooterSections groups the footer links by section, keeping their order.
func (svc *Service) FooterSections(ctx context.Context) (map[string][]FooterLink, error) {
	links, err := svc.repo.ListFooterLinks(ctx)
	if err != nil {
		return nil, err
	}
	sections := make(map[string][]FooterLink)
	for _, fl := range links {
		sections[fl.Section] = append(sections[fl.Section], fl)
	}
	return sections, nil
}

func (svc *Service) GetFooterLink(ctx context.Context, id string) (FooterLink, error) {
	if !core.IsUUID(id) {
		return FooterLink{}, ErrFooterLinkNotFound
	}
	return svc.repo.GetFooterLink(ctx, id)
}

func (svc *Service) CreateFooterLink(ctx context.Context, in FooterLinkInput) (FooterLink, error) {
	fl := FooterLink{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	in.apply(&fl)
	return svc.repo.CreateFooterLink(ctx, fl)
}

func (svc *Service) UpdateFooterLink(ctx context.Context, id string, in FooterLinkInput) (FooterLink, error) {
	fl, err := svc.GetFooterLink(ctx, id)
	if err != nil {
		return FooterLink{}, err
	}
	in.apply(&fl)
	return svc.repo.UpdateFooterLink(ctx, fl)
}

func (svc *Service) DeleteFooterLink(ctx context.Context, id string) error {
	if _, err := svc.GetFooterLink(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteFooterLink(ctx, id)
}

// Site settings

func (svc *Service) GetSetting(ctx context.Context, key string) (Setting, error) {
	key = core.CleanString(key, true /* lower */)
	if key == "" {
		return Setting{}, ErrSettingNotFound
	}
	return svc.repo.GetSetting(ctx, key)
}

func (svc *Service) SetSetting(ctx context.Context, in SettingInput) (Setting, error) {
	return svc.repo.SetSetting(ctx, Setting{Key: in.Key, Value: in.Value, UpdatedAt: time.Now().UTC()})
}

func (svc *Service) DeleteSetting(ctx context.Context, key string) error {
	if _, err := svc.GetSetting(ctx, key); err != nil {
		return err
	}
	return svc.repo.DeleteSetting(ctx, core.CleanString(key, true /* lower */))
}

// Settings returns every site setting keyed by name.
func (svc *Service) Settings(ctx context.Context) (map[string]string, error) {
	settings, err := svc.repo.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Key] = s.Value
	}
	return out, nil
}

// Page content

func (svc *Service) SetPageSection(ctx context.Context, in PageSectionInput) (PageSection, error) {
	return svc.repo.UpsertPageSection(ctx, PageSection{
		ID:        uuid.NewString(),
		Page:      in.Page,
		Section:   in.Section,
		Content:   in.Content,
		ContentEn: in.ContentEn,
		UpdatedAt: time.Now().UTC(),
	})
}

// PageSections returns the content of a page keyed by section.
func (svc *Service) PageSections(ctx context.Context, page string) (map[string]PageSection, error) {
	sections, err := svc.repo.ListPageSections(ctx, core.CleanString(page, true /* lower */))
	if err != nil {
		return nil, err
	}
	out := make(map[string]PageSection, len(sections))
	for _, ps := range sections {
		out[ps.Section] = ps
	}
	return out, nil
}

func (svc *Service) ListPageSections(ctx context.Context) ([]PageSection, error) {
	return svc.repo.ListPageSections(ctx, "")
}
