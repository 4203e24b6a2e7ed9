package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/content"
)

type contentRepository struct {
	db *DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) *contentRepository {
	return &contentRepository{db: db}
}

// byOrder sorts by order_index, then created_at.
func byOrder(order func(i int) (int, time.Time)) func(i, j int) bool {
	return func(i, j int) bool {
		oi, ci := order(i)
		oj, cj := order(j)
		if oi != oj {
			return oi < oj
		}
		return ci.Before(cj)
	}
}

// Team members

func (repo *contentRepository) CreateTeamMember(_ context.Context, tm content.TeamMember, _ ...core.DBExecutor) (content.TeamMember, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.teamMembers[tm.ID] = &tm
	return tm, nil
}

func (repo *contentRepository) UpdateTeamMember(_ context.Context, tm content.TeamMember, _ ...core.DBExecutor) (content.TeamMember, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.teamMembers[tm.ID]
	if !ok {
		return content.TeamMember{}, content.ErrTeamMemberNotFound
	}
	tm.CreatedAt = orig.CreatedAt
	repo.db.teamMembers[tm.ID] = &tm
	return tm, nil
}

func (repo *contentRepository) DeleteTeamMember(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.teamMembers[id]; !ok {
		return content.ErrTeamMemberNotFound
	}
	delete(repo.db.teamMembers, id)
	return nil
}

func (repo *contentRepository) GetTeamMember(_ context.Context, id string, _ ...core.DBExecutor) (content.TeamMember, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if tm, ok := repo.db.teamMembers[id]; ok {
		return *tm, nil
	}
	return content.TeamMember{}, content.ErrTeamMemberNotFound
}

func (repo *contentRepository) ListTeamMembers(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]content.TeamMember, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.TeamMember, 0, len(repo.db.teamMembers))
	for _, tm := range repo.db.teamMembers {
		if !activeOnly || tm.IsActive {
			out = append(out, *tm)
		}
	}
	sort.Slice(out, byOrder(func(i int) (int, time.Time) { return out[i].OrderIndex, out[i].CreatedAt }))
	return out, nil
}

// Works

func (repo *contentRepository) CreateWork(_ context.Context, w content.Work, _ ...core.DBExecutor) (content.Work, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.works[w.ID] = &w
	return w, nil
}

func (repo *contentRepository) UpdateWork(_ context.Context, w content.Work, _ ...core.DBExecutor) (content.Work, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.works[w.ID]
	if !ok {
		return content.Work{}, content.ErrWorkNotFound
	}
	w.CreatedAt = orig.CreatedAt
	repo.db.works[w.ID] = &w
	return w, nil
}

func (repo *contentRepository) DeleteWork(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.works[id]; !ok {
		return content.ErrWorkNotFound
	}
	delete(repo.db.works, id)
	return nil
}

func (repo *contentRepository) GetWork(_ context.Context, id string, _ ...core.DBExecutor) (content.Work, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if w, ok := repo.db.works[id]; ok {
		return *w, nil
	}
	return content.Work{}, content.ErrWorkNotFound
}

func (repo *contentRepository) ListWorks(_ context.Context, publishedOnly bool, category string, _ ...core.DBExecutor) ([]content.Work, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.Work, 0, len(repo.db.works))
	for _, w := range repo.db.works {
		if publishedOnly && !w.IsPublished {
			continue
		}
		if category != "" && w.Category != category {
			continue
		}
		out = append(out, *w)
	}
	sort.Slice(out, byOrder(func(i int) (int, time.Time) { return out[i].OrderIndex, out[i].CreatedAt }))
	return out, nil
}

// Offerings

func (repo *contentRepository) CreateOffering(_ context.Context, o content.Offering, _ ...core.DBExecutor) (content.Offering, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.offerings[o.ID] = &o
	return o, nil
}

func (repo *contentRepository) UpdateOffering(_ context.Context, o content.Offering, _ ...core.DBExecutor) (content.Offering, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.offerings[o.ID]
	if !ok {
		return content.Offering{}, content.ErrOfferingNotFound
	}
	o.CreatedAt = orig.CreatedAt
	repo.db.offerings[o.ID] = &o
	return o, nil
}

func (repo *contentRepository) DeleteOffering(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.offerings[id]; !ok {
		return content.ErrOfferingNotFound
	}
	delete(repo.db.offerings, id)
	return nil
}

func (repo *contentRepository) GetOffering(_ context.Context, id string, _ ...core.DBExecutor) (content.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if o, ok := repo.db.offerings[id]; ok {
		return *o, nil
	}
	return content.Offering{}, content.ErrOfferingNotFound
}

func (repo *contentRepository) ListOfferings(_ context.Context, activeOnly bool, _ ...core.DBExecutor) ([]content.Offering, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.Offering, 0, len(repo.db.offerings))
	for _, o := range repo.db.offerings {
		if !activeOnly || o.IsActive {
			out = append(out, *o)
		}
	}
	sort.Slice(out, byOrder(func(i int) (int, time.Time) { return out[i].OrderIndex, out[i].CreatedAt }))
	return out, nil
}

// Footer links

func (repo *contentRepository) CreateFooterLink(_ context.Context, fl content.FooterLink, _ ...core.DBExecutor) (content.FooterLink, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.footerLinks[fl.ID] = &fl
	return fl, nil
}

func (repo *contentRepository) UpdateFooterLink(_ context.Context, fl content.FooterLink, _ ...core.DBExecutor) (content.FooterLink, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.footerLinks[fl.ID]
	if !ok {
		return content.FooterLink{}, content.ErrFooterLinkNotFound
	}
	fl.CreatedAt = orig.CreatedAt
	repo.db.footerLinks[fl.ID] = &fl
	return fl, nil
}

func (repo *contentRepository) DeleteFooterLink(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.footerLinks[id]; !ok {
		return content.ErrFooterLinkNotFound
	}
	delete(repo.db.footerLinks, id)
	return nil
}

func (repo *contentRepository) GetFooterLink(_ context.Context, id string, _ ...core.DBExecutor) (content.FooterLink, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if fl, ok := repo.db.footerLinks[id]; ok {
		return *fl, nil
	}
	return content.FooterLink{}, content.ErrFooterLinkNotFound
}

func (repo *contentRepository) ListFooterLinks(_ context.Context, _ ...core.DBExecutor) ([]content.FooterLink, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.FooterLink, 0, len(repo.db.footerLinks))
	for _, fl := range repo.db.footerLinks {
		out = append(out, *fl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		return byOrder(func(k int) (int, time.Time) { return out[k].OrderIndex, out[k].CreatedAt })(i, j)
	})
	return out, nil
}

// Site settings

func (repo *contentRepository) GetSetting(_ context.Context, key string, _ ...core.DBExecutor) (content.Setting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.settings[key]; ok {
		return *s, nil
	}
	return content.Setting{}, content.ErrSettingNotFound
}

func (repo *contentRepository) SetSetting(_ context.Context, s content.Setting, _ ...core.DBExecutor) (content.Setting, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.settings[s.Key] = &s
	return s, nil
}

func (repo *contentRepository) DeleteSetting(_ context.Context, key string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.settings[key]; !ok {
		return content.ErrSettingNotFound
	}
	delete(repo.db.settings, key)
	return nil
}

func (repo *contentRepository) ListSettings(_ context.Context, _ ...core.DBExecutor) ([]content.Setting, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.Setting, 0, len(repo.db.settings))
	for _, s := range repo.db.settings {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Page content

func (repo *contentRepository) UpsertPageSection(_ context.Context, ps content.PageSection, _ ...core.DBExecutor) (content.PageSection, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := pairKey(ps.Page, ps.Section)
	if prev, ok := repo.db.pageSections[key]; ok {
		ps.ID = prev.ID
	}
	repo.db.pageSections[key] = &ps
	return ps, nil
}

func (repo *contentRepository) ListPageSections(_ context.Context, page string, _ ...core.DBExecutor) ([]content.PageSection, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	out := make([]content.PageSection, 0)
	for _, ps := range repo.db.pageSections {
		if page == "" || ps.Page == page {
			out = append(out, *ps)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Page != out[j].Page {
			return out[i].Page < out[j].Page
		}
		return out[i].Section < out[j].Section
	})
	return out, nil
}
