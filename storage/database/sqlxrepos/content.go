package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/content"
)

const (
	teamMemberSelect  = "SELECT id, name, name_en, role, role_en, bio, photo_url, order_index, is_active, created_at FROM team_members"
	workSelect        = "SELECT id, title, title_en, description, image_url, category, link, order_index, is_published, created_at FROM works"
	offeringSelect    = "SELECT id, title, title_en, description, icon, order_index, is_active, created_at FROM services"
	footerLinkSelect  = "SELECT id, section, label, label_en, url, order_index, created_at FROM footer_links"
	pageSectionSelect = "SELECT id, page, section, content, content_en, updated_at FROM page_content"
	contentOrder      = " ORDER BY order_index, created_at"
)

type (
	teamMemberRow struct {
		ID         string      `db:"id"`
		Name       string      `db:"name"`
		NameEn     null.String `db:"name_en"`
		Role       string      `db:"role"`
		RoleEn     null.String `db:"role_en"`
		Bio        null.String `db:"bio"`
		PhotoURL   null.String `db:"photo_url"`
		OrderIndex int         `db:"order_index"`
		IsActive   bool        `db:"is_active"`
		CreatedAt  time.Time   `db:"created_at"`
	}

	workRow struct {
		ID          string      `db:"id"`
		Title       string      `db:"title"`
		TitleEn     null.String `db:"title_en"`
		Description null.String `db:"description"`
		ImageURL    null.String `db:"image_url"`
		Category    string      `db:"category"`
		Link        null.String `db:"link"`
		OrderIndex  int         `db:"order_index"`
		IsPublished bool        `db:"is_published"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	offeringRow struct {
		ID          string      `db:"id"`
		Title       string      `db:"title"`
		TitleEn     null.String `db:"title_en"`
		Description null.String `db:"description"`
		Icon        null.String `db:"icon"`
		OrderIndex  int         `db:"order_index"`
		IsActive    bool        `db:"is_active"`
		CreatedAt   time.Time   `db:"created_at"`
	}

	footerLinkRow struct {
		ID         string      `db:"id"`
		Section    string      `db:"section"`
		Label      string      `db:"label"`
		LabelEn    null.String `db:"label_en"`
		URL        string      `db:"url"`
		OrderIndex int         `db:"order_index"`
		CreatedAt  time.Time   `db:"created_at"`
	}

	settingRow struct {
		Key       string    `db:"key"`
		Value     string    `db:"value"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	pageSectionRow struct {
		ID        string      `db:"id"`
		Page      string      `db:"page"`
		Section   string      `db:"section"`
		Content   string      `db:"content"`
		ContentEn null.String `db:"content_en"`
		UpdatedAt time.Time   `db:"updated_at"`
	}
)

func (row teamMemberRow) toTeamMember() content.TeamMember {
	return content.TeamMember{
		ID:         row.ID,
		Name:       row.Name,
		NameEn:     row.NameEn.String,
		Role:       row.Role,
		RoleEn:     row.RoleEn.String,
		Bio:        row.Bio.String,
		PhotoURL:   row.PhotoURL.String,
		OrderIndex: row.OrderIndex,
		IsActive:   row.IsActive,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (row workRow) toWork() content.Work {
	return content.Work{
		ID:          row.ID,
		Title:       row.Title,
		TitleEn:     row.TitleEn.String,
		Description: row.Description.String,
		ImageURL:    row.ImageURL.String,
		Category:    row.Category,
		Link:        row.Link.String,
		OrderIndex:  row.OrderIndex,
		IsPublished: row.IsPublished,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (row offeringRow) toOffering() content.Offering {
	return content.Offering{
		ID:          row.ID,
		Title:       row.Title,
		TitleEn:     row.TitleEn.String,
		Description: row.Description.String,
		Icon:        row.Icon.String,
		OrderIndex:  row.OrderIndex,
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

func (row footerLinkRow) toFooterLink() content.FooterLink {
	return content.FooterLink{
		ID:         row.ID,
		Section:    row.Section,
		Label:      row.Label,
		LabelEn:    row.LabelEn.String,
		URL:        row.URL,
		OrderIndex: row.OrderIndex,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (row pageSectionRow) toPageSection() content.PageSection {
	return content.PageSection{
		ID:        row.ID,
		Page:      row.Page,
		Section:   row.Section,
		Content:   row.Content,
		ContentEn: row.ContentEn.String,
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type contentRepository struct {
	repository
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) *contentRepository {
	return &contentRepository{repository{db: db}}
}

func (repo contentRepository) deleteByID(ctx context.Context, table, id string, notFound error, exec []core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM "+table+" WHERE id = ?"), id)
	return checkAffected(res, err, notFound, "deleting from "+table)
}

// Team members

func (repo contentRepository) CreateTeamMember(ctx context.Context, tm content.TeamMember, exec ...core.DBExecutor) (content.TeamMember, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO team_members (id, name, name_en, role, role_en, bio, photo_url, order_index, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		tm.ID, tm.Name, nullString(tm.NameEn), tm.Role, nullString(tm.RoleEn), nullString(tm.Bio), nullString(tm.PhotoURL),
		tm.OrderIndex, tm.IsActive, tm.CreatedAt.UTC(),
	)
	return tm, errors.Wrap(err, "inserting team member")
}

func (repo contentRepository) UpdateTeamMember(ctx context.Context, tm content.TeamMember, exec ...core.DBExecutor) (content.TeamMember, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE team_members SET name = ?, name_en = ?, role = ?, role_en = ?, bio = ?, photo_url = ?, order_index = ?, is_active = ?
		WHERE id = ?`),
		tm.Name, nullString(tm.NameEn), tm.Role, nullString(tm.RoleEn), nullString(tm.Bio), nullString(tm.PhotoURL),
		tm.OrderIndex, tm.IsActive, tm.ID,
	)
	return tm, checkAffected(res, err, content.ErrTeamMemberNotFound, "updating team member")
}

func (repo contentRepository) DeleteTeamMember(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, "team_members", id, content.ErrTeamMemberNotFound, exec)
}

func (repo contentRepository) GetTeamMember(ctx context.Context, id string, exec ...core.DBExecutor) (content.TeamMember, error) {
	ex := repo.getExec(exec)
	var row teamMemberRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(teamMemberSelect+" WHERE id = ?"), id); err != nil {
		return content.TeamMember{}, trapNoRowsErr(err, content.ErrTeamMemberNotFound, "getting team member")
	}
	return row.toTeamMember(), nil
}

func (repo contentRepository) ListTeamMembers(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]content.TeamMember, error) {
	query := teamMemberSelect
	if activeOnly {
		query += " WHERE is_active"
	}
	var rows []teamMemberRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query+contentOrder); err != nil {
		return nil, errors.Wrap(err, "listing team members")
	}
	out := make([]content.TeamMember, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTeamMember())
	}
	return out, nil
}

// Works

func (repo contentRepository) CreateWork(ctx context.Context, w content.Work, exec ...core.DBExecutor) (content.Work, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO works (id, title, title_en, description, image_url, category, link, order_index, is_published, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		w.ID, w.Title, nullString(w.TitleEn), nullString(w.Description), nullString(w.ImageURL), w.Category, nullString(w.Link),
		w.OrderIndex, w.IsPublished, w.CreatedAt.UTC(),
	)
	return w, errors.Wrap(err, "inserting work")
}

func (repo contentRepository) UpdateWork(ctx context.Context, w content.Work, exec ...core.DBExecutor) (content.Work, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE works SET title = ?, title_en = ?, description = ?, image_url = ?, category = ?, link = ?, order_index = ?, is_published = ?
		WHERE id = ?`),
		w.Title, nullString(w.TitleEn), nullString(w.Description), nullString(w.ImageURL), w.Category, nullString(w.Link),
		w.OrderIndex, w.IsPublished, w.ID,
	)
	return w, checkAffected(res, err, content.ErrWorkNotFound, "updating work")
}

func (repo contentRepository) DeleteWork(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, "works", id, content.ErrWorkNotFound, exec)
}

func (repo contentRepository) GetWork(ctx context.Context, id string, exec ...core.DBExecutor) (content.Work, error) {
	ex := repo.getExec(exec)
	var row workRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(workSelect+" WHERE id = ?"), id); err != nil {
		return content.Work{}, trapNoRowsErr(err, content.ErrWorkNotFound, "getting work")
	}
	return row.toWork(), nil
}

func (repo contentRepository) ListWorks(ctx context.Context, publishedOnly bool, category string, exec ...core.DBExecutor) ([]content.Work, error) {
	var w where
	if publishedOnly {
		w.add("is_published")
	}
	if category != "" {
		w.add("category = ?", category)
	}
	ex := repo.getExec(exec)
	var rows []workRow
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(workSelect+w.String()+contentOrder), w.args...); err != nil {
		return nil, errors.Wrap(err, "listing works")
	}
	out := make([]content.Work, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toWork())
	}
	return out, nil
}

// Offerings

func (repo contentRepository) CreateOffering(ctx context.Context, o content.Offering, exec ...core.DBExecutor) (content.Offering, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO services (id, title, title_en, description, icon, order_index, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		o.ID, o.Title, nullString(o.TitleEn), nullString(o.Description), nullString(o.Icon), o.OrderIndex, o.IsActive, o.CreatedAt.UTC(),
	)
	return o, errors.Wrap(err, "inserting service")
}

func (repo contentRepository) UpdateOffering(ctx context.Context, o content.Offering, exec ...core.DBExecutor) (content.Offering, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE services SET title = ?, title_en = ?, description = ?, icon = ?, order_index = ?, is_active = ? WHERE id = ?`),
		o.Title, nullString(o.TitleEn), nullString(o.Description), nullString(o.Icon), o.OrderIndex, o.IsActive, o.ID,
	)
	return o, checkAffected(res, err, content.ErrOfferingNotFound, "updating service")
}

func (repo contentRepository) DeleteOffering(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, "services", id, content.ErrOfferingNotFound, exec)
}

func (repo contentRepository) GetOffering(ctx context.Context, id string, exec ...core.DBExecutor) (content.Offering, error) {
	ex := repo.getExec(exec)
	var row offeringRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(offeringSelect+" WHERE id = ?"), id); err != nil {
		return content.Offering{}, trapNoRowsErr(err, content.ErrOfferingNotFound, "getting service")
	}
	return row.toOffering(), nil
}

func (repo contentRepository) ListOfferings(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) ([]content.Offering, error) {
	query := offeringSelect
	if activeOnly {
		query += " WHERE is_active"
	}
	var rows []offeringRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, query+contentOrder); err != nil {
		return nil, errors.Wrap(err, "listing services")
	}
	out := make([]content.Offering, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toOffering())
	}
	return out, nil
}

// Footer links

func (repo contentRepository) CreateFooterLink(ctx context.Context, fl content.FooterLink, exec ...core.DBExecutor) (content.FooterLink, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO footer_links (id, section, label, label_en, url, order_index, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		fl.ID, fl.Section, fl.Label, nullString(fl.LabelEn), fl.URL, fl.OrderIndex, fl.CreatedAt.UTC(),
	)
	return fl, errors.Wrap(err, "inserting footer link")
}

func (repo contentRepository) UpdateFooterLink(ctx context.Context, fl content.FooterLink, exec ...core.DBExecutor) (content.FooterLink, error) {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE footer_links SET section = ?, label = ?, label_en = ?, url = ?, order_index = ? WHERE id = ?`),
		fl.Section, fl.Label, nullString(fl.LabelEn), fl.URL, fl.OrderIndex, fl.ID,
	)
	return fl, checkAffected(res, err, content.ErrFooterLinkNotFound, "updating footer link")
}

func (repo contentRepository) DeleteFooterLink(ctx context.Context, id string, exec ...core.DBExecutor) error {
	return repo.deleteByID(ctx, "footer_links", id, content.ErrFooterLinkNotFound, exec)
}

func (repo contentRepository) GetFooterLink(ctx context.Context, id string, exec ...core.DBExecutor) (content.FooterLink, error) {
	ex := repo.getExec(exec)
	var row footerLinkRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(footerLinkSelect+" WHERE id = ?"), id); err != nil {
		return content.FooterLink{}, trapNoRowsErr(err, content.ErrFooterLinkNotFound, "getting footer link")
	}
	return row.toFooterLink(), nil
}

func (repo contentRepository) ListFooterLinks(ctx context.Context, exec ...core.DBExecutor) ([]content.FooterLink, error) {
	var rows []footerLinkRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, footerLinkSelect+" ORDER BY section, order_index, created_at"); err != nil {
		return nil, errors.Wrap(err, "listing footer links")
	}
	out := make([]content.FooterLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toFooterLink())
	}
	return out, nil
}

// Site settings

func (repo contentRepository) GetSetting(ctx context.Context, key string, exec ...core.DBExecutor) (content.Setting, error) {
	ex := repo.getExec(exec)
	var row settingRow
	if err := ex.GetContext(ctx, &row, ex.Rebind("SELECT key, value, updated_at FROM site_settings WHERE key = ?"), key); err != nil {
		return content.Setting{}, trapNoRowsErr(err, content.ErrSettingNotFound, "getting setting")
	}
	return content.Setting{Key: row.Key, Value: row.Value, UpdatedAt: row.UpdatedAt.UTC()}, nil
}

func (repo contentRepository) SetSetting(ctx context.Context, s content.Setting, exec ...core.DBExecutor) (content.Setting, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO site_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`),
		s.Key, s.Value, s.UpdatedAt.UTC(),
	)
	return s, errors.Wrap(err, "saving setting")
}

func (repo contentRepository) DeleteSetting(ctx context.Context, key string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM site_settings WHERE key = ?"), key)
	return checkAffected(res, err, content.ErrSettingNotFound, "deleting setting")
}

func (repo contentRepository) ListSettings(ctx context.Context, exec ...core.DBExecutor) ([]content.Setting, error) {
	var rows []settingRow
	if err := repo.getExec(exec).SelectContext(ctx, &rows, "SELECT key, value, updated_at FROM site_settings ORDER BY key"); err != nil {
		return nil, errors.Wrap(err, "listing settings")
	}
	out := make([]content.Setting, 0, len(rows))
	for _, row := range rows {
		out = append(out, content.Setting{Key: row.Key, Value: row.Value, UpdatedAt: row.UpdatedAt.UTC()})
	}
	return out, nil
}

// Page content

func (repo contentRepository) UpsertPageSection(ctx context.Context, ps content.PageSection, exec ...core.DBExecutor) (content.PageSection, error) {
	ex := repo.getExec(exec)
	var row pageSectionRow
	err := ex.GetContext(ctx, &row, ex.Rebind(`
		INSERT INTO page_content (id, page, section, content, content_en, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (page, section) DO UPDATE
		SET content = EXCLUDED.content, content_en = EXCLUDED.content_en, updated_at = EXCLUDED.updated_at
		RETURNING id, page, section, content, content_en, updated_at`),
		ps.ID, ps.Page, ps.Section, ps.Content, nullString(ps.ContentEn), ps.UpdatedAt.UTC(),
	)
	if err != nil {
		return content.PageSection{}, errors.Wrap(err, "saving page content")
	}
	return row.toPageSection(), nil
}

func (repo contentRepository) ListPageSections(ctx context.Context, page string, exec ...core.DBExecutor) ([]content.PageSection, error) {
	var w where
	if page != "" {
		w.add("page = ?", page)
	}
	ex := repo.getExec(exec)
	var rows []pageSectionRow
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(pageSectionSelect+w.String()+" ORDER BY page, section"), w.args...); err != nil {
		return nil, errors.Wrap(err, "listing page content")
	}
	out := make([]content.PageSection, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toPageSection())
	}
	return out, nil
}
