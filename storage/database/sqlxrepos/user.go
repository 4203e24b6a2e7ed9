package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/user"
)

const userSelect = `
SELECT u.id, u.email, u.password_hash, u.last_login, u.created_at, u.updated_at,
       p.full_name, p.phone, p.bio, p.avatar_url, p.is_active, p.is_teacher, p.teacher_approved,
       ARRAY(SELECT r.role FROM user_roles r WHERE r.user_id = u.id ORDER BY r.role) AS roles
FROM users u
JOIN profiles p ON p.user_id = u.id`

var userOrderings = map[string]string{
	"created_at": "u.created_at",
	"updated_at": "u.updated_at",
	"last_login": "u.last_login",
	"email":      "u.email",
	"full_name":  "p.full_name",
}

type userRow struct {
	ID              string         `db:"id"`
	Email           string         `db:"email"`
	PasswordHash    null.Bytes     `db:"password_hash"`
	LastLogin       null.Time      `db:"last_login"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	FullName        string         `db:"full_name"`
	Phone           null.String    `db:"phone"`
	Bio             null.String    `db:"bio"`
	AvatarURL       null.String    `db:"avatar_url"`
	IsActive        bool           `db:"is_active"`
	IsTeacher       bool           `db:"is_teacher"`
	TeacherApproved bool           `db:"teacher_approved"`
	Roles           pq.StringArray `db:"roles"`
}

func (row userRow) toUser() user.User {
	return user.User{
		ID:               row.ID,
		Email:            row.Email,
		FullName:         row.FullName,
		Phone:            row.Phone.String,
		Bio:              row.Bio.String,
		AvatarURL:        row.AvatarURL.String,
		IsActive:         row.IsActive,
		TeacherApplicant: row.IsTeacher,
		TeacherApproved:  row.TeacherApproved,
		Roles:            []string(row.Roles),
		PasswordHash:     row.PasswordHash.Bytes,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
		LastLogin:        row.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs []string, exec ...core.DBExecutor) error {
	var w where
	w.add("lower(email) = lower(?)", email)
	if len(excludedIDs) > 0 {
		w.add("id NOT IN (?)", excludedIDs)
	}
	var ids []string
	if err := selectIn(ctx, repo.getExec(exec), &ids, "SELECT id FROM users"+w.String()+" LIMIT 1", w.args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if len(ids) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.atomic(ctx, exec, func(tx core.DBExecutor) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users (id, email, password_hash, last_login, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			usr.ID, usr.Email, null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil), nullTimeZero(usr.LastLogin), usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO profiles (id, user_id, full_name, email, phone, bio, avatar_url, is_active, is_teacher, teacher_approved, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), usr.ID, usr.FullName, usr.Email, nullString(usr.Phone), nullString(usr.Bio), nullString(usr.AvatarURL),
			usr.IsActive, usr.TeacherApplicant, usr.TeacherApproved, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting profile")
		}
		return repo.setRoles(ctx, tx, usr.ID, usr.Roles)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (repo userRepository) setRoles(ctx context.Context, tx core.DBExecutor, userID string, roles []string) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM user_roles WHERE user_id = ?"), userID); err != nil {
		return errors.Wrap(err, "clearing roles")
	}
	for _, role := range roles {
		_, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO user_roles (id, user_id, role) VALUES (?, ?, ?)"), uuid.NewString(), userID, role)
		if err != nil {
			return errors.Wrap(err, "inserting role")
		}
	}
	return nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where
	if filter != nil {
		w.search(filter.Search, "p.full_name", "u.email", "p.phone")
		if len(filter.Roles) > 0 {
			w.add("EXISTS (SELECT 1 FROM user_roles r WHERE r.user_id = u.id AND r.role IN (?))", filter.Roles)
		}
		if filter.IsActive != nil {
			w.add("p.is_active = ?", *filter.IsActive)
		}
		if filter.PendingTeacher != nil {
			w.add("(p.is_teacher AND NOT p.teacher_approved) = ?", *filter.PendingTeacher)
		}
		if !filter.CreatedFrom.IsZero() {
			w.add("u.created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			w.add("u.created_at <= ?", filter.CreatedTo.UTC())
		}
	}
	query := userSelect + w.String() + " ORDER BY " + core.OrderBy(ordering, userOrderings, "u.created_at DESC")

	var rows []userRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, query, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var w where
	switch {
	case filter.ID != "":
		w.add("u.id = ?", filter.ID)
	case filter.Email != "":
		w.add("lower(u.email) = lower(?)", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	ex := repo.getExec(exec)
	var row userRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(userSelect+w.String()), w.args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.toUser(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	err := repo.atomic(ctx, exec, func(tx core.DBExecutor) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE users SET email = ?, password_hash = ?, updated_at = ? WHERE id = ?"),
			usr.Email, null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil), usr.UpdatedAt.UTC(), usr.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "updating user")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return user.ErrNotFound
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(`
			UPDATE profiles
			SET full_name = ?, email = ?, phone = ?, bio = ?, avatar_url = ?, is_active = ?, is_teacher = ?, teacher_approved = ?, updated_at = ?
			WHERE user_id = ?`),
			usr.FullName, usr.Email, nullString(usr.Phone), nullString(usr.Bio), nullString(usr.AvatarURL),
			usr.IsActive, usr.TeacherApplicant, usr.TeacherApproved, usr.UpdatedAt.UTC(), usr.ID,
		)
		if err != nil {
			return errors.Wrap(err, "updating profile")
		}
		return repo.setRoles(ctx, tx, usr.ID, usr.Roles)
	})
	if err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID}, exec...)
}

func (repo userRepository) SetLastLogin(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	ex := repo.getExec(exec)
	if _, err := ex.ExecContext(ctx, ex.Rebind("UPDATE users SET last_login = ? WHERE id = ?"), usr.LastLogin.UTC(), usr.ID); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := execIn(ctx, repo.getExec(exec), "DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "deleting users")
}
