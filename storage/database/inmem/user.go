package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func cloneUser(u *user.User) user.User {
	usr := *u
	usr.Roles = copyStrings(u.Roles)
	sort.Strings(usr.Roles)
	if u.PasswordHash != nil {
		usr.PasswordHash = append([]byte{}, u.PasswordHash...)
	}
	return usr
}

func (repo *userRepository) emailTaken(email string, excludedIDs []string) bool {
	for _, u := range repo.db.users {
		if strings.EqualFold(u.Email, email) && !contains(excludedIDs, u.ID) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs []string, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.emailTaken(email, excludedIDs) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(usr.Email, nil) {
		return user.User{}, user.ErrEmailExists
	}
	u := cloneUser(&usr)
	repo.db.users[usr.ID] = &u
	return cloneUser(&u), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		if filter != nil {
			if !matches(filter.Search, u.FullName, u.Email, u.Phone) {
				continue
			}
			if len(filter.Roles) > 0 {
				var found bool
				for _, role := range filter.Roles {
					found = found || u.HasRole(role)
				}
				if !found {
					continue
				}
			}
			if filter.IsActive != nil && u.IsActive != *filter.IsActive {
				continue
			}
			if filter.PendingTeacher != nil && (u.TeacherApplicant && !u.TeacherApproved) != *filter.PendingTeacher {
				continue
			}
			if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
				continue
			}
			if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
				continue
			}
		}
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if u, ok := repo.db.users[filter.ID]; ok {
			return cloneUser(u), nil
		}
	case filter.Email != "":
		for _, u := range repo.db.users {
			if strings.EqualFold(u.Email, filter.Email) {
				return cloneUser(u), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, []string{usr.ID}) {
		return user.User{}, user.ErrEmailExists
	}
	u := cloneUser(&usr)
	u.CreatedAt = orig.CreatedAt
	u.LastLogin = orig.LastLogin
	repo.db.users[usr.ID] = &u
	return cloneUser(&u), nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if u, ok := repo.db.users[usr.ID]; ok {
		u.LastLogin = usr.LastLogin
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			n++
		}
	}
	return n, nil
}
