package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) *chatRepository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateRoom(_ context.Context, r chat.Room, _ ...core.DBExecutor) (chat.Room, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	r.Members, r.UnreadCount = nil, 0
	repo.db.rooms[r.ID] = &r
	repo.db.members[r.ID] = make(map[string]*chat.Member)
	return r, nil
}

func (repo *chatRepository) GetRoom(_ context.Context, id string, _ ...core.DBExecutor) (chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.rooms[id]; ok {
		return *r, nil
	}
	return chat.Room{}, chat.ErrRoomNotFound
}

func (repo *chatRepository) FindDirectRoom(_ context.Context, userA, userB string, _ ...core.DBExecutor) (chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var found *chat.Room
	for id, r := range repo.db.rooms {
		if r.RoomType != chat.RoomDirect {
			continue
		}
		members := repo.db.members[id]
		if members[userA] == nil || members[userB] == nil {
			continue
		}
		if found == nil || r.CreatedAt.Before(found.CreatedAt) {
			found = r
		}
	}
	if found == nil {
		return chat.Room{}, chat.ErrRoomNotFound
	}
	return *found, nil
}

// lastActivity must be called with the lock held.
func (repo *chatRepository) lastActivity(r *chat.Room) time.Time {
	if msgs := repo.db.messages[r.ID]; len(msgs) > 0 {
		return msgs[len(msgs)-1].CreatedAt
	}
	return r.CreatedAt
}

func (repo *chatRepository) ListRooms(_ context.Context, userID string, _ ...core.DBExecutor) ([]chat.Room, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rooms := make([]chat.Room, 0)
	activity := make(map[string]time.Time)
	for id, r := range repo.db.rooms {
		m := repo.db.members[id][userID]
		if m == nil {
			continue
		}
		out := *r
		for _, msg := range repo.db.messages[id] {
			if msg.SenderID != userID && (m.LastReadAt == nil || msg.CreatedAt.After(*m.LastReadAt)) {
				out.UnreadCount++
			}
		}
		activity[id] = repo.lastActivity(r)
		rooms = append(rooms, out)
	}
	sort.Slice(rooms, func(i, j int) bool { return activity[rooms[i].ID].After(activity[rooms[j].ID]) })
	return rooms, nil
}

func (repo *chatRepository) AddMember(_ context.Context, m chat.Member, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	members, ok := repo.db.members[m.RoomID]
	if !ok {
		return chat.ErrRoomNotFound
	}
	if _, ok := members[m.UserID]; !ok {
		m.LastReadAt = copyTime(m.LastReadAt)
		members[m.UserID] = &m
	}
	return nil
}

func (repo *chatRepository) RemoveMember(_ context.Context, roomID, userID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.db.members[roomID][userID] == nil {
		return chat.ErrNotMember
	}
	delete(repo.db.members[roomID], userID)
	return nil
}

func (repo *chatRepository) ListMembers(_ context.Context, roomID string, _ ...core.DBExecutor) ([]chat.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]chat.Member, 0, len(repo.db.members[roomID]))
	for _, m := range repo.db.members[roomID] {
		out := *m
		out.LastReadAt = copyTime(m.LastReadAt)
		out.FullName, out.AvatarURL = "", ""
		if u, ok := repo.db.users[m.UserID]; ok {
			out.FullName, out.AvatarURL = u.FullName, u.AvatarURL
		}
		members = append(members, out)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *chatRepository) IsMember(_ context.Context, roomID, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.db.members[roomID][userID] != nil, nil
}

func (repo *chatRepository) MarkRead(_ context.Context, roomID, userID string, at time.Time, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m := repo.db.members[roomID][userID]
	if m == nil {
		return nil
	}
	if m.LastReadAt == nil || at.After(*m.LastReadAt) {
		t := at.UTC()
		m.LastReadAt = &t
	}
	return nil
}

func (repo *chatRepository) CreateMessage(_ context.Context, m chat.Message, _ ...core.DBExecutor) (chat.Message, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rooms[m.RoomID]; !ok {
		return chat.Message{}, chat.ErrRoomNotFound
	}
	msgs := append(repo.db.messages[m.RoomID], m)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	repo.db.messages[m.RoomID] = msgs
	return m, nil
}

func (repo *chatRepository) ListMessages(_ context.Context, roomID string, filter chat.MessageFilter, _ ...core.DBExecutor) ([]chat.Message, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	msgs := repo.db.messages[roomID]
	out := make([]chat.Message, 0)
	for i := len(msgs) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		msg := msgs[i]
		if !filter.Before.IsZero() && !msg.CreatedAt.Before(filter.Before) {
			continue
		}
		msg.SenderName = repo.db.fullName(msg.SenderID)
		out = append(out, msg)
	}
	return out, nil
}
