package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
)

const roomSelect = `SELECT r.id, r.name, r.room_type, r.course_id, r.created_by, r.created_at, 0 AS unread_count FROM chat_rooms r`

type (
	roomRow struct {
		ID          string      `db:"id"`
		Name        string      `db:"name"`
		RoomType    string      `db:"room_type"`
		CourseID    null.String `db:"course_id"`
		CreatedBy   null.String `db:"created_by"`
		CreatedAt   time.Time   `db:"created_at"`
		UnreadCount int         `db:"unread_count"`
	}

	memberRow struct {
		RoomID     string      `db:"room_id"`
		UserID     string      `db:"user_id"`
		FullName   string      `db:"full_name"`
		AvatarURL  null.String `db:"avatar_url"`
		JoinedAt   time.Time   `db:"joined_at"`
		LastReadAt null.Time   `db:"last_read_at"`
	}

	messageRow struct {
		ID         string      `db:"id"`
		RoomID     string      `db:"room_id"`
		SenderID   null.String `db:"sender_id"`
		SenderName string      `db:"sender_name"`
		Content    string      `db:"content"`
		CreatedAt  time.Time   `db:"created_at"`
	}
)

func (row roomRow) toRoom() chat.Room {
	return chat.Room{
		ID:          row.ID,
		Name:        row.Name,
		RoomType:    row.RoomType,
		CourseID:    row.CourseID.String,
		CreatedBy:   row.CreatedBy.String,
		CreatedAt:   row.CreatedAt.UTC(),
		UnreadCount: row.UnreadCount,
	}
}

func (row memberRow) toMember() chat.Member {
	m := chat.Member{
		RoomID:    row.RoomID,
		UserID:    row.UserID,
		FullName:  row.FullName,
		AvatarURL: row.AvatarURL.String,
		JoinedAt:  row.JoinedAt.UTC(),
	}
	if row.LastReadAt.Valid {
		t := row.LastReadAt.Time.UTC()
		m.LastReadAt = &t
	}
	return m
}

func (row messageRow) toMessage() chat.Message {
	return chat.Message{
		ID:         row.ID,
		RoomID:     row.RoomID,
		SenderID:   row.SenderID.String,
		SenderName: row.SenderName,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

type chatRepository struct {
	repository
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) *chatRepository {
	return &chatRepository{repository{db: db}}
}

func (repo chatRepository) CreateRoom(ctx context.Context, r chat.Room, exec ...core.DBExecutor) (chat.Room, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO chat_rooms (id, name, room_type, course_id, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.Name, r.RoomType, nullString(r.CourseID), nullString(r.CreatedBy), r.CreatedAt.UTC(),
	)
	if err != nil {
		return chat.Room{}, errors.Wrap(err, "inserting room")
	}
	return r, nil
}

func (repo chatRepository) GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (chat.Room, error) {
	ex := repo.getExec(exec)
	var row roomRow
	if err := ex.GetContext(ctx, &row, ex.Rebind(roomSelect+" WHERE r.id = ?"), id); err != nil {
		return chat.Room{}, trapNoRowsErr(err, chat.ErrRoomNotFound, "getting room")
	}
	return row.toRoom(), nil
}

func (repo chatRepository) FindDirectRoom(ctx context.Context, userA, userB string, exec ...core.DBExecutor) (chat.Room, error) {
	ex := repo.getExec(exec)
	var row roomRow
	err := ex.GetContext(ctx, &row, ex.Rebind(roomSelect+`
		WHERE r.room_type = ?
		  AND EXISTS (SELECT 1 FROM chat_room_members m WHERE m.room_id = r.id AND m.user_id = ?)
		  AND EXISTS (SELECT 1 FROM chat_room_members m WHERE m.room_id = r.id AND m.user_id = ?)
		ORDER BY r.created_at
		LIMIT 1`), chat.RoomDirect, userA, userB)
	if err != nil {
		return chat.Room{}, trapNoRowsErr(err, chat.ErrRoomNotFound, "finding direct room")
	}
	return row.toRoom(), nil
}

func (repo chatRepository) ListRooms(ctx context.Context, userID string, exec ...core.DBExecutor) ([]chat.Room, error) {
	ex := repo.getExec(exec)
	var rows []roomRow
	err := ex.SelectContext(ctx, &rows, ex.Rebind(`
		SELECT r.id, r.name, r.room_type, r.course_id, r.created_by, r.created_at,
		       (SELECT COUNT(*) FROM chat_messages msg
		        WHERE msg.room_id = r.id AND msg.sender_id IS DISTINCT FROM crm.user_id
		          AND (crm.last_read_at IS NULL OR msg.created_at > crm.last_read_at)) AS unread_count
		FROM chat_rooms r
		JOIN chat_room_members crm ON crm.room_id = r.id AND crm.user_id = ?
		ORDER BY COALESCE((SELECT MAX(msg.created_at) FROM chat_messages msg WHERE msg.room_id = r.id), r.created_at) DESC`),
		userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing rooms")
	}
	rooms := make([]chat.Room, 0, len(rows))
	for _, row := range rows {
		rooms = append(rooms, row.toRoom())
	}
	return rooms, nil
}

func (repo chatRepository) AddMember(ctx context.Context, m chat.Member, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO chat_room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT (room_id, user_id) DO NOTHING`),
		m.RoomID, m.UserID, m.JoinedAt.UTC(),
	)
	return errors.Wrap(err, "inserting room member")
}

func (repo chatRepository) RemoveMember(ctx context.Context, roomID, userID string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	res, err := ex.ExecContext(ctx, ex.Rebind("DELETE FROM chat_room_members WHERE room_id = ? AND user_id = ?"), roomID, userID)
	return checkAffected(res, err, chat.ErrNotMember, "deleting room member")
}

func (repo chatRepository) ListMembers(ctx context.Context, roomID string, exec ...core.DBExecutor) ([]chat.Member, error) {
	ex := repo.getExec(exec)
	var rows []memberRow
	err := ex.SelectContext(ctx, &rows, ex.Rebind(`
		SELECT m.room_id, m.user_id, COALESCE(p.full_name, '') AS full_name, p.avatar_url, m.joined_at, m.last_read_at
		FROM chat_room_members m
		LEFT JOIN profiles p ON p.user_id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.joined_at`), roomID)
	if err != nil {
		return nil, errors.Wrap(err, "listing room members")
	}
	members := make([]chat.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo chatRepository) IsMember(ctx context.Context, roomID, userID string, exec ...core.DBExecutor) (bool, error) {
	ex := repo.getExec(exec)
	var found bool
	err := ex.GetContext(ctx, &found, ex.Rebind(
		"SELECT EXISTS (SELECT 1 FROM chat_room_members WHERE room_id = ? AND user_id = ?)"), roomID, userID)
	return found, errors.Wrap(err, "checking room membership")
}

func (repo chatRepository) MarkRead(ctx context.Context, roomID, userID string, at time.Time, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		UPDATE chat_room_members SET last_read_at = GREATEST(COALESCE(last_read_at, ?), ?) WHERE room_id = ? AND user_id = ?`),
		at.UTC(), at.UTC(), roomID, userID,
	)
	return errors.Wrap(err, "marking room read")
}

func (repo chatRepository) CreateMessage(ctx context.Context, m chat.Message, exec ...core.DBExecutor) (chat.Message, error) {
	ex := repo.getExec(exec)
	_, err := ex.ExecContext(ctx, ex.Rebind(`
		INSERT INTO chat_messages (id, room_id, sender_id, content, created_at) VALUES (?, ?, ?, ?, ?)`),
		m.ID, m.RoomID, nullString(m.SenderID), m.Content, m.CreatedAt.UTC(),
	)
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return m, nil
}

func (repo chatRepository) ListMessages(ctx context.Context, roomID string, filter chat.MessageFilter, exec ...core.DBExecutor) ([]chat.Message, error) {
	var w where
	w.add("msg.room_id = ?", roomID)
	if !filter.Before.IsZero() {
		w.add("msg.created_at < ?", filter.Before.UTC())
	}
	query := `
		SELECT msg.id, msg.room_id, msg.sender_id, COALESCE(p.full_name, '') AS sender_name, msg.content, msg.created_at
		FROM chat_messages msg
		LEFT JOIN profiles p ON p.user_id = msg.sender_id` + w.String() + `
		ORDER BY msg.created_at DESC
		LIMIT ?`

	ex := repo.getExec(exec)
	var rows []messageRow
	if err := ex.SelectContext(ctx, &rows, ex.Rebind(query), append(w.args, filter.Limit)...); err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.toMessage())
	}
	return msgs, nil
}
