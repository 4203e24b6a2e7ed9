package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/course"
	"github.com/alphazero/academy/core/user"
)

var (
	// errors
	ErrRoomNotFound = errors.New("chat room not found")
	ErrNotMember    = errors.New("you are not a member of this room")
)

type (
	Repository interface {
		CreateRoom(ctx context.Context, r Room, exec ...core.DBExecutor) (Room, error)
		GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (Room, error)
		// FindDirectRoom returns the direct room shared by two users.
		FindDirectRoom(ctx context.Context, userA, userB string, exec ...core.DBExecutor) (Room, error)
		// ListRooms returns the rooms of a user with their unread message count.
		ListRooms(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Room, error)

		// AddMember is a no-op if the user already is a member.
		AddMember(ctx context.Context, m Member, exec ...core.DBExecutor) error
		RemoveMember(ctx context.Context, roomID, userID string, exec ...core.DBExecutor) error
		ListMembers(ctx context.Context, roomID string, exec ...core.DBExecutor) ([]Member, error)
		IsMember(ctx context.Context, roomID, userID string, exec ...core.DBExecutor) (bool, error)
		MarkRead(ctx context.Context, roomID, userID string, at time.Time, exec ...core.DBExecutor) error

		CreateMessage(ctx context.Context, m Message, exec ...core.DBExecutor) (Message, error)
		// ListMessages returns the newest messages created before filter.Before, newest first.
		ListMessages(ctx context.Context, roomID string, filter MessageFilter, exec ...core.DBExecutor) ([]Message, error)
	}

	Service struct {
		repo    Repository
		tx      core.TxRunner
		broker  core.Broker
		users   *user.Service
		courses *course.Service
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	tx core.TxRunner,
	broker core.Broker,
	users *user.Service,
	courses *course.Service,
	logger core.Logger,
) *Service {
	return &Service{repo: repo, tx: tx, broker: broker, users: users, courses: courses, logger: logger}
}

// CreateRoom creates a room with the actor as first member. A direct room joins exactly one
// other user and is reused when both users already share one.
func (svc *Service) CreateRoom(ctx context.Context, actor core.Actor, nr NewRoom) (Room, error) {
	members := make([]string, 0, len(nr.MemberIDs))
	seen := map[string]bool{actor.ID: true}
	for _, id := range nr.MemberIDs {
		if !seen[id] {
			seen[id] = true
			members = append(members, id)
		}
	}
	for _, id := range members {
		if _, err := svc.users.GetByID(ctx, id); err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return Room{}, core.NewFieldError("member_ids", "unknown user "+id)
			}
			return Room{}, errors.Wrap(err, "getting member")
		}
	}

	switch nr.RoomType {
	case RoomDirect:
		if len(members) != 1 {
			return Room{}, core.NewFieldError("member_ids", "a direct room needs exactly one other member")
		}
		existing, err := svc.repo.FindDirectRoom(ctx, actor.ID, members[0])
		if err == nil {
			return svc.withMembers(ctx, existing)
		} else if errors.Cause(err) != ErrRoomNotFound {
			return Room{}, errors.Wrap(err, "finding direct room")
		}
		nr.CourseID = ""
	case RoomCourse:
		if nr.CourseID == "" {
			return Room{}, core.NewFieldError("course_id", "this field is required")
		}
		crs, err := svc.courses.Get(ctx, nr.CourseID)
		if err != nil {
			if errors.Cause(err) == course.ErrNotFound {
				return Room{}, core.NewFieldError("course_id", course.ErrNotFound.Error())
			}
			return Room{}, errors.Wrap(err, "getting course")
		}
		if !actor.CanManage(crs.TeacherID) {
			return Room{}, core.ErrForbidden
		}
		if nr.Name == "" {
			nr.Name = crs.Title
		}
	default:
		nr.CourseID = ""
	}

	now := time.Now().UTC()
	room := Room{
		ID:        uuid.NewString(),
		Name:      nr.Name,
		RoomType:  nr.RoomType,
		CourseID:  nr.CourseID,
		CreatedBy: actor.ID,
		CreatedAt: now,
	}
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if room, err = svc.repo.CreateRoom(ctx, room, exec); err != nil {
			return errors.Wrap(err, "creating room")
		}
		for _, id := range append([]string{actor.ID}, members...) {
			if err = svc.repo.AddMember(ctx, Member{RoomID: room.ID, UserID: id, JoinedAt: now}, exec); err != nil {
				return errors.Wrap(err, "adding member")
			}
		}
		return nil
	})
	if err != nil {
		return Room{}, err
	}
	return svc.withMembers(ctx, room)
}

func (svc *Service) withMembers(ctx context.Context, room Room) (Room, error) {
	members, err := svc.repo.ListMembers(ctx, room.ID)
	if err != nil {
		return Room{}, errors.Wrap(err, "listing members")
	}
	room.Members = members
	return room, nil
}

// GetRoom returns a room the actor may read: members, or admins.
func (svc *Service) GetRoom(ctx context.Context, actor core.Actor, id string) (Room, error) {
	if !core.IsUUID(id) {
		return Room{}, ErrRoomNotFound
	}
	room, err := svc.repo.GetRoom(ctx, id)
	if err != nil {
		return Room{}, err
	}
	if err = svc.checkMember(ctx, actor, room.ID); err != nil {
		return Room{}, err
	}
	return svc.withMembers(ctx, room)
}

func (svc *Service) checkMember(ctx context.Context, actor core.Actor, roomID string) error {
	if actor.Admin {
		return nil
	}
	ok, err := svc.repo.IsMember(ctx, roomID, actor.ID)
	if err != nil {
		return errors.Wrap(err, "checking membership")
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

// AddMember adds a user to a group or course room. Only its creator or an admin may do it.
func (svc *Service) AddMember(ctx context.Context, actor core.Actor, roomID, userID string) (Room, error) {
	room, err := svc.GetRoom(ctx, actor, roomID)
	if err != nil {
		return Room{}, err
	}
	if room.RoomType == RoomDirect || !(actor.Admin || actor.Owns(room.CreatedBy)) {
		return Room{}, core.ErrForbidden
	}
	if _, err = svc.users.GetByID(ctx, userID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Room{}, core.NewFieldError("user_id", user.ErrNotFound.Error())
		}
		return Room{}, errors.Wrap(err, "getting user")
	}
	if err = svc.repo.AddMember(ctx, Member{RoomID: room.ID, UserID: userID, JoinedAt: time.Now().UTC()}); err != nil {
		return Room{}, errors.Wrap(err, "adding member")
	}
	return svc.withMembers(ctx, room)
}

// RemoveMember removes a user from a room. Members may leave; the creator or an admin may remove anybody.
func (svc *Service) RemoveMember(ctx context.Context, actor core.Actor, roomID, userID string) error {
	room, err := svc.GetRoom(ctx, actor, roomID)
	if err != nil {
		return err
	}
	if !(actor.Owns(userID) || actor.Admin || actor.Owns(room.CreatedBy)) {
		return core.ErrForbidden
	}
	if err = svc.repo.RemoveMember(ctx, room.ID, userID); err != nil {
		return err
	}
	// open streams of the removed member close on this event
	svc.publish(ctx, room.ID, Event{Type: EventMemberRemoved, UserID: userID})
	return nil
}

func (svc *Service) publish(ctx context.Context, roomID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err == nil {
		err = svc.broker.Publish(ctx, Channel(roomID), payload)
	}
	if err != nil {
		svc.logger.Error(fmt.Sprintf("%+v", errors.Wrapf(err, "publishing %s event", ev.Type)))
	}
}

func (svc *Service) ListRooms(ctx context.Context, actor core.Actor) ([]Room, error) {
	return svc.repo.ListRooms(ctx, actor.ID)
}

// ListMessages returns a page of messages in chronological order.
func (svc *Service) ListMessages(ctx context.Context, actor core.Actor, roomID string, filter MessageFilter) ([]Message, error) {
	if _, err := svc.GetRoom(ctx, actor, roomID); err != nil {
		return nil, err
	}
	filter.Clean()
	msgs, err := svc.repo.ListMessages(ctx, roomID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "listing messages")
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SendMessage persists a message then publishes it on the room channel.
func (svc *Service) SendMessage(ctx context.Context, actor core.Actor, roomID string, nm NewMessage) (Message, error) {
	if err := nm.clean(); err != nil {
		return Message{}, err
	}
	if !core.IsUUID(roomID) {
		return Message{}, ErrRoomNotFound
	}
	if _, err := svc.repo.GetRoom(ctx, roomID); err != nil {
		return Message{}, err
	}
	ok, err := svc.repo.IsMember(ctx, roomID, actor.ID)
	if err != nil {
		return Message{}, errors.Wrap(err, "checking membership")
	}
	if !ok {
		return Message{}, ErrNotMember
	}

	sender, err := svc.users.GetByID(ctx, actor.ID)
	if err != nil {
		return Message{}, errors.Wrap(err, "getting sender")
	}
	msg, err := svc.repo.CreateMessage(ctx, Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.FullName,
		Content:    nm.Content,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	if err = svc.repo.MarkRead(ctx, roomID, actor.ID, msg.CreatedAt); err != nil {
		svc.logger.Warn(fmt.Sprintf("%+v", errors.Wrap(err, "marking room read")))
	}

	// the message is saved; late readers get it from ListMessages
	svc.publish(ctx, roomID, Event{Type: EventMessage, Message: &msg})
	return msg, nil
}

func (svc *Service) MarkRead(ctx context.Context, actor core.Actor, roomID string) error {
	if _, err := svc.GetRoom(ctx, actor, roomID); err != nil {
		return err
	}
	return svc.repo.MarkRead(ctx, roomID, actor.ID, time.Now().UTC())
}

// Subscribe streams the events of a room the actor may read.
func (svc *Service) Subscribe(ctx context.Context, actor core.Actor, roomID string) (core.Subscription, error) {
	if _, err := svc.GetRoom(ctx, actor, roomID); err != nil {
		return nil, err
	}
	return svc.broker.Subscribe(ctx, Channel(roomID))
}
