package chat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
	"github.com/alphazero/academy/core/user"
	"github.com/alphazero/academy/testutil"
)

func actorOf(u user.User) core.Actor {
	return core.Actor{ID: u.ID, Admin: u.IsAdmin(), Teacher: u.IsTeacher(), Student: u.IsStudent()}
}

func nextEvent(t *testing.T, sub core.Subscription) chat.Event {
	t.Helper()
	select {
	case payload := <-sub.Messages():
		var ev chat.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			t.Fatalf("Unmarshal(): %v", err)
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return chat.Event{}
	}
}

func TestService_CreateRoom(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.id", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other@test.id", "", []string{user.RoleTeacher}, true)
	crs := testutil.CreateCourse(t, env.CourseRepo, teacher.ID, "Go", 0, true)

	direct, err := env.ChatSvc.CreateRoom(ctx, actorOf(student), chat.NewRoom{RoomType: chat.RoomDirect, MemberIDs: []string{teacher.ID, student.ID}})
	if err != nil {
		t.Fatalf("CreateRoom(direct): %v", err)
	}
	if len(direct.Members) != 2 {
		t.Errorf("direct members = %+v; want 2", direct.Members)
	}

	tests := []struct {
		name      string
		actor     user.User
		nr        chat.NewRoom
		wantErr   error
		wantField string
		wantRoom  string
		wantName  string
	}{
		{name: "direct needs one other member", actor: student, nr: chat.NewRoom{RoomType: chat.RoomDirect}, wantField: "member_ids"},
		{name: "unknown member", actor: student, nr: chat.NewRoom{RoomType: chat.RoomGroup, MemberIDs: []string{"00000000-0000-4000-8000-000000000000"}}, wantField: "member_ids"},
		{name: "direct room reused", actor: teacher, nr: chat.NewRoom{RoomType: chat.RoomDirect, MemberIDs: []string{student.ID}}, wantRoom: direct.ID},
		{name: "course required", actor: teacher, nr: chat.NewRoom{RoomType: chat.RoomCourse}, wantField: "course_id"},
		{name: "course of another teacher", actor: other, nr: chat.NewRoom{RoomType: chat.RoomCourse, CourseID: crs.ID}, wantErr: core.ErrForbidden},
		{name: "course room named after the course", actor: teacher, nr: chat.NewRoom{RoomType: chat.RoomCourse, CourseID: crs.ID}, wantName: "Go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := env.ChatSvc.CreateRoom(ctx, actorOf(tt.actor), tt.nr)
			switch {
			case tt.wantField != "":
				vErr, ok := errors.Cause(err).(*core.ValidationError)
				if !ok || len(vErr.Fields) == 0 || vErr.Fields[0].Field != tt.wantField {
					t.Fatalf("CreateRoom() error = %v; want a %s error", err, tt.wantField)
				}
				return
			case errors.Cause(err) != tt.wantErr:
				t.Fatalf("CreateRoom() error = %v, wantErr %v", err, tt.wantErr)
			case err != nil:
				return
			}
			if tt.wantRoom != "" && room.ID != tt.wantRoom {
				t.Errorf("CreateRoom() = %s; want %s", room.ID, tt.wantRoom)
			}
			if tt.wantName != "" && room.Name != tt.wantName {
				t.Errorf("CreateRoom() name = %q; want %q", room.Name, tt.wantName)
			}
		})
	}
}

func TestService_messages(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.id", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, env.UserRepo, "Outsider", "outsider@test.id", "", []string{user.RoleStudent}, true)

	room, err := env.ChatSvc.CreateRoom(ctx, actorOf(teacher), chat.NewRoom{Name: "Cohort", RoomType: chat.RoomGroup, MemberIDs: []string{student.ID}})
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}

	if _, err = env.ChatSvc.Subscribe(ctx, actorOf(outsider), room.ID); err != chat.ErrNotMember {
		t.Errorf("Subscribe(outsider) error = %v; want %v", err, chat.ErrNotMember)
	}
	sub, err := env.ChatSvc.Subscribe(ctx, actorOf(student), room.ID)
	if err != nil {
		t.Fatalf("Subscribe(): %v", err)
	}
	defer sub.Close()

	if _, err = env.ChatSvc.SendMessage(ctx, actorOf(outsider), room.ID, chat.NewMessage{Content: "hi"}); err != chat.ErrNotMember {
		t.Errorf("SendMessage(outsider) error = %v; want %v", err, chat.ErrNotMember)
	}
	if _, err = env.ChatSvc.SendMessage(ctx, actorOf(teacher), room.ID, chat.NewMessage{Content: "   "}); err == nil {
		t.Error("SendMessage(blank) error = nil")
	}
	for _, content := range []string{"first", " second "} {
		if _, err = env.ChatSvc.SendMessage(ctx, actorOf(teacher), room.ID, chat.NewMessage{Content: content}); err != nil {
			t.Fatalf("SendMessage(): %v", err)
		}
	}

	ev := nextEvent(t, sub)
	if ev.Type != chat.EventMessage || ev.Message == nil || ev.Message.Content != "first" || ev.Message.SenderName != "Teacher" {
		t.Errorf("failed! event = %+v", ev)
	}
	if ev = nextEvent(t, sub); ev.Message == nil || ev.Message.Content != "second" {
		t.Errorf("failed! event = %+v", ev)
	}

	msgs, err := env.ChatSvc.ListMessages(ctx, actorOf(student), room.ID, chat.MessageFilter{})
	if err != nil {
		t.Fatalf("ListMessages(): %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("failed! messages = %+v", msgs)
	}
}

func TestService_RemoveMember(t *testing.T) {
	env := testutil.NewEnv(t, nil)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@test.id", "", []string{user.RoleTeacher}, true)
	student := testutil.CreateUser(t, env.UserRepo, "Student", "student@test.id", "", []string{user.RoleStudent}, true)
	peer := testutil.CreateUser(t, env.UserRepo, "Peer", "peer@test.id", "", []string{user.RoleStudent}, true)

	room, err := env.ChatSvc.CreateRoom(ctx, actorOf(teacher), chat.NewRoom{Name: "Cohort", RoomType: chat.RoomGroup, MemberIDs: []string{student.ID, peer.ID}})
	if err != nil {
		t.Fatalf("CreateRoom(): %v", err)
	}
	sub, err := env.ChatSvc.Subscribe(ctx, actorOf(peer), room.ID)
	if err != nil {
		t.Fatalf("Subscribe(): %v", err)
	}
	defer sub.Close()

	if err = env.ChatSvc.RemoveMember(ctx, actorOf(peer), room.ID, student.ID); err != core.ErrForbidden {
		t.Errorf("RemoveMember(peer) error = %v; want %v", err, core.ErrForbidden)
	}
	if err = env.ChatSvc.RemoveMember(ctx, actorOf(teacher), room.ID, student.ID); err != nil {
		t.Fatalf("RemoveMember(): %v", err)
	}
	if ev := nextEvent(t, sub); ev.Type != chat.EventMemberRemoved || ev.UserID != student.ID || ev.Message != nil {
		t.Errorf("failed! event = %+v", ev)
	}

	if _, err = env.ChatSvc.GetRoom(ctx, actorOf(student), room.ID); err != chat.ErrNotMember {
		t.Errorf("GetRoom(removed) error = %v; want %v", err, chat.ErrNotMember)
	}
	if _, err = env.ChatSvc.SendMessage(ctx, actorOf(student), room.ID, chat.NewMessage{Content: "still here?"}); err != chat.ErrNotMember {
		t.Errorf("SendMessage(removed) error = %v; want %v", err, chat.ErrNotMember)
	}

	// members may leave on their own
	if err = env.ChatSvc.RemoveMember(ctx, actorOf(peer), room.ID, peer.ID); err != nil {
		t.Fatalf("RemoveMember(self): %v", err)
	}
	if ev := nextEvent(t, sub); ev.Type != chat.EventMemberRemoved || ev.UserID != peer.ID {
		t.Errorf("failed! event = %+v", ev)
	}
}
