package echoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/chat"
	"github.com/alphazero/academy/services/metrics"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMsgSize = 16 << 10
)

type chatApi struct {
	svc      *chat.Service
	validate *validator.Validate
	upgrader websocket.Upgrader
	logger   core.Logger
	metrics  *metrics.Metrics
}

func registerChatAPI(
	g *echo.Group,
	jwt, wsJwt echo.MiddlewareFunc,
	svc *chat.Service,
	validate *validator.Validate,
	conf *core.Config,
	logger core.Logger,
	m *metrics.Metrics,
) {
	api := chatApi{
		svc:      svc,
		validate: validate,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin(conf.Server.AllowedOrigins)},
		logger:   logger,
		metrics:  m,
	}

	cg := g.Group("/chat/rooms")
	// browsers cannot set headers on websocket handshakes
	cg.GET("/:id/ws", api.stream, wsJwt)

	rg := cg.Group("", jwt)
	rg.POST("", api.createRoom)
	rg.GET("", api.listRooms)
	rg.GET("/:id", api.retrieveRoom)
	rg.POST("/:id/members", api.addMember)
	rg.DELETE("/:id/members/:userId", api.removeMember)
	rg.GET("/:id/messages", api.listMessages)
	rg.POST("/:id/messages", api.sendMessage)
	rg.POST("/:id/read", api.markRead)
}

// checkOrigin accepts same-origin handshakes and the configured origins; no configured origin
// means any origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get(echo.HeaderOrigin)
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

func (api *chatApi) createRoom(ctx echo.Context) error {
	var data chat.NewRoom
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRoom")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	room, err := api.svc.CreateRoom(ctx.Request().Context(), getActor(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating room")
	}
	return ctx.JSON(http.StatusCreated, room)
}

func (api *chatApi) listRooms(ctx echo.Context) error {
	rooms, err := api.svc.ListRooms(ctx.Request().Context(), getActor(ctx))
	if err != nil {
		return errors.Wrap(err, "listing rooms")
	}
	if rooms == nil {
		rooms = []chat.Room{}
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *chatApi) retrieveRoom(ctx echo.Context) error {
	room, err := api.svc.GetRoom(ctx.Request().Context(), getActor(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting room")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *chatApi) addMember(ctx echo.Context) error {
	var data chat.AddMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMember")
	}
	data.UserID = core.CleanString(data.UserID)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	room, err := api.svc.AddMember(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data.UserID)
	if err != nil {
		return errors.Wrap(err, "adding member")
	}
	return ctx.JSON(http.StatusOK, room)
}

func (api *chatApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), ctx.Param("userId")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *chatApi) listMessages(ctx echo.Context) error {
	var filter chat.MessageFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []chat.Message{})
	}
	filter.Clean()

	msgs, err := api.svc.ListMessages(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), filter)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatApi) sendMessage(ctx echo.Context) error {
	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}

	msg, err := api.svc.SendMessage(ctx.Request().Context(), getActor(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	api.messageSent()
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) markRead(ctx echo.Context) error {
	if err := api.svc.MarkRead(ctx.Request().Context(), getActor(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "marking room as read")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// stream upgrades to a websocket relaying the room events. Clients post messages as
// {"content": "..."} frames.
func (api *chatApi) stream(ctx echo.Context) error {
	actor := getActor(ctx)
	roomID := ctx.Param("id")

	sctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// subscribe before upgrading so access errors are plain HTTP errors
	sub, err := api.svc.Subscribe(sctx, actor, roomID)
	if err != nil {
		return errors.Wrap(err, "subscribing to room")
	}
	defer sub.Close()

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already answered the client
		api.logger.Warn(fmt.Sprintf("websocket upgrade: %v", err))
		return nil
	}
	defer conn.Close()
	if api.metrics != nil {
		api.metrics.WebsocketClients.Inc()
		defer api.metrics.WebsocketClients.Dec()
	}

	replies := make(chan interface{}, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		api.writePump(sctx, conn, actor.ID, sub, replies)
	}()

	conn.SetReadLimit(wsMaxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var data chat.NewMessage
		if err := conn.ReadJSON(&data); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				api.logger.Warn(fmt.Sprintf("websocket read: %v", err))
			}
			break
		}
		// the message reaches this client back through the subscription
		if _, err := api.svc.SendMessage(sctx, actor, roomID, data); err != nil {
			select {
			case replies <- echo.Map{"type": "error", "error": errors.Cause(err).Error()}:
			default:
			}
			continue
		}
		api.messageSent()
	}

	cancel()
	<-done
	return nil
}

func (api *chatApi) messageSent() {
	if api.metrics != nil {
		api.metrics.ChatMessagesSent.Inc()
	}
}

// removedMember returns whether payload is the event removing userID from the room.
func removedMember(payload []byte, userID string) bool {
	var ev chat.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return false
	}
	return ev.Type == chat.EventMemberRemoved && ev.UserID == userID
}

// writePump is the only writer of conn. It closes conn once userID is removed from the room.
func (api *chatApi) writePump(ctx context.Context, conn *websocket.Conn, userID string, sub core.Subscription, replies <-chan interface{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = conn.WriteMessage(websocket.TextMessage, payload)
			if err == nil && removedMember(payload, userID) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "removed from room"), time.Now().Add(wsWriteWait))
				_ = conn.Close()
				return
			}
		case reply := <-replies:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = conn.WriteJSON(reply)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err = conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			// unblock the reader
			_ = conn.Close()
			return
		}
	}
}
