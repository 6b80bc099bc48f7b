package session

import (
	"encoding/json"
	"fmt"

	"github.com/easelhq/easel/backend/internal/drawing"
)

// Event names on the realtime channel. Client payloads are relayed with the
// sender's identity attached; the names match what the web client emits.
const (
	EventJoinRoom    = "join-room"
	EventRoomJoined  = "room-joined"
	EventLoadDrawing = "load-drawing"
	EventUserJoined  = "user-joined"
	EventUserLeft    = "user-left"
	EventUsersUpdate = "users-update"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
	EventCursorMove  = "cursor-move"
	EventError       = "error"
)

// Wire framing for both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// One variant per inbound event name
type InboundEvent interface {
	isInbound()
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type DrawStart struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type DrawMove struct {
	X     float64         `json:"x"`
	Y     float64         `json:"y"`
	Path  []drawing.Point `json:"path"`
	Color string          `json:"color"`
	Width float64         `json:"width"`
}

type DrawEnd struct {
	Path       []drawing.Point `json:"path"`
	Color      string          `json:"color"`
	Width      float64         `json:"width"`
	IsComplete bool            `json:"isComplete,omitempty"`
}

type ClearCanvas struct{}

type CursorMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (JoinRoom) isInbound()    {}
func (DrawStart) isInbound()   {}
func (DrawMove) isInbound()    {}
func (DrawEnd) isInbound()     {}
func (ClearCanvas) isInbound() {}
func (CursorMove) isInbound()  {}

// DecodeInbound parses one wire frame into its typed variant
func DecodeInbound(raw []byte) (InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var (
		ev  InboundEvent
		err error
	)
	switch env.Event {
	case EventJoinRoom:
		var v JoinRoom
		err = unmarshalData(env.Data, &v)
		ev = v
	case EventDrawStart:
		var v DrawStart
		err = unmarshalData(env.Data, &v)
		ev = v
	case EventDrawMove:
		var v DrawMove
		err = unmarshalData(env.Data, &v)
		ev = v
	case EventDrawEnd:
		var v DrawEnd
		err = unmarshalData(env.Data, &v)
		ev = v
	case EventClearCanvas:
		ev = ClearCanvas{}
	case EventCursorMove:
		var v CursorMove
		err = unmarshalData(env.Data, &v)
		ev = v
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("bad %s payload: %w", env.Event, err)
	}
	return ev, nil
}

func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Outbound payloads

type RoomJoined struct {
	RoomID    string `json:"roomId"`
	UserName  string `json:"userName"`
	UserCount int    `json:"userCount"`
}

// Identity payload for user-joined, user-left and clear-canvas
type UserInfo struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type UsersUpdate struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

type ErrorInfo struct {
	Message string `json:"message"`
}

// Relay payloads: the client's fields with the sender's identity attached

type DrawStartRelay struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	DrawStart
}

type DrawMoveRelay struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	DrawMove
}

type DrawEndRelay struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	DrawEnd
}

type CursorMoveRelay struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	CursorMove
}
