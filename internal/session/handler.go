package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/easelhq/easel/backend/internal/drawing"
	"github.com/easelhq/easel/backend/internal/presence"
	"github.com/easelhq/easel/backend/internal/store"
)

// One live connection, as the handler sees it
type Conn interface {
	ID() string
	Send(event string, data any) error
}

// Router fans an event out to a room's current members. An empty excludeID
// means every member, the sender included.
type Router interface {
	Broadcast(roomID, event string, data any, excludeID string)
}

// Store is what the handler needs from the room store
type Store interface {
	FindRoom(id string) (*store.Room, error)
	CreateRoom(id string, now time.Time) error
	TouchActivity(id string, t time.Time) error
	Commands(roomID string) ([]drawing.Command, error)
	AppendCommand(roomID string, cmd drawing.Command) error
	ClearCommands(roomID string) error
}

const (
	opAppend = iota
	opClear
)

type writeOp struct {
	op     int
	roomID string
	cmd    drawing.Command
}

// Handler owns the per-connection session logic: it mutates the presence
// table and room store in response to inbound events and decides who hears
// about each one.
//
// Drawing-log writes go through a single queue drained by one goroutine, so
// accepted order is stored order per room and a failing write can only cost
// durability, never the broadcast.
type Handler struct {
	store    Store
	presence *presence.Table
	router   Router

	writes chan writeOp
	stop   chan struct{}
	wg     sync.WaitGroup
}

func NewHandler(st Store, table *presence.Table, router Router) *Handler {
	return &Handler{
		store:    st,
		presence: table,
		router:   router,
		writes:   make(chan writeOp, 256),
		stop:     make(chan struct{}),
	}
}

func (h *Handler) Start() {
	h.wg.Add(1)
	go h.writer()
}

// Stop drains pending drawing-log writes and returns once they are applied.
// Connections may still dispatch afterwards; their writes land in the buffer
// and are dropped, not applied.
func (h *Handler) Stop() {
	close(h.stop)
	h.wg.Wait()
}

func (h *Handler) writer() {
	defer h.wg.Done()

	for {
		select {
		case w := <-h.writes:
			h.apply(w)
		case <-h.stop:
			for {
				select {
				case w := <-h.writes:
					h.apply(w)
				default:
					return
				}
			}
		}
	}
}

func (h *Handler) apply(w writeOp) {
	switch w.op {
	case opAppend:
		if err := h.store.AppendCommand(w.roomID, w.cmd); err != nil {
			log.Printf("Failed to persist stroke for room %s: %v", w.roomID, err)
		}
	case opClear:
		if err := h.store.ClearCommands(w.roomID); err != nil {
			log.Printf("Failed to clear drawing log for room %s: %v", w.roomID, err)
		}
	}
}

// submit never blocks the event path; if the queue is saturated the write is
// lost and logged, the broadcast still happens.
func (h *Handler) submit(w writeOp) {
	select {
	case h.writes <- w:
	default:
		log.Printf("Write queue full, dropping write for room %s", w.roomID)
	}
}

// Handle routes one decoded inbound event to its operation
func (h *Handler) Handle(conn Conn, ev InboundEvent) {
	switch ev := ev.(type) {
	case JoinRoom:
		h.joinRoom(conn, ev)
	case DrawStart:
		h.drawStart(conn, ev)
	case DrawMove:
		h.drawMove(conn, ev)
	case DrawEnd:
		h.drawEnd(conn, ev)
	case ClearCanvas:
		h.clearCanvas(conn)
	case CursorMove:
		h.cursorMove(conn, ev)
	}
}

func (h *Handler) joinRoom(conn Conn, ev JoinRoom) {
	// Room ids come from the join endpoint; the realtime channel never
	// invents one.
	if ev.RoomID == "" {
		conn.Send(EventError, ErrorInfo{Message: "Failed to join room"})
		return
	}

	now := time.Now()
	room, err := h.store.FindRoom(ev.RoomID)
	if err != nil {
		log.Printf("Error joining room %s: %v", ev.RoomID, err)
		conn.Send(EventError, ErrorInfo{Message: "Failed to join room"})
		return
	}
	if room == nil {
		err = h.store.CreateRoom(ev.RoomID, now)
		if err != nil && !errors.Is(err, store.ErrRoomExists) {
			log.Printf("Error creating room %s: %v", ev.RoomID, err)
			conn.Send(EventError, ErrorInfo{Message: "Failed to join room"})
			return
		}
	} else if err := h.store.TouchActivity(ev.RoomID, now); err != nil {
		log.Printf("Error touching room %s: %v", ev.RoomID, err)
		conn.Send(EventError, ErrorInfo{Message: "Failed to join room"})
		return
	}

	commands, err := h.store.Commands(ev.RoomID)
	if err != nil {
		log.Printf("Error loading drawing log for room %s: %v", ev.RoomID, err)
		conn.Send(EventError, ErrorInfo{Message: "Failed to join room"})
		return
	}

	// Inbound events for one connection are handled serially, so reading the
	// old session just before the atomic move is safe.
	prev, _ := h.presence.Get(conn.ID())
	prevRoom, count := h.presence.Join(conn.ID(), ev.RoomID, ev.UserName)

	if prevRoom != "" && prevRoom != ev.RoomID {
		h.router.Broadcast(prevRoom, EventUserLeft, UserInfo{UserID: conn.ID(), UserName: prev.UserName}, "")
		h.router.Broadcast(prevRoom, EventUsersUpdate, h.usersUpdate(prevRoom), "")
	}

	conn.Send(EventRoomJoined, RoomJoined{RoomID: ev.RoomID, UserName: ev.UserName, UserCount: count})
	conn.Send(EventLoadDrawing, commands)

	h.router.Broadcast(ev.RoomID, EventUserJoined, UserInfo{UserID: conn.ID(), UserName: ev.UserName}, conn.ID())
	h.router.Broadcast(ev.RoomID, EventUsersUpdate, h.usersUpdate(ev.RoomID), "")
}

func (h *Handler) drawStart(conn Conn, ev DrawStart) {
	sess, ok := h.presence.Get(conn.ID())
	if !ok {
		return
	}
	relay := DrawStartRelay{UserID: conn.ID(), UserName: sess.UserName, DrawStart: ev}
	h.router.Broadcast(sess.RoomID, EventDrawStart, relay, conn.ID())
}

func (h *Handler) drawMove(conn Conn, ev DrawMove) {
	sess, ok := h.presence.Get(conn.ID())
	if !ok {
		return
	}
	relay := DrawMoveRelay{UserID: conn.ID(), UserName: sess.UserName, DrawMove: ev}
	h.router.Broadcast(sess.RoomID, EventDrawMove, relay, conn.ID())
}

func (h *Handler) drawEnd(conn Conn, ev DrawEnd) {
	sess, ok := h.presence.Get(conn.ID())
	if !ok {
		return
	}

	cmd := drawing.NewStroke(conn.ID(), ev.Path, ev.Color, ev.Width, time.Now())
	h.submit(writeOp{op: opAppend, roomID: sess.RoomID, cmd: cmd})

	relay := DrawEndRelay{UserID: conn.ID(), UserName: sess.UserName, DrawEnd: ev}
	h.router.Broadcast(sess.RoomID, EventDrawEnd, relay, conn.ID())
}

func (h *Handler) clearCanvas(conn Conn) {
	sess, ok := h.presence.Get(conn.ID())
	if !ok {
		return
	}

	h.submit(writeOp{op: opClear, roomID: sess.RoomID})

	// Everyone resets, the clearer included
	h.router.Broadcast(sess.RoomID, EventClearCanvas, UserInfo{UserID: conn.ID(), UserName: sess.UserName}, "")
}

func (h *Handler) cursorMove(conn Conn, ev CursorMove) {
	sess, ok := h.presence.Get(conn.ID())
	if !ok {
		return
	}
	relay := CursorMoveRelay{UserID: conn.ID(), UserName: sess.UserName, CursorMove: ev}
	h.router.Broadcast(sess.RoomID, EventCursorMove, relay, conn.ID())
}

// Disconnect releases the connection's presence entry and tells the room.
// The persisted room is untouched; it survives with zero live members.
func (h *Handler) Disconnect(conn Conn) {
	sess, remaining, ok := h.presence.Leave(conn.ID())
	if !ok {
		return
	}

	if remaining > 0 {
		h.router.Broadcast(sess.RoomID, EventUserLeft, UserInfo{UserID: sess.ConnID, UserName: sess.UserName}, "")
		h.router.Broadcast(sess.RoomID, EventUsersUpdate, h.usersUpdate(sess.RoomID), "")
	}
}

func (h *Handler) usersUpdate(roomID string) UsersUpdate {
	return UsersUpdate{
		Count: h.presence.Count(roomID),
		Users: h.presence.Members(roomID),
	}
}
