package presence

import "sync"

// The live association between one connection and at most one room
type Session struct {
	ConnID   string
	RoomID   string
	UserName string
}

// Table tracks which connections are in which rooms. One instance is shared
// by every connection handler; all state is in-process and starts empty on
// restart. Every transition happens under one lock so a connection is never
// visible in two rooms at once.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]Session
	rooms    map[string]map[string]bool
}

func NewTable() *Table {
	return &Table{
		sessions: make(map[string]Session),
		rooms:    make(map[string]map[string]bool),
	}
}

// Join moves the connection into roomID, leaving its previous room if it had
// one. Returns the previous room id ("" for none) and the new room's size.
func (t *Table) Join(connID, roomID, userName string) (prevRoom string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.sessions[connID]; ok {
		prevRoom = prev.RoomID
		t.removeMember(prev.RoomID, connID)
	}

	t.sessions[connID] = Session{ConnID: connID, RoomID: roomID, UserName: userName}

	members, ok := t.rooms[roomID]
	if !ok {
		members = make(map[string]bool)
		t.rooms[roomID] = members
	}
	members[connID] = true

	return prevRoom, len(members)
}

// Leave drops the connection entirely. Returns the session it held and how
// many members remain in its room.
func (t *Table) Leave(connID string) (Session, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[connID]
	if !ok {
		return Session{}, 0, false
	}
	delete(t.sessions, connID)
	t.removeMember(sess.RoomID, connID)

	return sess, len(t.rooms[sess.RoomID]), true
}

// caller holds t.mu
func (t *Table) removeMember(roomID, connID string) {
	members, ok := t.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(t.rooms, roomID)
	}
}

func (t *Table) Get(connID string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[connID]
	return sess, ok
}

// Members returns a snapshot of the room's connection ids
func (t *Table) Members(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := make([]string, 0, len(t.rooms[roomID]))
	for id := range t.rooms[roomID] {
		members = append(members, id)
	}
	return members
}

func (t *Table) Count(roomID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[roomID])
}

func (t *Table) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

func (t *Table) SessionCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// ActiveRooms maps each live room to its member count
func (t *Table) ActiveRooms() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	active := make(map[string]int, len(t.rooms))
	for id, members := range t.rooms {
		active[id] = len(members)
	}
	return active
}
