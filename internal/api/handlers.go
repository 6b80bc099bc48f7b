package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/easelhq/easel/backend/internal/drawing"
	"github.com/easelhq/easel/backend/internal/presence"
	"github.com/easelhq/easel/backend/internal/store"
	"github.com/easelhq/easel/backend/internal/ws"
)

const (
	roomIDChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength = 6
)

type API struct {
	store    *store.Store
	hub      *ws.Hub
	presence *presence.Table
}

func New(st *store.Store, hub *ws.Hub, table *presence.Table) *API {
	return &API{
		store:    st,
		hub:      hub,
		presence: table,
	}
}

// Router wires every HTTP endpoint except the websocket upgrade
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", a.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/join", a.JoinRoomHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{roomId}", a.GetRoomHandler).Methods(http.MethodGet)
	return r
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"active_rooms":   a.presence.RoomCount(),
		"active_clients": a.hub.ClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	dbStats, err := a.store.GetStats()
	if err == nil {
		stats["total_rooms"] = dbStats["room_count"]
		stats["total_commands"] = dbStats["command_count"]
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	ID           string            `json:"id"`
	CreatedAt    time.Time         `json:"createdAt"`
	LastActivity *time.Time        `json:"lastActivity,omitempty"`
	DrawingData  []drawing.Command `json:"drawingData"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// JoinRoomHandler allocates a shareable room id when the client has none,
// creates or touches the room, and hands back its current drawing log.
func (a *API) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	now := time.Now()
	roomID := req.RoomID

	if roomID == "" {
		id, err := a.allocateRoomID(now)
		if err != nil {
			log.Printf("Error allocating room: %v", err)
			errorResponse(w, http.StatusInternalServerError, "Failed to join room")
			return
		}
		roomID = id
	} else {
		room, err := a.store.FindRoom(roomID)
		if err != nil {
			log.Printf("Error joining room %s: %v", roomID, err)
			errorResponse(w, http.StatusInternalServerError, "Failed to join room")
			return
		}
		if room == nil {
			err = a.store.CreateRoom(roomID, now)
			if err != nil && !errors.Is(err, store.ErrRoomExists) {
				log.Printf("Error creating room %s: %v", roomID, err)
				errorResponse(w, http.StatusInternalServerError, "Failed to join room")
				return
			}
		} else if err := a.store.TouchActivity(roomID, now); err != nil {
			log.Printf("Error touching room %s: %v", roomID, err)
			errorResponse(w, http.StatusInternalServerError, "Failed to join room")
			return
		}
	}

	room, err := a.store.FindRoom(roomID)
	if err != nil || room == nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to join room")
		return
	}

	commands, err := a.store.Commands(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to join room")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"room": RoomResponse{
			ID:          room.ID,
			CreatedAt:   room.CreatedAt,
			DrawingData: commands,
		},
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	room, err := a.store.FindRoom(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}
	if room == nil {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	commands, err := a.store.Commands(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"room": RoomResponse{
			ID:           room.ID,
			CreatedAt:    room.CreatedAt,
			LastActivity: &room.LastActivity,
			DrawingData:  commands,
		},
	})
}

// allocateRoomID draws fresh ids until one is free. The store rejects
// duplicates, so a concurrent allocation of the same id loses and retries.
func (a *API) allocateRoomID(now time.Time) (string, error) {
	for {
		id := generateRoomID()
		err := a.store.CreateRoom(id, now)
		if errors.Is(err, store.ErrRoomExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}
}

func generateRoomID() string {
	b := make([]byte, roomIDLength)
	for i := range b {
		b[i] = roomIDChars[rand.Intn(len(roomIDChars))]
	}
	return string(b)
}
