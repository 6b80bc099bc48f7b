package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/easelhq/easel/backend/internal/drawing"
	"github.com/easelhq/easel/backend/internal/presence"
	"github.com/easelhq/easel/backend/internal/store"
	"github.com/easelhq/easel/backend/internal/ws"
)

func setupTestAPI(t *testing.T) (*API, *store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "easel-api-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	st, err := store.New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	table := presence.NewTable()
	hub := ws.NewHub(table)
	api := New(st, hub, table)

	cleanup := func() {
		st.Close()
		os.RemoveAll(tmpDir)
	}

	return api, st, cleanup
}

type joinResponse struct {
	Success bool `json:"success"`
	Room    struct {
		ID          string            `json:"id"`
		CreatedAt   time.Time         `json:"createdAt"`
		DrawingData []drawing.Command `json:"drawingData"`
	} `json:"room"`
}

func postJoin(t *testing.T, api *API, body map[string]string) (*httptest.ResponseRecorder, joinResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest("POST", "/api/rooms/join", &buf)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)

	var resp joinResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return w, resp
}

func TestHealthHandler(t *testing.T) {
	api, _, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", response["status"])
	}
}

func TestStatsHandler(t *testing.T) {
	api, _, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	for _, key := range []string{"active_rooms", "active_clients", "total_rooms"} {
		if _, ok := response[key]; !ok {
			t.Errorf("Response should contain %q", key)
		}
	}
}

func TestJoinAllocatesRoomID(t *testing.T) {
	api, st, cleanup := setupTestAPI(t)
	defer cleanup()

	w, resp := postJoin(t, api, map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !resp.Success {
		t.Error("Expected success")
	}

	idPattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	if !idPattern.MatchString(resp.Room.ID) {
		t.Errorf("Expected 6-char uppercase alphanumeric id, got %q", resp.Room.ID)
	}
	if len(resp.Room.DrawingData) != 0 {
		t.Errorf("New room should have an empty drawing log, got %d commands", len(resp.Room.DrawingData))
	}

	room, err := st.FindRoom(resp.Room.ID)
	if err != nil || room == nil {
		t.Fatal("Allocated room should exist in the store")
	}
}

func TestJoinWithEmptyBody(t *testing.T) {
	api, _, cleanup := setupTestAPI(t)
	defer cleanup()

	w, resp := postJoin(t, api, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if resp.Room.ID == "" {
		t.Error("Expected an allocated room id")
	}
}

func TestJoinExistingRoomReplaysLog(t *testing.T) {
	api, st, cleanup := setupTestAPI(t)
	defer cleanup()

	if err := st.CreateRoom("SEEDED", time.Now()); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	cmd := drawing.NewStroke("user-a", []drawing.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, "#000000", 2, time.Now())
	if err := st.AppendCommand("SEEDED", cmd); err != nil {
		t.Fatalf("Failed to append command: %v", err)
	}

	w, resp := postJoin(t, api, map[string]string{"roomId": "SEEDED"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if resp.Room.ID != "SEEDED" {
		t.Errorf("Expected room 'SEEDED', got %q", resp.Room.ID)
	}
	if len(resp.Room.DrawingData) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(resp.Room.DrawingData))
	}
	if resp.Room.DrawingData[0].Data.Color != "#000000" {
		t.Errorf("Unexpected command payload: %+v", resp.Room.DrawingData[0])
	}
}

func TestJoinUnknownRoomCreatesIt(t *testing.T) {
	api, st, cleanup := setupTestAPI(t)
	defer cleanup()

	w, resp := postJoin(t, api, map[string]string{"roomId": "FRIEND"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if resp.Room.ID != "FRIEND" {
		t.Errorf("Expected room 'FRIEND', got %q", resp.Room.ID)
	}

	room, err := st.FindRoom("FRIEND")
	if err != nil || room == nil {
		t.Fatal("Room should have been created")
	}
}

func TestGetRoom(t *testing.T) {
	api, st, cleanup := setupTestAPI(t)
	defer cleanup()

	if err := st.CreateRoom("KNOWN1", time.Now()); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/rooms/KNOWN1", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["success"] != true {
		t.Error("Expected success")
	}
	room := response["room"].(map[string]any)
	if room["id"] != "KNOWN1" {
		t.Errorf("Expected room 'KNOWN1', got %v", room["id"])
	}
	if _, ok := room["lastActivity"]; !ok {
		t.Error("Room info should include lastActivity")
	}
}

func TestGetRoomNotFound(t *testing.T) {
	api, _, cleanup := setupTestAPI(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/rooms/MISSING", nil)
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", w.Code)
	}

	var response map[string]any
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["success"] != false {
		t.Error("Expected success false")
	}
}

func TestGenerateRoomID(t *testing.T) {
	idPattern := regexp.MustCompile(`^[A-Z0-9]{6}$`)
	seen := make(map[string]bool)

	for i := 0; i < 100; i++ {
		id := generateRoomID()
		if !idPattern.MatchString(id) {
			t.Fatalf("Bad room id %q", id)
		}
		seen[id] = true
	}

	// 100 draws from a 36^6 space should essentially never all collide
	if len(seen) < 90 {
		t.Errorf("Suspiciously many collisions: %d unique of 100", len(seen))
	}
}

func TestAllocateSkipsTakenIDs(t *testing.T) {
	api, st, cleanup := setupTestAPI(t)
	defer cleanup()

	// Allocate twice; ids must differ since the store rejects duplicates
	_, first := postJoin(t, api, map[string]string{})
	_, second := postJoin(t, api, map[string]string{})

	if first.Room.ID == second.Room.ID {
		t.Errorf("Expected distinct ids, got %q twice", first.Room.ID)
	}

	for _, id := range []string{first.Room.ID, second.Room.ID} {
		room, err := st.FindRoom(id)
		if err != nil || room == nil {
			t.Errorf("Room %s should exist", id)
		}
	}
}
