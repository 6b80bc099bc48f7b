package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/easelhq/easel/backend/internal/drawing"
)

// Returned by CreateRoom when the id is already taken
var ErrRoomExists = errors.New("room already exists")

type Store struct {
	db *sql.DB
}

type Room struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
}

func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Store initialized at %s", dbPath)
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		last_activity DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_last_activity ON rooms(last_activity);

	CREATE TABLE IF NOT EXISTS drawing_commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_drawing_commands_room_id ON drawing_commands(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Room operations

// CreateRoom inserts a new room record. Fails with ErrRoomExists if the id is
// already taken, which the join endpoint relies on for collision retries.
func (s *Store) CreateRoom(id string, now time.Time) error {
	result, err := s.db.Exec(
		"INSERT OR IGNORE INTO rooms (id, created_at, last_activity) VALUES (?, ?, ?)",
		id, now.UTC(), now.UTC(),
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomExists
	}
	return nil
}

// FindRoom returns nil without error when the room does not exist
func (s *Store) FindRoom(id string) (*Room, error) {
	row := s.db.QueryRow(
		"SELECT id, created_at, last_activity FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.CreatedAt, &room.LastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) TouchActivity(id string, t time.Time) error {
	_, err := s.db.Exec(
		"UPDATE rooms SET last_activity = ? WHERE id = ?",
		t.UTC(), id,
	)
	return err
}

// Drawing log operations

// AppendCommand adds a command to the end of the room's drawing log and
// refreshes the room's activity timestamp. Insertion order is replay order.
func (s *Store) AppendCommand(roomID string, cmd drawing.Command) error {
	data, err := json.Marshal(cmd.Data)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		"INSERT INTO drawing_commands (room_id, kind, data, user_id, created_at) VALUES (?, ?, ?, ?, ?)",
		roomID, cmd.Type, data, cmd.UserID, cmd.Timestamp.UTC(),
	)
	if err != nil {
		return err
	}

	return s.TouchActivity(roomID, cmd.Timestamp)
}

// Commands returns the room's drawing log in append order
func (s *Store) Commands(roomID string) ([]drawing.Command, error) {
	rows, err := s.db.Query(
		"SELECT kind, data, user_id, created_at FROM drawing_commands WHERE room_id = ? ORDER BY id ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commands := make([]drawing.Command, 0)
	for rows.Next() {
		var cmd drawing.Command
		var data []byte
		if err := rows.Scan(&cmd.Type, &data, &cmd.UserID, &cmd.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &cmd.Data); err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

func (s *Store) CommandCount(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM drawing_commands WHERE room_id = ?",
		roomID,
	).Scan(&count)
	return count, err
}

// ClearCommands empties the room's stored drawing log. The history is gone
// for good; a subsequent join replays an empty log.
func (s *Store) ClearCommands(roomID string) error {
	if _, err := s.db.Exec(
		"DELETE FROM drawing_commands WHERE room_id = ?",
		roomID,
	); err != nil {
		return err
	}
	return s.TouchActivity(roomID, time.Now())
}

// Reaper support

// DeleteInactiveBefore removes every room whose last activity is older than
// the threshold, along with its drawing log, and reports how many went.
func (s *Store) DeleteInactiveBefore(threshold time.Time) (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM rooms WHERE last_activity < ?",
		threshold.UTC(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Stats

func (s *Store) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var commandCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM drawing_commands").Scan(&commandCount); err != nil {
		return nil, err
	}
	stats["command_count"] = commandCount

	return stats, nil
}
