// Package history persists translation sessions in SQLite. Writes are
// fire-and-forget from the request path; a failed insert never fails the
// translation that produced it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store is the chat-history database. Safe for concurrent use; database/sql
// pools connections and WAL mode keeps readers off the write lock.
type Store struct {
	db   *sql.DB
	path string
}

// Chat is one translation session.
type Chat struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one pipeline run recorded inside a chat.
type Message struct {
	ID             int64     `json:"id"`
	ChatID         string    `json:"chat_id"`
	SourceLanguage string    `json:"source_language"`
	TargetLanguage string    `json:"target_language"`
	Transcript     string    `json:"transcript"`
	Translation    string    `json:"translation"`
	AudioFile      string    `json:"audio_file,omitempty"`
	ASRModel       string    `json:"asr_model,omitempty"`
	MTModel        string    `json:"mt_model,omitempty"`
	TTSModel       string    `json:"tts_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Open opens or creates the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "./data/history.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			user TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			source_language TEXT NOT NULL,
			target_language TEXT NOT NULL,
			transcript TEXT NOT NULL,
			translation TEXT NOT NULL,
			audio_file TEXT DEFAULT '',
			asr_model TEXT DEFAULT '',
			mt_model TEXT DEFAULT '',
			tts_model TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user, updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at)`,
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// CreateChat starts a new session for user.
func (s *Store) CreateChat(user, title string) (Chat, error) {
	c := Chat{
		ID:        uuid.NewString(),
		User:      user,
		Title:     title,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO chats (id, user, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.User, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return Chat{}, fmt.Errorf("creating chat: %w", err)
	}
	return c, nil
}

// ListChats returns the user's sessions, most recently active first.
func (s *Store) ListChats(user string) ([]Chat, error) {
	rows, err := s.db.Query(
		`SELECT id, user, title, created_at, updated_at FROM chats WHERE user = ? ORDER BY updated_at DESC`,
		user,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	chats := []Chat{}
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.ID, &c.User, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// GetChat returns one session, or sql.ErrNoRows.
func (s *Store) GetChat(id string) (Chat, error) {
	var c Chat
	err := s.db.QueryRow(
		`SELECT id, user, title, created_at, updated_at FROM chats WHERE id = ?`, id,
	).Scan(&c.ID, &c.User, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// AppendMessage records one pipeline run and bumps the chat's activity time.
func (s *Store) AppendMessage(m Message) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO messages (chat_id, source_language, target_language, transcript, translation, audio_file, asr_model, mt_model, tts_model)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ChatID, m.SourceLanguage, m.TargetLanguage, m.Transcript, m.Translation,
		m.AudioFile, m.ASRModel, m.MTModel, m.TTSModel,
	)
	if err != nil {
		return 0, fmt.Errorf("appending message: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE chats SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, m.ChatID); err != nil {
		return 0, fmt.Errorf("touching chat: %w", err)
	}
	return res.LastInsertId()
}

// Messages returns a chat's messages in insertion order.
func (s *Store) Messages(chatID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, chat_id, source_language, target_language, transcript, translation, audio_file, asr_model, mt_model, tts_model, created_at
		 FROM messages WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SourceLanguage, &m.TargetLanguage,
			&m.Transcript, &m.Translation, &m.AudioFile, &m.ASRModel, &m.MTModel, &m.TTSModel, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteChat removes a session and its messages.
func (s *Store) DeleteChat(id string) error {
	_, err := s.db.Exec(`DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	return nil
}
