// Package users manages the service accounts that own translation history.
// Accounts live in a single JSON file under the data directory; the set is
// small enough that full-file rewrites on every change are fine.
package users

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrInvalidCredentials is returned for both unknown users and wrong
// passwords so a caller cannot probe which usernames exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserExists is returned when creating a duplicate username.
var ErrUserExists = errors.New("user exists")

// ErrNotFound is returned by operations on an unknown user.
var ErrNotFound = errors.New("user not found")

// User is one account. Password holds the sha256 hex digest, never the
// plaintext; copies handed out of the Manager have it blanked.
type User struct {
	Username  string    `json:"username"`
	Password  string    `json:"password_hash"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager is a file-backed account store. Safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	users     map[string]*User
	storePath string
}

// NewManager loads the account file under storeDir, tolerating a missing
// file on first run.
func NewManager(storeDir string) (*Manager, error) {
	m := &Manager{
		users:     map[string]*User{},
		storePath: filepath.Join(storeDir, "users.json"),
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func hashPassword(pw string) string {
	s := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(s[:])
}

func (m *Manager) load() error {
	b, err := os.ReadFile(m.storePath)
	if err != nil {
		return nil // first run
	}
	var arr []*User
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	for _, u := range arr {
		m.users[u.Username] = u
	}
	return nil
}

func (m *Manager) save() error {
	arr := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		arr = append(arr, u)
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].Username < arr[j].Username })
	b, _ := json.MarshalIndent(arr, "", "  ")
	if err := os.MkdirAll(filepath.Dir(m.storePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.storePath, b, 0o644)
}

// EnsureDefaultAdmin creates an admin account when the store is empty so a
// fresh deployment can log in.
func (m *Manager) EnsureDefaultAdmin(defaultPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) > 0 {
		return nil
	}
	now := time.Now()
	m.users["admin"] = &User{
		Username:  "admin",
		Password:  hashPassword(defaultPassword),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return m.save()
}

// Create adds an account with a unique username.
func (m *Manager) Create(username, password string) (*User, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	if password == "" {
		return nil, errors.New("password required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return nil, ErrUserExists
	}
	now := time.Now()
	u := &User{Username: username, Password: hashPassword(password), CreatedAt: now, UpdatedAt: now}
	m.users[username] = u
	if err := m.save(); err != nil {
		return nil, err
	}
	return redact(u), nil
}

// Authenticate checks a username and password pair.
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok || u.Password != hashPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return redact(u), nil
}

// ChangePassword rotates a user's password after verifying the old one.
func (m *Manager) ChangePassword(username, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.New("password required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return ErrNotFound
	}
	if u.Password != hashPassword(oldPassword) {
		return ErrInvalidCredentials
	}
	u.Password = hashPassword(newPassword)
	u.UpdatedAt = time.Now()
	return m.save()
}

// List returns every account with passwords blanked.
func (m *Manager) List() []*User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, redact(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

// Delete removes an account. The user's chat history stays in the store.
func (m *Manager) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrNotFound
	}
	delete(m.users, username)
	return m.save()
}

func redact(u *User) *User {
	cpy := *u
	cpy.Password = ""
	return &cpy
}
