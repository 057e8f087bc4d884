package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// LockInfo contains metadata about who holds a lock.
type LockInfo struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	User     string    `json:"user"`
	Hostname string    `json:"hostname"`
	Started  time.Time `json:"started"`
	PID      int       `json:"pid"`
}

// NewLockInfo creates a LockInfo for the file at path, owned by this process.
func NewLockInfo(path string) *LockInfo {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	return &LockInfo{
		ID:       uuid.NewString(),
		Path:     path,
		User:     user,
		Hostname: hostname,
		Started:  time.Now().UTC(),
		PID:      os.Getpid(),
	}
}

// Age returns how long ago the lock was acquired.
func (i *LockInfo) Age() time.Duration {
	return time.Since(i.Started)
}

// Marshal serializes the LockInfo to JSON.
func (i *LockInfo) Marshal() ([]byte, error) {
	return json.Marshal(i)
}

// ParseLockInfo deserializes JSON data into a LockInfo.
func ParseLockInfo(data []byte) (*LockInfo, error) {
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		return nil, fmt.Errorf("lock info has no id")
	}
	return &info, nil
}

// String returns a human-readable description of who holds the lock.
func (i *LockInfo) String() string {
	return fmt.Sprintf("%s@%s (pid %d, since %s)", i.User, i.Hostname, i.PID, i.Started.Local().Format("2006-01-02 15:04:05"))
}
