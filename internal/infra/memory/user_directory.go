package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// UserDirectory provisions guest identities keyed by display name.
type UserDirectory struct {
	mu    sync.Mutex
	users map[string]string // display name -> user id
}

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{users: make(map[string]string)}
}

func (d *UserDirectory) FindOrCreateByDisplayName(_ context.Context, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.users[name]; ok {
		return id, nil
	}
	id := uuid.NewString()
	d.users[name] = id
	return id, nil
}
