package storage

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. It backs tests and
// STORAGE_BACKEND=memory for local experiments.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// SetClock overrides the modification time recorded on writes.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) EnsureReady(ctx context.Context) error { return nil }

func (m *MemoryStore) Write(ctx context.Context, handle string, data []byte) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "write", Handle: handle, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[h] = memoryObject{data: bytes.Clone(data), modTime: m.now()}
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, handle string) ([]byte, error) {
	obj, err := m.get("read", handle)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(obj.data), nil
}

func (m *MemoryStore) Size(ctx context.Context, handle string) (int64, error) {
	obj, err := m.get("size", handle)
	if err != nil {
		return 0, err
	}
	return int64(len(obj.data)), nil
}

func (m *MemoryStore) Delete(ctx context.Context, handle string) error {
	h, err := cleanHandle(handle)
	if err != nil {
		return &IOError{Op: "delete", Handle: handle, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, h)
	return nil
}

func (m *MemoryStore) List(ctx context.Context) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	objects := make([]Object, 0, len(m.objects))
	for h, obj := range m.objects {
		objects = append(objects, Object{Handle: h, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Handle < objects[j].Handle })
	return objects, nil
}

func (m *MemoryStore) get(op, handle string) (memoryObject, error) {
	h, err := cleanHandle(handle)
	if err != nil {
		return memoryObject{}, &IOError{Op: op, Handle: handle, Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[h]
	if !ok {
		return memoryObject{}, &IOError{Op: op, Handle: handle, Err: ErrNotExist}
	}
	return obj, nil
}
