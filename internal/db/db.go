package db

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/juank/cpa-dashboard/backend/internal/models"
)

// ErrNotFound is returned when a client id has no stored row.
var ErrNotFound = errors.New("not found")

// Interface for DB operations
type Database interface {
	UpsertClients(ctx context.Context, clients []models.Client) error
	GetClients(ctx context.Context) ([]models.Client, error)
	GetClient(ctx context.Context, userID string) (models.Client, error)
	CreateUpload(ctx context.Context, upload models.Upload) error
	GetUploads(ctx context.Context) ([]models.Upload, error)
	Close() error
}

// MemoryDB keeps everything in process memory. Used for local dev and tests.
type MemoryDB struct {
	clients map[string]models.Client
	uploads []models.Upload
	mu      sync.RWMutex
	now     func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		clients: make(map[string]models.Client),
		uploads: []models.Upload{},
		now:     time.Now,
	}
}

func (db *MemoryDB) UpsertClients(ctx context.Context, clients []models.Client) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	now := db.now().UTC()
	for _, c := range clients {
		c.UpdatedAt = now
		db.clients[c.UserID] = c
	}
	return nil
}

func (db *MemoryDB) GetClients(ctx context.Context) ([]models.Client, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	result := make([]models.Client, 0, len(db.clients))
	for _, c := range db.clients {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result, nil
}

func (db *MemoryDB) GetClient(ctx context.Context, userID string) (models.Client, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.clients[userID]
	if !ok {
		return models.Client{}, ErrNotFound
	}
	return c, nil
}

func (db *MemoryDB) CreateUpload(ctx context.Context, upload models.Upload) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.uploads = append(db.uploads, upload)
	return nil
}

func (db *MemoryDB) GetUploads(ctx context.Context) ([]models.Upload, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	result := make([]models.Upload, len(db.uploads))
	copy(result, db.uploads)
	return result, nil
}

func (db *MemoryDB) Close() error {
	return nil
}
