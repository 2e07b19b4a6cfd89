package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"hostpanel/internal/models"
)

// MemoryAdminRepository keeps admins in process memory. It backs the "memory"
// credentials driver used for local development.
type MemoryAdminRepository struct {
	mu     sync.RWMutex
	admins map[string]models.Admin
}

func NewMemoryAdminRepository() *MemoryAdminRepository {
	return &MemoryAdminRepository{admins: make(map[string]models.Admin)}
}

func (r *MemoryAdminRepository) Create(ctx context.Context, admin models.Admin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.admins {
		if existing.Username == admin.Username || existing.Email == admin.Email {
			return ErrDuplicateAdmin
		}
	}
	if _, ok := r.admins[admin.ID]; ok {
		return ErrDuplicateAdmin
	}
	admin.UpdatedAt = admin.CreatedAt
	r.admins[admin.ID] = cloneAdmin(admin)
	return nil
}

func (r *MemoryAdminRepository) FindByIdentifier(ctx context.Context, identifier string) (models.Admin, error) {
	if err := ctx.Err(); err != nil {
		return models.Admin{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	email := strings.ToLower(identifier)
	var byEmail *models.Admin
	for _, admin := range r.admins {
		if admin.Username == identifier {
			return cloneAdmin(admin), nil
		}
		if admin.Email == email && byEmail == nil {
			match := admin
			byEmail = &match
		}
	}
	if byEmail != nil {
		return cloneAdmin(*byEmail), nil
	}
	return models.Admin{}, ErrAdminNotFound
}

func (r *MemoryAdminRepository) GetByID(ctx context.Context, id string) (models.Admin, error) {
	if err := ctx.Err(); err != nil {
		return models.Admin{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	admin, ok := r.admins[id]
	if !ok {
		return models.Admin{}, ErrAdminNotFound
	}
	return cloneAdmin(admin), nil
}

func (r *MemoryAdminRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, ok := r.admins[id]
	if !ok {
		return ErrAdminNotFound
	}
	admin.LastLoginAt = &at
	admin.UpdatedAt = at
	r.admins[id] = admin
	return nil
}

// Delete removes an admin. Deletion is not exposed over HTTP.
func (r *MemoryAdminRepository) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.admins, id)
}

func cloneAdmin(admin models.Admin) models.Admin {
	if admin.PasswordHash != nil {
		admin.PasswordHash = append([]byte(nil), admin.PasswordHash...)
	}
	if admin.LastLoginAt != nil {
		at := *admin.LastLoginAt
		admin.LastLoginAt = &at
	}
	return admin
}
