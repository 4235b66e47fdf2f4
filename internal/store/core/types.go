package core

import "time"

// User status values. Only "active" users authenticate successfully.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusPending   = "pending"
)

type Tenant struct {
	ID        string
	Name      string
	Slug      string
	CreatedAt time.Time
}

type User struct {
	ID           string
	TenantID     *string // nil = cross-tenant (super admin)
	Email        string
	PasswordHash string
	Status       string
	RoleID       string
	CreatedAt    time.Time
}

type Role struct {
	ID          string
	TenantID    *string
	Name        string
	Level       int // higher = more privileged
	Permissions []string
	CreatedAt   time.Time
}

type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ReplacedBy *string
	RevokedAt  *time.Time
}
