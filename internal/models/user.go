package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin      UserRole = "admin"
	RoleSupervisor UserRole = "supervisor"
	RoleResearcher UserRole = "researcher"
	RoleUser       UserRole = "user"
)

// DefaultRoles are guaranteed to exist in the roles table.
var DefaultRoles = []UserRole{RoleAdmin, RoleSupervisor, RoleResearcher}

// IsPrivileged reports whether the role may be targeted by admin task assignment.
func (r UserRole) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleSupervisor || r == RoleResearcher
}

// StoredFile references an uploaded file by its original name and storage key.
type StoredFile struct {
	Filename   string `json:"filename"`
	StoredPath string `json:"stored_path"`
}

// ProfileFiles maps a profile slot (proposal, report1, ...) to its stored file.
// It is persisted as a JSON document in a text column.
type ProfileFiles map[string]StoredFile

// Scan implements sql.Scanner.
func (p *ProfileFiles) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*p = ProfileFiles{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan profile files: unsupported type %T", src)
	}
	out := ProfileFiles{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			// Corrupt documents degrade to an empty mapping.
			out = ProfileFiles{}
		}
	}
	*p = out
	return nil
}

// Value implements driver.Valuer.
func (p ProfileFiles) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]StoredFile(p))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// User represents an application user stored in the users table.
type User struct {
	ID             int64        `db:"id" json:"id"`
	Username       string       `db:"username" json:"username"`
	Email          string       `db:"email" json:"email"`
	FullName       *string      `db:"full_name" json:"full_name"`
	PhoneNumber    *string      `db:"phone_number" json:"phone_number"`
	Education      *string      `db:"education" json:"education"`
	Responsibility *string      `db:"responsibility" json:"responsibility"`
	ResumePath     *string      `db:"resume_path" json:"resume_path"`
	AvatarPath     *string      `db:"avatar_path" json:"avatar_path"`
	AvatarScale    float64      `db:"avatar_scale" json:"avatar_scale"`
	AvatarOffsetX  float64      `db:"avatar_offset_x" json:"avatar_offset_x"`
	AvatarOffsetY  float64      `db:"avatar_offset_y" json:"avatar_offset_y"`
	ProfileFiles   ProfileFiles `db:"profile_files" json:"profile_files"`
	PasswordHash   string       `db:"password_hash" json:"-"`
	Role           UserRole     `db:"role" json:"role"`
	IsActive       bool         `db:"is_active" json:"is_active"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	LastLogin      *time.Time   `db:"last_login" json:"last_login,omitempty"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Username
}

// StoredPaths lists the storage keys of every file the user uploaded.
func (u *User) StoredPaths() []string {
	var paths []string
	if u.AvatarPath != nil && *u.AvatarPath != "" {
		paths = append(paths, *u.AvatarPath)
	}
	if u.ResumePath != nil && *u.ResumePath != "" {
		paths = append(paths, *u.ResumePath)
	}
	for _, f := range u.ProfileFiles {
		if f.StoredPath != "" {
			paths = append(paths, f.StoredPath)
		}
	}
	return paths
}

// Phone returns the phone number or "".
func (u *User) Phone() string {
	if u.PhoneNumber == nil {
		return ""
	}
	return *u.PhoneNumber
}

// UserTaskStats aggregates task outcomes for one assignee.
type UserTaskStats struct {
	UserID        int64   `db:"user_id" json:"-"`
	Assigned      int     `db:"assigned" json:"assigned"`
	Completed     int     `db:"completed" json:"completed"`
	Overdue       int     `db:"overdue" json:"overdue"`
	OnTimePct     float64 `db:"-" json:"on_time_pct"`
	CompletionPct float64 `db:"-" json:"completion_pct"`
	OverduePct    float64 `db:"-" json:"overdue_pct"`
}

// Compute fills the percentage fields. OnTimePct is completed over completed
// plus overdue; the other two are relative to Assigned.
func (s *UserTaskStats) Compute() {
	s.OnTimePct = percent(s.Completed, s.Completed+s.Overdue)
	s.CompletionPct = percent(s.Completed, s.Assigned)
	s.OverduePct = percent(s.Overdue, s.Assigned)
}

func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	pct := float64(part) / float64(whole) * 100
	if pct > 100 {
		pct = 100
	}
	return math.Round(pct*10) / 10
}
