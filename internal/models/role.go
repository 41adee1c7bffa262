package models

// Role is a named role with a free-form permissions string.
type Role struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Permissions *string `db:"permissions" json:"permissions"`
}
