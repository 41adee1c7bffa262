package models

import "time"

// ProjectNode is a node of the project forest.
type ProjectNode struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ParentID     *int64    `db:"parent_id" json:"parent_id"`
	ResearcherID *int64    `db:"researcher_id" json:"researcher_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectNodeRow is a node joined with its legacy researcher and child count.
type ProjectNodeRow struct {
	ProjectNode
	ResearcherUsername *string   `db:"researcher_username"`
	ResearcherFullName *string   `db:"researcher_full_name"`
	ResearcherRole     *UserRole `db:"researcher_role"`
	ChildCount         int       `db:"child_count"`
}

// ProjectAssignee is an assignee link joined with the user's identity.
type ProjectAssignee struct {
	NodeID   int64    `db:"node_id" json:"-"`
	UserID   int64    `db:"user_id" json:"id"`
	Username string   `db:"username" json:"username"`
	FullName *string  `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
}
