package dto

import "time"

// CreateProjectNodeRequest is the payload of POST /project-tree.
type CreateProjectNodeRequest struct {
	Name         string     `json:"name"`
	ParentID     OptionalID `json:"parent_id" swaggertype:"integer"`
	AssigneeIDs  IDList     `json:"assignee_ids" swaggertype:"array,integer"`
	ResearcherID IDList     `json:"researcher_id" swaggertype:"integer"`
}

// UpdateProjectNodeRequest is the payload of POST /project-tree/{id}. Absent
// fields are left untouched.
type UpdateProjectNodeRequest struct {
	Name         *string    `json:"name"`
	ParentID     OptionalID `json:"parent_id" swaggertype:"integer"`
	AssigneeIDs  IDList     `json:"assignee_ids" swaggertype:"array,integer"`
	ResearcherID IDList     `json:"researcher_id" swaggertype:"integer"`
}

// ProjectAssigneeResponse is one assignee of a node.
type ProjectAssigneeResponse struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	FullName *string `json:"full_name"`
	Role     string  `json:"role"`
}

// ProjectNodeResponse is the node payload.
type ProjectNodeResponse struct {
	ID           int64                     `json:"id"`
	Name         string                    `json:"name"`
	ParentID     *int64                    `json:"parent_id"`
	ResearcherID *int64                    `json:"researcher_id"`
	Researcher   *ProjectAssigneeResponse  `json:"researcher"`
	Assignees    []ProjectAssigneeResponse `json:"assignees"`
	AssigneeIDs  []int64                   `json:"assignee_ids"`
	CreatedAt    time.Time                 `json:"created_at"`
	UpdatedAt    time.Time                 `json:"updated_at"`
	ChildCount   int                       `json:"child_count"`
}
