package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/creatia-api/internal/models"
)

const projectNodeColumns = `n.id, n.name, n.parent_id, n.researcher_id, n.created_at, n.updated_at`

// ProjectRepository persists the project tree and its assignee links.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns every node, trunks first, then by name, with the legacy
// researcher joined in.
func (r *ProjectRepository) List(ctx context.Context) ([]models.ProjectNodeRow, error) {
	return r.listRows(ctx, nil, "", nil)
}

// FindRow returns one node in list form.
func (r *ProjectRepository) FindRow(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectNodeRow, error) {
	rows, err := r.listRows(ctx, exec, "WHERE n.id = $1", []interface{}{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return &rows[0], nil
}

func (r *ProjectRepository) listRows(ctx context.Context, exec sqlx.ExtContext, where string, args []interface{}) ([]models.ProjectNodeRow, error) {
	query := `SELECT ` + projectNodeColumns + `,
u.username AS researcher_username, u.full_name AS researcher_full_name, u.role AS researcher_role,
(SELECT COUNT(*) FROM project_nodes c WHERE c.parent_id = n.id) AS child_count
FROM project_nodes n
LEFT JOIN users u ON u.id = n.researcher_id
` + where + `
ORDER BY n.parent_id ASC NULLS FIRST, n.name ASC`
	var rows []models.ProjectNodeRow
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list project nodes: %w", err)
	}
	return rows, nil
}

// ListAssignees returns assignee links of nodes in link insertion order. A nil
// slice returns links of every node.
func (r *ProjectRepository) ListAssignees(ctx context.Context, exec sqlx.ExtContext, nodeIDs []int64) ([]models.ProjectAssignee, error) {
	query := `SELECT l.node_id, l.user_id, u.username, u.full_name, u.role
FROM project_node_assignees l JOIN users u ON u.id = l.user_id`
	var args []interface{}
	if nodeIDs != nil {
		query += ` WHERE l.node_id = ANY($1)`
		args = append(args, pq.Array(nodeIDs))
	}
	query += ` ORDER BY l.node_id, l.id`

	var links []models.ProjectAssignee
	if err := sqlx.SelectContext(ctx, r.exec(exec), &links, query, args...); err != nil {
		return nil, fmt.Errorf("list project assignees: %w", err)
	}
	return links, nil
}

// FindByID loads a bare node.
func (r *ProjectRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectNode, error) {
	query := `SELECT ` + projectNodeColumns + ` FROM project_nodes n WHERE n.id = $1`
	var node models.ProjectNode
	if err := sqlx.GetContext(ctx, r.exec(exec), &node, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find project node: %w", err)
	}
	return &node, nil
}

// Create inserts node and fills id and timestamps.
func (r *ProjectRepository) Create(ctx context.Context, exec sqlx.ExtContext, node *models.ProjectNode) error {
	now := time.Now().UTC()
	node.CreatedAt, node.UpdatedAt = now, now
	const query = `INSERT INTO project_nodes (name, parent_id, researcher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := sqlx.GetContext(ctx, r.exec(exec), &node.ID, query, node.Name, node.ParentID, node.ResearcherID, node.CreatedAt, node.UpdatedAt); err != nil {
		return fmt.Errorf("create project node: %w", err)
	}
	return nil
}

// Update writes name, parent and legacy researcher of node.
func (r *ProjectRepository) Update(ctx context.Context, exec sqlx.ExtContext, node *models.ProjectNode) error {
	node.UpdatedAt = time.Now().UTC()
	const query = `UPDATE project_nodes SET name = :name, parent_id = :parent_id, researcher_id = :researcher_id,
updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, node); err != nil {
		return fmt.Errorf("update project node: %w", err)
	}
	return nil
}

// ListChildIDs returns the direct children of a node.
func (r *ProjectRepository) ListChildIDs(ctx context.Context, exec sqlx.ExtContext, parentID int64) ([]int64, error) {
	const query = `SELECT id FROM project_nodes WHERE parent_id = $1 ORDER BY id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, parentID); err != nil {
		return nil, fmt.Errorf("list child nodes: %w", err)
	}
	return ids, nil
}

// Delete removes one node and its assignee links. Children must already be gone.
func (r *ProjectRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM project_node_assignees WHERE node_id = $1`, id); err != nil {
		return fmt.Errorf("delete node assignees: %w", err)
	}
	if _, err := target.ExecContext(ctx, `DELETE FROM project_nodes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete project node: %w", err)
	}
	return nil
}

// ListAssigneeIDs returns the user ids currently linked to a node.
func (r *ProjectRepository) ListAssigneeIDs(ctx context.Context, exec sqlx.ExtContext, nodeID int64) ([]int64, error) {
	const query = `SELECT user_id FROM project_node_assignees WHERE node_id = $1 ORDER BY id`
	var ids []int64
	if err := sqlx.SelectContext(ctx, r.exec(exec), &ids, query, nodeID); err != nil {
		return nil, fmt.Errorf("list node assignee ids: %w", err)
	}
	return ids, nil
}

// AddAssignee links a user to a node.
func (r *ProjectRepository) AddAssignee(ctx context.Context, exec sqlx.ExtContext, nodeID, userID int64) error {
	const query = `INSERT INTO project_node_assignees (node_id, user_id, created_at) VALUES ($1, $2, $3)`
	if _, err := r.exec(exec).ExecContext(ctx, query, nodeID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add node assignee: %w", err)
	}
	return nil
}

// RemoveAssignees unlinks users from a node.
func (r *ProjectRepository) RemoveAssignees(ctx context.Context, exec sqlx.ExtContext, nodeID int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	const query = `DELETE FROM project_node_assignees WHERE node_id = $1 AND user_id = ANY($2)`
	if _, err := r.exec(exec).ExecContext(ctx, query, nodeID, pq.Array(userIDs)); err != nil {
		return fmt.Errorf("remove node assignees: %w", err)
	}
	return nil
}

// DetachUser drops every link and legacy researcher reference to a user.
func (r *ProjectRepository) DetachUser(ctx context.Context, exec sqlx.ExtContext, userID int64) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, `DELETE FROM project_node_assignees WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("detach user links: %w", err)
	}
	if _, err := target.ExecContext(ctx, `UPDATE project_nodes SET researcher_id = NULL WHERE researcher_id = $1`, userID); err != nil {
		return fmt.Errorf("detach user researcher: %w", err)
	}
	return nil
}
