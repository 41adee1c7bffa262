package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type projectRepository interface {
	List(ctx context.Context) ([]models.ProjectNodeRow, error)
	FindRow(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectNodeRow, error)
	ListAssignees(ctx context.Context, exec sqlx.ExtContext, nodeIDs []int64) ([]models.ProjectAssignee, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ProjectNode, error)
	Create(ctx context.Context, exec sqlx.ExtContext, node *models.ProjectNode) error
	Update(ctx context.Context, exec sqlx.ExtContext, node *models.ProjectNode) error
	ListChildIDs(ctx context.Context, exec sqlx.ExtContext, parentID int64) ([]int64, error)
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
	ListAssigneeIDs(ctx context.Context, exec sqlx.ExtContext, nodeID int64) ([]int64, error)
	AddAssignee(ctx context.Context, exec sqlx.ExtContext, nodeID, userID int64) error
	RemoveAssignees(ctx context.Context, exec sqlx.ExtContext, nodeID int64, userIDs []int64) error
}

type projectUserRepository interface {
	FindByIDs(ctx context.Context, exec sqlx.ExtContext, ids []int64) ([]models.User, error)
}

type projectCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// ProjectTreeService manages the project forest and its assignees.
type ProjectTreeService struct {
	nodes  projectRepository
	users  projectUserRepository
	db     txProvider
	cache  projectCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewProjectTreeService constructs a ProjectTreeService. cache may be nil.
func NewProjectTreeService(nodes projectRepository, users projectUserRepository, db txProvider, cache projectCache, ttl time.Duration, logger *zap.Logger) *ProjectTreeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = &CacheService{}
	}
	return &ProjectTreeService{nodes: nodes, users: users, db: db, cache: cache, ttl: ttl, logger: logger}
}

// List returns every node, trunks first, and whether it was served from cache.
func (s *ProjectTreeService) List(ctx context.Context) ([]dto.ProjectNodeResponse, bool, error) {
	var cached []dto.ProjectNodeResponse
	if hit, _ := s.cache.Get(ctx, projectTreeCacheKey, &cached); hit {
		return cached, true, nil
	}

	rows, err := s.nodes.List(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load project tree")
	}
	links, err := s.nodes.ListAssignees(ctx, nil, nil)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load project assignees")
	}
	out := buildNodeResponses(rows, links)

	_ = s.cache.Set(ctx, projectTreeCacheKey, out, s.ttl)
	return out, false, nil
}

// Create adds a node under an optional parent.
func (s *ProjectTreeService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateProjectNodeRequest) (*dto.ProjectNodeResponse, error) {
	if err := requireTreeAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.Validation("Name is required.")
	}
	if req.ParentID.Invalid {
		return nil, appErrors.Validation("Invalid parent id.")
	}
	target := req.AssigneeIDs
	if !target.Set || target.Null {
		target = req.ResearcherID
	}
	desired, err := normalizeAssigneeIDs(target)
	if err != nil {
		return nil, err
	}

	var nodeID int64
	err = runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		parentID := req.ParentID.Ptr()
		if parentID != nil {
			if _, err := s.loadNode(ctx, tx, *parentID, "Parent node not found."); err != nil {
				return err
			}
		}
		node := &models.ProjectNode{Name: name, ParentID: parentID}
		if err := s.nodes.Create(ctx, tx, node); err != nil {
			return appErrors.Internal(err, "failed to create project node")
		}
		nodeID = node.ID
		if desired == nil {
			return nil
		}
		return s.setAssignees(ctx, tx, node, desired)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.get(ctx, nodeID)
}

// Update applies a partial change. Every field is validated before any write.
func (s *ProjectTreeService) Update(ctx context.Context, actor *models.JWTClaims, id int64, req dto.UpdateProjectNodeRequest) (*dto.ProjectNodeResponse, error) {
	if err := requireTreeAdmin(actor); err != nil {
		return nil, err
	}

	var name string
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, appErrors.Validation("Name cannot be empty.")
		}
	}

	var desired []int64
	switch {
	case req.AssigneeIDs.Set:
		if req.AssigneeIDs.Null {
			desired = []int64{}
			break
		}
		ids, err := normalizeAssigneeIDs(req.AssigneeIDs)
		if err != nil {
			return nil, err
		}
		desired = ids
	case req.ResearcherID.Set:
		if req.ResearcherID.Null {
			desired = []int64{}
			break
		}
		ids, err := normalizeAssigneeIDs(req.ResearcherID)
		if err != nil {
			return nil, err
		}
		desired = ids
	}
	if req.ParentID.Invalid {
		return nil, appErrors.Validation("Invalid parent id.")
	}

	err := runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		node, err := s.loadNode(ctx, tx, id, "Project node not found.")
		if err != nil {
			return err
		}
		if req.Name != nil {
			node.Name = name
		}
		if req.ParentID.Set {
			parentID := req.ParentID.Ptr()
			if err := s.checkReparent(ctx, tx, node.ID, parentID); err != nil {
				return err
			}
			node.ParentID = parentID
		}
		if desired != nil {
			if err := s.setAssignees(ctx, tx, node, desired); err != nil {
				return err
			}
			return nil
		}
		if err := s.nodes.Update(ctx, tx, node); err != nil {
			return appErrors.Internal(err, "failed to update project node")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.get(ctx, id)
}

// Delete removes a node and its whole subtree, children first.
func (s *ProjectTreeService) Delete(ctx context.Context, actor *models.JWTClaims, id int64) error {
	if err := requireTreeAdmin(actor); err != nil {
		return err
	}
	err := runInTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.loadNode(ctx, tx, id, "Project node not found."); err != nil {
			return err
		}
		return s.deleteSubtree(ctx, tx, id, map[int64]bool{})
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *ProjectTreeService) deleteSubtree(ctx context.Context, tx *sqlx.Tx, id int64, visited map[int64]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true
	children, err := s.nodes.ListChildIDs(ctx, tx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to list child nodes")
	}
	for _, child := range children {
		if err := s.deleteSubtree(ctx, tx, child, visited); err != nil {
			return err
		}
	}
	if err := s.nodes.Delete(ctx, tx, id); err != nil {
		return appErrors.Internal(err, "failed to delete project node")
	}
	return nil
}

// checkReparent walks the ancestors of the new parent and rejects the move
// when it reaches the node itself.
func (s *ProjectTreeService) checkReparent(ctx context.Context, tx *sqlx.Tx, nodeID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	cur, err := s.loadNode(ctx, tx, *parentID, "Parent node not found.")
	if err != nil {
		return err
	}
	seen := map[int64]bool{}
	for cur != nil {
		if cur.ID == nodeID {
			return appErrors.Validation("Cannot move a node under its own branch.")
		}
		if seen[cur.ID] || cur.ParentID == nil {
			return nil
		}
		seen[cur.ID] = true
		next, err := s.nodes.FindByID(ctx, tx, *cur.ParentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Internal(err, "failed to walk project ancestors")
		}
		cur = next
	}
	return nil
}

// setAssignees reconciles the node's links with desired and rewrites the
// legacy researcher to the first desired user. It writes the node row.
func (s *ProjectTreeService) setAssignees(ctx context.Context, tx *sqlx.Tx, node *models.ProjectNode, desired []int64) error {
	users, err := s.users.FindByIDs(ctx, tx, desired)
	if err != nil {
		return appErrors.Internal(err, "failed to resolve assignees")
	}
	found := make(map[int64]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	var missing []int64
	for _, id := range desired {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		parts := make([]string, len(missing))
		for i, id := range missing {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return appErrors.Validation("Assignee(s) not found: " + strings.Join(parts, ", "))
	}

	current, err := s.nodes.ListAssigneeIDs(ctx, tx, node.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to load node assignees")
	}
	wanted := make(map[int64]bool, len(desired))
	for _, id := range desired {
		wanted[id] = true
	}
	linked := make(map[int64]bool, len(current))
	var stale []int64
	for _, id := range current {
		linked[id] = true
		if !wanted[id] {
			stale = append(stale, id)
		}
	}
	if err := s.nodes.RemoveAssignees(ctx, tx, node.ID, stale); err != nil {
		return appErrors.Internal(err, "failed to remove node assignees")
	}
	for _, id := range desired {
		if linked[id] {
			continue
		}
		if err := s.nodes.AddAssignee(ctx, tx, node.ID, id); err != nil {
			return appErrors.Internal(err, "failed to add node assignee")
		}
	}

	node.ResearcherID = nil
	if len(desired) > 0 {
		first := desired[0]
		node.ResearcherID = &first
	}
	if err := s.nodes.Update(ctx, tx, node); err != nil {
		return appErrors.Internal(err, "failed to update project node")
	}
	return nil
}

func (s *ProjectTreeService) loadNode(ctx context.Context, tx *sqlx.Tx, id int64, notFound string) (*models.ProjectNode, error) {
	node, err := s.nodes.FindByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, notFound)
		}
		return nil, appErrors.Internal(err, "failed to load project node")
	}
	return node, nil
}

func (s *ProjectTreeService) get(ctx context.Context, id int64) (*dto.ProjectNodeResponse, error) {
	row, err := s.nodes.FindRow(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Project node not found.")
		}
		return nil, appErrors.Internal(err, "failed to load project node")
	}
	links, err := s.nodes.ListAssignees(ctx, nil, []int64{id})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load project assignees")
	}
	out := buildNodeResponses([]models.ProjectNodeRow{*row}, links)
	return &out[0], nil
}

func (s *ProjectTreeService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, projectTreeCachePattern)
}

func requireTreeAdmin(actor *models.JWTClaims) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "Only admins can modify the project tree.")
	}
	return nil
}

// normalizeAssigneeIDs turns a decoded id list into the reconciliation target.
// A nil result means the field was absent and assignees stay untouched.
func normalizeAssigneeIDs(list dto.IDList) ([]int64, error) {
	if !list.Set || list.Null {
		return nil, nil
	}
	if list.Blank {
		return []int64{}, nil
	}
	if list.Err != nil {
		if dto.IsListShapeError(list.Err) {
			return nil, appErrors.Validation("Assignee ids must be a list.")
		}
		return nil, appErrors.Validation("Invalid assignee id.")
	}
	out := make([]int64, 0, len(list.Values))
	seen := make(map[int64]bool, len(list.Values))
	for _, id := range list.Values {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func buildNodeResponses(rows []models.ProjectNodeRow, links []models.ProjectAssignee) []dto.ProjectNodeResponse {
	byNode := make(map[int64][]dto.ProjectAssigneeResponse, len(rows))
	seen := make(map[[2]int64]bool, len(links))
	for _, link := range links {
		key := [2]int64{link.NodeID, link.UserID}
		if seen[key] {
			continue
		}
		seen[key] = true
		byNode[link.NodeID] = append(byNode[link.NodeID], dto.ProjectAssigneeResponse{
			ID:       link.UserID,
			Username: link.Username,
			FullName: link.FullName,
			Role:     string(link.Role),
		})
	}

	out := make([]dto.ProjectNodeResponse, 0, len(rows))
	for _, row := range rows {
		assignees := byNode[row.ID]
		if len(assignees) == 0 && row.ResearcherID != nil && row.ResearcherUsername != nil {
			legacy := dto.ProjectAssigneeResponse{ID: *row.ResearcherID, Username: *row.ResearcherUsername, FullName: row.ResearcherFullName}
			if row.ResearcherRole != nil {
				legacy.Role = string(*row.ResearcherRole)
			}
			assignees = []dto.ProjectAssigneeResponse{legacy}
		}
		if assignees == nil {
			assignees = []dto.ProjectAssigneeResponse{}
		}

		resp := dto.ProjectNodeResponse{
			ID:          row.ID,
			Name:        row.Name,
			ParentID:    row.ParentID,
			Assignees:   assignees,
			AssigneeIDs: make([]int64, 0, len(assignees)),
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
			ChildCount:  row.ChildCount,
		}
		for _, a := range assignees {
			resp.AssigneeIDs = append(resp.AssigneeIDs, a.ID)
		}
		if len(assignees) > 0 {
			primary := assignees[0]
			resp.Researcher = &primary
			resp.ResearcherID = &primary.ID
		}
		out = append(out, resp)
	}
	return out
}
