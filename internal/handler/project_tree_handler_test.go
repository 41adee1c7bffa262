package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/middleware"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type projectTreeServiceMock struct {
	nodes   []dto.ProjectNodeResponse
	hit     bool
	update  dto.UpdateProjectNodeRequest
	id      int64
	err     error
	deleted []int64
}

func (m *projectTreeServiceMock) List(ctx context.Context) ([]dto.ProjectNodeResponse, bool, error) {
	return m.nodes, m.hit, m.err
}

func (m *projectTreeServiceMock) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateProjectNodeRequest) (*dto.ProjectNodeResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ProjectNodeResponse{ID: 11, Name: req.Name, ParentID: req.ParentID.Ptr()}, nil
}

func (m *projectTreeServiceMock) Update(ctx context.Context, actor *models.JWTClaims, id int64, req dto.UpdateProjectNodeRequest) (*dto.ProjectNodeResponse, error) {
	m.id, m.update = id, req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.ProjectNodeResponse{ID: id}, nil
}

func (m *projectTreeServiceMock) Delete(ctx context.Context, actor *models.JWTClaims, id int64) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func TestProjectTreeHandlerListReportsCacheHit(t *testing.T) {
	mockSvc := &projectTreeServiceMock{nodes: []dto.ProjectNodeResponse{{ID: 1, Name: "Trunk"}}, hit: true}
	handler := NewProjectTreeHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/project-tree", nil)
	middleware.WithResponseMeta()(c)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var env struct {
		Data []dto.ProjectNodeResponse `json:"data"`
		Meta map[string]interface{}    `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Len(t, env.Data, 1)
	assert.Equal(t, true, env.Meta["cache_hit"])
}

func TestProjectTreeHandlerCreate(t *testing.T) {
	handler := NewProjectTreeHandler(&projectTreeServiceMock{})

	c, w := newGinContext(http.MethodPost, "/project-tree", []byte(`{"name":"Branch","parent_id":"3"}`))
	withActor(c, 1, models.RoleAdmin)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	var node dto.ProjectNodeResponse
	decodeEnvelope(t, w, &node)
	assert.Equal(t, "Branch", node.Name)
	require.NotNil(t, node.ParentID)
	assert.Equal(t, int64(3), *node.ParentID)
}

func TestProjectTreeHandlerUpdate(t *testing.T) {
	mockSvc := &projectTreeServiceMock{}
	handler := NewProjectTreeHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/project-tree/4", []byte(`{"assignee_ids":[2,"3"],"parent_id":null}`))
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), mockSvc.id)
	assert.Equal(t, []int64{2, 3}, mockSvc.update.AssigneeIDs.Values)
	assert.True(t, mockSvc.update.ParentID.Null)
	assert.Nil(t, mockSvc.update.Name)

	mockSvc.err = appErrors.Validation("cannot move a node under its own branch")
	c, w = newGinContext(http.MethodPost, "/project-tree/4", []byte(`{"parent_id":5}`))
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot move a node under its own branch", errorMessage(t, w))
}

func TestProjectTreeHandlerDelete(t *testing.T) {
	mockSvc := &projectTreeServiceMock{}
	handler := NewProjectTreeHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/project-tree/0", nil)
	c.Params = gin.Params{{Key: "id", Value: "0"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, mockSvc.deleted)

	c, w = newGinContext(http.MethodDelete, "/project-tree/8", nil)
	c.Params = gin.Params{{Key: "id", Value: "8"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Delete(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{8}, mockSvc.deleted)
}
