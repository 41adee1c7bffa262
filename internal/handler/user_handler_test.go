package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type userServiceMock struct {
	create   dto.CreateUserRequest
	update   dto.UpdateUserRequest
	targetID int64
	actorID  int64
	meta     models.LoginRequest
	err      error
}

func (m *userServiceMock) List(ctx context.Context) ([]dto.UserResponse, error) {
	return []dto.UserResponse{{ID: 1, Username: "root"}}, m.err
}

func (m *userServiceMock) Create(ctx context.Context, req dto.CreateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error) {
	m.create, m.actorID, m.meta = req, actorID, meta
	if m.err != nil {
		return nil, m.err
	}
	return &dto.UserResponse{ID: 10, Username: req.Username}, nil
}

func (m *userServiceMock) Update(ctx context.Context, id int64, req dto.UpdateUserRequest, actorID int64, meta models.LoginRequest) (*dto.UserResponse, error) {
	m.targetID, m.update, m.actorID = id, req, actorID
	return &dto.UserResponse{ID: id}, m.err
}

func (m *userServiceMock) Delete(ctx context.Context, id int64, actorID int64, meta models.LoginRequest) error {
	m.targetID, m.actorID = id, actorID
	return m.err
}

func TestUserHandlerCreate(t *testing.T) {
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/admin/users", []byte(`{"username":"nina","email":"nina@example.com","password":"pw"}`))
	c.Request.Header.Set("User-Agent", "handler-test")
	withActor(c, 1, models.RoleAdmin)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "nina", mockSvc.create.Username)
	assert.Equal(t, int64(1), mockSvc.actorID)
	assert.Equal(t, "handler-test", mockSvc.meta.UserAgent)

	mockSvc.err = appErrors.Clone(appErrors.ErrConflict, "User exists.")
	c, w = newGinContext(http.MethodPost, "/admin/users", []byte(`{"username":"nina","email":"nina@example.com","password":"pw"}`))
	withActor(c, 1, models.RoleAdmin)
	handler.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUserHandlerUpdateAndDelete(t *testing.T) {
	mockSvc := &userServiceMock{}
	handler := NewUserHandler(mockSvc)

	c, w := newGinContext(http.MethodPatch, "/admin/users/4", []byte(`{"role":"supervisor","is_active":"0"}`))
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(4), mockSvc.targetID)
	require.NotNil(t, mockSvc.update.IsActive)
	assert.False(t, bool(*mockSvc.update.IsActive))

	c, w = newGinContext(http.MethodDelete, "/admin/users/4", nil)
	c.Params = gin.Params{{Key: "id", Value: "4"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Delete(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodDelete, "/admin/users/x", nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	withActor(c, 1, models.RoleAdmin)
	handler.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandlerList(t *testing.T) {
	handler := NewUserHandler(&userServiceMock{})
	c, w := newGinContext(http.MethodGet, "/users", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	var users []dto.UserResponse
	decodeEnvelope(t, w, &users)
	assert.Equal(t, "root", users[0].Username)
}
