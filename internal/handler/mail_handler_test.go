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

type mailServiceMock struct {
	folder string
	send   dto.SendMailRequest
	bulk   dto.MailBulkRequest
	readID int64
	err    error
}

func (m *mailServiceMock) Send(ctx context.Context, actor *models.JWTClaims, req dto.SendMailRequest) (*dto.MailResponse, error) {
	m.send = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.MailResponse{ID: 1, Subject: req.Subject}, nil
}

func (m *mailServiceMock) List(ctx context.Context, actor *models.JWTClaims, folder string) ([]dto.MailResponse, error) {
	m.folder = folder
	return []dto.MailResponse{}, m.err
}

func (m *mailServiceMock) MarkRead(ctx context.Context, actor *models.JWTClaims, id int64) error {
	m.readID = id
	return m.err
}

func (m *mailServiceMock) Bulk(ctx context.Context, actor *models.JWTClaims, req dto.MailBulkRequest) (*dto.MailBulkResult, error) {
	m.bulk = req
	return &dto.MailBulkResult{OK: true, Affected: int64(len(req.IDs))}, m.err
}

func (m *mailServiceMock) UnreadCount(ctx context.Context, actor *models.JWTClaims) (*dto.UnreadCountResponse, error) {
	return &dto.UnreadCountResponse{Count: 3}, m.err
}

func TestMailHandlerList(t *testing.T) {
	mockSvc := &mailServiceMock{}
	handler := NewMailHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/mails?folder=trash", nil)
	withActor(c, 2, models.RoleResearcher)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trash", mockSvc.folder)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	mockSvc.err = appErrors.Validation("Invalid folder")
	c, w = newGinContext(http.MethodGet, "/mails?folder=spam", nil)
	withActor(c, 2, models.RoleResearcher)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMailHandlerSend(t *testing.T) {
	mockSvc := &mailServiceMock{}
	handler := NewMailHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/mails", []byte(`{"subject":"Hi","recipient_id":"3","is_draft":"1"}`))
	withActor(c, 2, models.RoleResearcher)
	handler.Send(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Hi", mockSvc.send.Subject)
	assert.Equal(t, int64(3), mockSvc.send.RecipientID.ID)
	assert.True(t, bool(mockSvc.send.IsDraft))
}

func TestMailHandlerBulkAndUnread(t *testing.T) {
	mockSvc := &mailServiceMock{}
	handler := NewMailHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/mails/bulk", []byte(`{"ids":[1,2],"action":"move","target":"saved"}`))
	withActor(c, 2, models.RoleResearcher)
	handler.Bulk(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "saved", mockSvc.bulk.Target)
	assert.JSONEq(t, `{"data":{"ok":true,"affected":2}}`, w.Body.String())

	c, w = newGinContext(http.MethodGet, "/mails/unread_count", nil)
	withActor(c, 2, models.RoleResearcher)
	handler.UnreadCount(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"count":3}}`, w.Body.String())

	c, w = newGinContext(http.MethodPost, "/mails/9/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "9"}}
	withActor(c, 2, models.RoleResearcher)
	handler.MarkRead(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), mockSvc.readID)
}
