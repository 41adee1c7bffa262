package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

// chatPageSize caps a single message listing.
const chatPageSize = 200

type chatRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	FindByID(ctx context.Context, id int64) (*models.ChatMessageRow, error)
	ListGroup(ctx context.Context, afterID int64, limit int) ([]models.ChatMessageRow, error)
	ListPrivate(ctx context.Context, userID, peerID, afterID int64, limit int) ([]models.ChatMessageRow, error)
	AdvanceCursor(ctx context.Context, userID int64, peerID *int64, lastID int64) error
	Cursor(ctx context.Context, userID int64, peerID *int64) (int64, error)
	MaxGroupCursor(ctx context.Context, excludeUserID int64) (int64, error)
	CountGroupUnread(ctx context.Context, userID int64) (int, error)
	CountPrivateUnread(ctx context.Context, userID int64) ([]models.PrivateUnread, error)
	Delete(ctx context.Context, id int64) error
}

type chatUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// ChatService implements group and private chat with per-channel read cursors.
type ChatService struct {
	chat   chatRepository
	users  chatUserRepository
	logger *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(chat chatRepository, users chatUserRepository, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{chat: chat, users: users, logger: logger}
}

// isGroupTarget treats an absent or zero target as the group channel.
func isGroupTarget(t dto.ChatTarget) bool {
	return t.Group || (!t.Invalid && t.PeerID == 0)
}

// channelPeer returns the cursor key for a target: nil for the group channel.
func channelPeer(t dto.ChatTarget) *int64 {
	if isGroupTarget(t) {
		return nil
	}
	id := t.PeerID
	return &id
}

// List returns up to 200 messages after q.AfterID in ascending id order and,
// unless disabled, advances the read cursor to the last returned id.
func (s *ChatService) List(ctx context.Context, actor *models.JWTClaims, q dto.ChatListQuery) ([]dto.ChatMessageResponse, error) {
	if q.Target.Invalid {
		return nil, appErrors.Validation("Invalid target.")
	}
	peer := channelPeer(q.Target)

	var (
		rows []models.ChatMessageRow
		err  error
	)
	if peer == nil {
		rows, err = s.chat.ListGroup(ctx, q.AfterID, chatPageSize)
	} else {
		rows, err = s.chat.ListPrivate(ctx, actor.UserID, *peer, q.AfterID, chatPageSize)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list chat messages")
	}
	if len(rows) == 0 {
		return []dto.ChatMessageResponse{}, nil
	}

	if q.MarkRead {
		if err := s.chat.AdvanceCursor(ctx, actor.UserID, peer, rows[len(rows)-1].ID); err != nil {
			return nil, appErrors.Internal(err, "failed to update read cursor")
		}
	}

	// One cursor covers every own message on the channel.
	var readUpTo int64
	if !actor.IsAdmin() {
		if peer == nil {
			readUpTo, err = s.chat.MaxGroupCursor(ctx, actor.UserID)
		} else {
			self := actor.UserID
			readUpTo, err = s.chat.Cursor(ctx, *peer, &self)
		}
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load read cursors")
		}
	}

	out := make([]dto.ChatMessageResponse, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		canDelete := actor.IsAdmin() || (row.SenderID == actor.UserID && row.ID > readUpTo)
		out = append(out, chatResponse(row, actor.UserID, canDelete))
	}
	return out, nil
}

// Post sends a message to the group channel or to one user.
func (s *ChatService) Post(ctx context.Context, actor *models.JWTClaims, req dto.PostChatMessageRequest) (*dto.ChatMessageResponse, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, appErrors.Validation("Message body is required.")
	}
	if req.Target.Invalid {
		return nil, appErrors.Validation("Invalid recipient.")
	}
	msg := &models.ChatMessage{SenderID: actor.UserID, Body: body}
	if peer := channelPeer(req.Target); peer != nil {
		if *peer == actor.UserID {
			return nil, appErrors.Validation("Cannot send a private message to yourself.")
		}
		if _, err := s.users.FindByID(ctx, *peer); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "Recipient not found.")
			}
			return nil, appErrors.Internal(err, "failed to load recipient")
		}
		msg.RecipientID = peer
	}

	if err := s.chat.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to send chat message")
	}
	row := &models.ChatMessageRow{ChatMessage: *msg, SenderUsername: actor.Username}
	if u, err := s.users.FindByID(ctx, actor.UserID); err == nil {
		row.SenderUsername, row.SenderFullName = u.Username, u.FullName
	}
	// Nobody can have read a message that was just created.
	resp := chatResponse(row, actor.UserID, true)
	return &resp, nil
}

// MarkRead advances actor's cursor on a channel. Cursors never move back.
func (s *ChatService) MarkRead(ctx context.Context, actor *models.JWTClaims, req dto.ChatReadRequest) error {
	if req.Target.Invalid {
		return appErrors.Validation("Invalid target")
	}
	if req.LastID < 0 {
		return appErrors.Validation("Invalid last_id")
	}
	if err := s.chat.AdvanceCursor(ctx, actor.UserID, channelPeer(req.Target), req.LastID); err != nil {
		return appErrors.Internal(err, "failed to update read cursor")
	}
	return nil
}

// Unread counts group messages from others and private messages per sender
// past actor's cursors. Both counts are queried concurrently.
func (s *ChatService) Unread(ctx context.Context, actor *models.JWTClaims) (*dto.ChatUnreadResponse, error) {
	var (
		group    int
		privates []models.PrivateUnread
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		count, err := s.chat.CountGroupUnread(gctx, actor.UserID)
		if err != nil {
			return err
		}
		group = count
		return nil
	})
	g.Go(func() error {
		rows, err := s.chat.CountPrivateUnread(gctx, actor.UserID)
		if err != nil {
			return err
		}
		privates = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "failed to count unread chat messages")
	}

	resp := &dto.ChatUnreadResponse{Group: group, Privates: make(map[int64]int, len(privates))}
	for _, p := range privates {
		if p.Count > 0 {
			resp.Privates[p.SenderID] = p.Count
		}
	}
	return resp, nil
}

// Delete removes a message. Admins may delete anything; senders only while
// no other participant has read it.
func (s *ChatService) Delete(ctx context.Context, actor *models.JWTClaims, id int64) error {
	row, err := s.chat.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Message not found.")
		}
		return appErrors.Internal(err, "failed to load chat message")
	}
	allowed, err := s.canDelete(ctx, actor, &row.ChatMessage)
	if err != nil {
		return err
	}
	if !allowed {
		return appErrors.Clone(appErrors.ErrForbidden, "You are not allowed to delete this message.")
	}
	if err := s.chat.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Message not found.")
		}
		return appErrors.Internal(err, "failed to delete chat message")
	}
	s.logger.Info("chat message deleted", zap.Int64("message_id", id), zap.Int64("actor_id", actor.UserID))
	return nil
}

func (s *ChatService) canDelete(ctx context.Context, actor *models.JWTClaims, msg *models.ChatMessage) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}
	if msg.SenderID != actor.UserID {
		return false, nil
	}
	var (
		cursor int64
		err    error
	)
	if msg.IsGroup() {
		cursor, err = s.chat.MaxGroupCursor(ctx, msg.SenderID)
	} else {
		sender := msg.SenderID
		cursor, err = s.chat.Cursor(ctx, *msg.RecipientID, &sender)
	}
	if err != nil {
		return false, appErrors.Internal(err, "failed to load read cursors")
	}
	return cursor < msg.ID, nil
}

func chatResponse(row *models.ChatMessageRow, viewerID int64, canDelete bool) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{
		ID:          row.ID,
		Body:        row.Body,
		SenderID:    row.SenderID,
		SenderName:  row.SenderName(),
		RecipientID: row.RecipientID,
		CreatedAt:   row.CreatedAt,
		IsMine:      row.SenderID == viewerID,
		CanDelete:   canDelete,
	}
}
