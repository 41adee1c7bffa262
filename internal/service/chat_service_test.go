package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
)

type cursorKey struct {
	user int64
	peer int64
}

type stubChatRepo struct {
	messages  []models.ChatMessage
	cursors   map[cursorKey]int64
	usernames map[int64]string
	failCount error
}

func newStubChatRepo() *stubChatRepo {
	repo := &stubChatRepo{cursors: map[cursorKey]int64{}, usernames: map[int64]string{}}
	for _, u := range taskTestUsers {
		repo.usernames[u.ID] = u.Username
	}
	return repo
}

func peerKey(peer *int64) int64 {
	if peer == nil {
		return 0
	}
	return *peer
}

func (r *stubChatRepo) row(m models.ChatMessage) models.ChatMessageRow {
	return models.ChatMessageRow{ChatMessage: m, SenderUsername: r.usernames[m.SenderID]}
}

func (r *stubChatRepo) Create(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = int64(len(r.messages) + 1)
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *stubChatRepo) FindByID(ctx context.Context, id int64) (*models.ChatMessageRow, error) {
	for _, m := range r.messages {
		if m.ID == id {
			row := r.row(m)
			return &row, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *stubChatRepo) list(match func(m models.ChatMessage) bool, afterID int64, limit int) []models.ChatMessageRow {
	var out []models.ChatMessageRow
	for _, m := range r.messages {
		if m.ID > afterID && match(m) {
			out = append(out, r.row(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *stubChatRepo) ListGroup(ctx context.Context, afterID int64, limit int) ([]models.ChatMessageRow, error) {
	return r.list(func(m models.ChatMessage) bool { return m.RecipientID == nil }, afterID, limit), nil
}

func (r *stubChatRepo) ListPrivate(ctx context.Context, userID, peerID, afterID int64, limit int) ([]models.ChatMessageRow, error) {
	return r.list(func(m models.ChatMessage) bool {
		if m.RecipientID == nil {
			return false
		}
		return (m.SenderID == userID && *m.RecipientID == peerID) || (m.SenderID == peerID && *m.RecipientID == userID)
	}, afterID, limit), nil
}

func (r *stubChatRepo) AdvanceCursor(ctx context.Context, userID int64, peerID *int64, lastID int64) error {
	key := cursorKey{userID, peerKey(peerID)}
	if lastID > r.cursors[key] {
		r.cursors[key] = lastID
	}
	return nil
}

func (r *stubChatRepo) Cursor(ctx context.Context, userID int64, peerID *int64) (int64, error) {
	return r.cursors[cursorKey{userID, peerKey(peerID)}], nil
}

func (r *stubChatRepo) MaxGroupCursor(ctx context.Context, excludeUserID int64) (int64, error) {
	var max int64
	for key, v := range r.cursors {
		if key.peer == 0 && key.user != excludeUserID && v > max {
			max = v
		}
	}
	return max, nil
}

func (r *stubChatRepo) CountGroupUnread(ctx context.Context, userID int64) (int, error) {
	if r.failCount != nil {
		return 0, r.failCount
	}
	cursor := r.cursors[cursorKey{userID, 0}]
	count := 0
	for _, m := range r.messages {
		if m.RecipientID == nil && m.SenderID != userID && m.ID > cursor {
			count++
		}
	}
	return count, nil
}

func (r *stubChatRepo) CountPrivateUnread(ctx context.Context, userID int64) ([]models.PrivateUnread, error) {
	counts := map[int64]int{}
	for _, m := range r.messages {
		if m.RecipientID != nil && *m.RecipientID == userID && m.ID > r.cursors[cursorKey{userID, m.SenderID}] {
			counts[m.SenderID]++
		}
	}
	var out []models.PrivateUnread
	for sender, count := range counts {
		out = append(out, models.PrivateUnread{SenderID: sender, Count: count})
	}
	return out, nil
}

func (r *stubChatRepo) Delete(ctx context.Context, id int64) error {
	for i, m := range r.messages {
		if m.ID == id {
			r.messages = append(r.messages[:i], r.messages[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newChatFixture() (*ChatService, *stubChatRepo) {
	repo := newStubChatRepo()
	users := stubTaskUsers{users: map[int64]models.User{}}
	for _, u := range taskTestUsers {
		users.users[u.ID] = u
	}
	return NewChatService(repo, users, nil), repo
}

func postChat(t *testing.T, svc *ChatService, actor *models.JWTClaims, body string, target dto.ChatTarget) int64 {
	t.Helper()
	msg, err := svc.Post(context.Background(), actor, dto.PostChatMessageRequest{Body: body, Target: target})
	require.NoError(t, err)
	return msg.ID
}

var (
	chatRita = &models.JWTClaims{UserID: 2, Username: "rita", Role: models.RoleResearcher}
	chatReza = &models.JWTClaims{UserID: 3, Username: "reza", Role: models.RoleResearcher}
	chatVera = &models.JWTClaims{UserID: 4, Username: "vera", Role: models.RoleSupervisor}
)

func TestChatServicePostValidation(t *testing.T) {
	svc, _ := newChatFixture()
	ctx := context.Background()

	_, err := svc.Post(ctx, chatRita, dto.PostChatMessageRequest{Body: "  "})
	assert.Equal(t, "Message body is required.", appErrors.FromError(err).Message)

	_, err = svc.Post(ctx, chatRita, dto.PostChatMessageRequest{Body: "hi", Target: dto.ChatTarget{PeerID: 2}})
	assert.Equal(t, "Cannot send a private message to yourself.", appErrors.FromError(err).Message)

	_, err = svc.Post(ctx, chatRita, dto.PostChatMessageRequest{Body: "hi", Target: dto.ChatTarget{PeerID: 77}})
	assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)

	_, err = svc.Post(ctx, chatRita, dto.PostChatMessageRequest{Body: "hi", Target: dto.ChatTarget{Invalid: true}})
	assert.Equal(t, "Invalid recipient.", appErrors.FromError(err).Message)

	msg, err := svc.Post(ctx, chatRita, dto.PostChatMessageRequest{Body: " hello "})
	require.NoError(t, err)
	assert.Nil(t, msg.RecipientID, "absent target posts to the group")
	assert.Equal(t, "hello", msg.Body)
	assert.True(t, msg.IsMine)
	assert.True(t, msg.CanDelete)
}

func TestChatServiceListMarksRead(t *testing.T) {
	svc, repo := newChatFixture()
	ctx := context.Background()
	group := dto.ChatTarget{Group: true}
	first := postChat(t, svc, chatRita, "one", group)
	second := postChat(t, svc, chatReza, "two", group)
	postChat(t, svc, chatRita, "private", dto.ChatTarget{PeerID: 3})

	msgs, err := svc.List(ctx, chatVera, dto.ChatListQuery{Target: group, MarkRead: false})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Zero(t, repo.cursors[cursorKey{4, 0}])

	msgs, err = svc.List(ctx, chatVera, dto.ChatListQuery{Target: group, AfterID: first, MarkRead: true})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, second, msgs[0].ID)
	assert.False(t, msgs[0].IsMine)
	assert.False(t, msgs[0].CanDelete)
	assert.Equal(t, second, repo.cursors[cursorKey{4, 0}])

	// cursor never moves back
	require.NoError(t, svc.MarkRead(ctx, chatVera, dto.ChatReadRequest{Target: group, LastID: first}))
	assert.Equal(t, second, repo.cursors[cursorKey{4, 0}])

	msgs, err = svc.List(ctx, chatRita, dto.ChatListQuery{Target: group})
	require.NoError(t, err)
	assert.False(t, msgs[0].CanDelete, "vera has read past rita's message")

	private, err := svc.List(ctx, chatReza, dto.ChatListQuery{Target: dto.ChatTarget{PeerID: 2}, MarkRead: true})
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "private", private[0].Body)
}

func TestChatServiceUnread(t *testing.T) {
	svc, _ := newChatFixture()
	ctx := context.Background()
	group := dto.ChatTarget{Group: true}
	postChat(t, svc, chatRita, "g1", group)
	postChat(t, svc, chatReza, "own group message", group)
	postChat(t, svc, chatRita, "p1", dto.ChatTarget{PeerID: 3})
	last := postChat(t, svc, chatRita, "p2", dto.ChatTarget{PeerID: 3})
	postChat(t, svc, chatVera, "p3", dto.ChatTarget{PeerID: 3})

	resp, err := svc.Unread(ctx, chatReza)
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Group)
	assert.Equal(t, map[int64]int{2: 2, 4: 1}, resp.Privates)

	require.NoError(t, svc.MarkRead(ctx, chatReza, dto.ChatReadRequest{Target: dto.ChatTarget{PeerID: 2}, LastID: last}))
	resp, err = svc.Unread(ctx, chatReza)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{4: 1}, resp.Privates)
}

func TestChatServiceUnreadPropagatesErrors(t *testing.T) {
	svc, repo := newChatFixture()
	repo.failCount = errors.New("db down")
	_, err := svc.Unread(context.Background(), chatReza)
	assert.Equal(t, appErrors.ErrInternal.Status, appErrors.FromError(err).Status)
}

func TestChatServiceDelete(t *testing.T) {
	ctx := context.Background()
	group := dto.ChatTarget{Group: true}

	t.Run("sender before anyone else reads", func(t *testing.T) {
		svc, repo := newChatFixture()
		id := postChat(t, svc, chatRita, "oops", group)
		require.NoError(t, repo.AdvanceCursor(ctx, 2, nil, id))
		require.NoError(t, svc.Delete(ctx, chatRita, id))
		assert.Empty(t, repo.messages)
	})

	t.Run("group message read by another user", func(t *testing.T) {
		svc, repo := newChatFixture()
		id := postChat(t, svc, chatRita, "seen", group)
		require.NoError(t, repo.AdvanceCursor(ctx, 4, nil, id))
		err := svc.Delete(ctx, chatRita, id)
		assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
	})

	t.Run("private message read by recipient", func(t *testing.T) {
		svc, repo := newChatFixture()
		id := postChat(t, svc, chatRita, "dm", dto.ChatTarget{PeerID: 3})
		peer := int64(2)
		require.NoError(t, repo.AdvanceCursor(ctx, 4, &peer, id))
		require.NoError(t, svc.Delete(ctx, chatRita, postChat(t, svc, chatRita, "other", dto.ChatTarget{PeerID: 3})))

		require.NoError(t, repo.AdvanceCursor(ctx, 3, &peer, id))
		err := svc.Delete(ctx, chatRita, id)
		assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
	})

	t.Run("not the sender", func(t *testing.T) {
		svc, _ := newChatFixture()
		id := postChat(t, svc, chatRita, "mine", group)
		err := svc.Delete(ctx, chatReza, id)
		assert.Equal(t, appErrors.ErrForbidden.Status, appErrors.FromError(err).Status)
	})

	t.Run("admin deletes anything", func(t *testing.T) {
		svc, repo := newChatFixture()
		id := postChat(t, svc, chatRita, "seen", group)
		require.NoError(t, repo.AdvanceCursor(ctx, 4, nil, id))
		require.NoError(t, svc.Delete(ctx, claimsFor(1, models.RoleAdmin), id))
		assert.Empty(t, repo.messages)
	})

	t.Run("missing", func(t *testing.T) {
		svc, _ := newChatFixture()
		err := svc.Delete(ctx, chatRita, 42)
		assert.Equal(t, appErrors.ErrNotFound.Status, appErrors.FromError(err).Status)
	})
}
