package service

import (
	"context"
	"io"
	"testing"
	"time"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
)

type fakeConvRepo struct {
	byPair map[string]*entity.Conversation
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{byPair: make(map[string]*entity.Conversation)}
}

func (r *fakeConvRepo) GetOrCreate(ctx context.Context, userA, userB uuid.UUID) (*entity.Conversation, error) {
	key := entity.PairKeyFor(userA, userB)
	if conv, ok := r.byPair[key]; ok {
		return conv, nil
	}
	conv := &entity.Conversation{
		ID:      uuid.New(),
		PairKey: key,
		UserAID: userA,
		UserBID: userB,
	}
	r.byPair[key] = conv
	return conv, nil
}

func (r *fakeConvRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	for _, conv := range r.byPair {
		if conv.ID == id {
			return conv, nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (r *fakeConvRepo) AppendMessage(ctx context.Context, msg *entity.ConversationMessage, preview string) error {
	conv, err := r.FindByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.ReadBy = []entity.MessageRead{{MessageID: msg.ID, UserID: msg.SenderID, ReadAt: msg.CreatedAt}}
	conv.Messages = append(conv.Messages, *msg)
	conv.LastMessage = preview
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (r *fakeConvRepo) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	conv, err := r.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	for i := range conv.Messages {
		seen := false
		for _, receipt := range conv.Messages[i].ReadBy {
			if receipt.UserID == userID {
				seen = true
				break
			}
		}
		if !seen {
			conv.Messages[i].ReadBy = append(conv.Messages[i].ReadBy, entity.MessageRead{
				MessageID: conv.Messages[i].ID,
				UserID:    userID,
				ReadAt:    time.Now(),
			})
		}
	}
	return nil
}

func (r *fakeConvRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Conversation, error) {
	var out []entity.Conversation
	for _, conv := range r.byPair {
		if conv.HasParticipant(userID) {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (r *fakeConvRepo) UnreadCounts(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	for _, id := range conversationIDs {
		conv, err := r.FindByID(ctx, id)
		if err != nil {
			continue
		}
		for _, msg := range conv.Messages {
			if msg.SenderID == userID {
				continue
			}
			read := false
			for _, receipt := range msg.ReadBy {
				if receipt.UserID == userID {
					read = true
					break
				}
			}
			if !read {
				counts[id]++
			}
		}
	}
	return counts, nil
}

type fakeUserRepo struct {
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[uuid.UUID]*entity.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error) {
	var out []entity.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) FriendIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (r *fakeUserRepo) Friends(ctx context.Context, userID uuid.UUID) ([]entity.User, error) {
	return nil, nil
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) AddFriendship(ctx context.Context, userID, friendID uuid.UUID) error {
	return nil
}

func (r *fakeUserRepo) CountUsers(ctx context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

type fakePresenceRepo struct {
	online map[uuid.UUID]bool
}

func (r *fakePresenceRepo) SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	if r.online == nil {
		r.online = make(map[uuid.UUID]bool)
	}
	r.online[userID] = isOnline
	return nil
}

func (r *fakePresenceRepo) OnlineStatus(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	status := make(map[uuid.UUID]bool)
	for _, id := range userIDs {
		status[id] = r.online[id]
	}
	return status, nil
}

type fakeStorage struct {
	uploads int
}

func (s *fakeStorage) UploadImage(ctx context.Context, r io.Reader, folder, fileName string) (string, error) {
	s.uploads++
	return "https://images.example/" + fileName, nil
}

func (s *fakeStorage) DeleteImage(ctx context.Context, fileURL string) error {
	return nil
}

func newTestService() (ConversationService, *fakeConvRepo, *entity.User, *entity.User) {
	alice := &entity.User{ID: uuid.New(), Username: "alice", FullName: "Alice"}
	bob := &entity.User{ID: uuid.New(), Username: "bob", FullName: "Bob"}

	repo := newFakeConvRepo()
	svc := NewConversationService(repo, newFakeUserRepo(alice, bob), &fakePresenceRepo{}, &fakeStorage{}, "chat_images")
	return svc, repo, alice, bob
}

func TestGetOrCreateIsSymmetric(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	first, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate(alice, bob) failed: %v", err)
	}
	second, err := svc.GetOrCreate(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("GetOrCreate(bob, alice) failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected one conversation for the pair, got %s and %s", first.ID, second.ID)
	}
}

func TestGetOrCreateRejectsSelf(t *testing.T) {
	svc, _, alice, _ := newTestService()

	if _, err := svc.GetOrCreate(context.Background(), alice.ID, alice.ID); err == nil {
		t.Fatal("expected self-conversation to be rejected")
	}
}

func TestGetOrCreateUnknownUser(t *testing.T) {
	svc, _, alice, _ := newTestService()

	if _, err := svc.GetOrCreate(context.Background(), alice.ID, uuid.New()); err == nil {
		t.Fatal("expected unknown other participant to be rejected")
	}
}

func TestSendMessageAppendsWithSenderReceipt(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	updated, err := svc.SendMessage(ctx, conv.ID, alice.ID, "hello bob", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if len(updated.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(updated.Messages))
	}
	msg := updated.Messages[0]
	if len(msg.ReadBy) != 1 || msg.ReadBy[0].UserID != alice.ID {
		t.Fatalf("expected sender receipt only, got %v", msg.ReadBy)
	}
	if updated.LastMessage != "hello bob" {
		t.Fatalf("expected last message preview, got %q", updated.LastMessage)
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if _, err := svc.SendMessage(ctx, conv.ID, alice.ID, "   ", ""); err == nil {
		t.Fatal("expected whitespace-only content to be rejected")
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if _, err := svc.SendMessage(ctx, conv.ID, uuid.New(), "hi", ""); err == nil {
		t.Fatal("expected a stranger's send to be rejected")
	}
}

func TestSendImageMessage(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	updated, err := svc.SendImageMessage(ctx, conv.ID, alice.ID, "pic.png", nil)
	if err != nil {
		t.Fatalf("SendImageMessage failed: %v", err)
	}

	if len(updated.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(updated.Messages))
	}
	msg := updated.Messages[0]
	if msg.Type != entity.MessageTypeImage {
		t.Fatalf("expected image message, got type %q", msg.Type)
	}
	if msg.ImageURL == nil || *msg.ImageURL == "" {
		t.Fatal("expected a stored image url")
	}
	if updated.LastMessage == "" {
		t.Fatal("expected an image preview as the last message")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc, repo, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if _, err := svc.SendMessage(ctx, conv.ID, bob.ID, "hey", ""); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.MarkRead(ctx, conv.ID, alice.ID); err != nil {
			t.Fatalf("MarkRead call %d failed: %v", i+1, err)
		}
	}

	stored, err := repo.FindByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got := len(stored.Messages[0].ReadBy); got != 2 {
		t.Fatalf("expected 2 receipts (sender + reader), got %d", got)
	}
}

func TestListReportsUnreadCounts(t *testing.T) {
	svc, _, alice, bob := newTestService()
	ctx := context.Background()

	conv, err := svc.GetOrCreate(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	for _, content := range []string{"one", "two"} {
		if _, err := svc.SendMessage(ctx, conv.ID, bob.ID, content, ""); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	items, err := svc.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(items))
	}
	if items[0].UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", items[0].UnreadCount)
	}
	if items[0].Other.ID != bob.ID {
		t.Fatalf("expected other participant bob, got %s", items[0].Other.ID)
	}

	if err := svc.MarkRead(ctx, conv.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	items, err = svc.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("List after MarkRead failed: %v", err)
	}
	if items[0].UnreadCount != 0 {
		t.Fatalf("expected 0 unread after MarkRead, got %d", items[0].UnreadCount)
	}
}
