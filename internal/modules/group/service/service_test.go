package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/internal/modules/group/dto"
	notifDto "anoa.com/sociablechat/internal/modules/notification/dto"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
)

type fakeGroupRepo struct {
	groups map[uuid.UUID]*entity.Group
	users  map[uuid.UUID]*entity.User
}

func newFakeGroupRepo(users map[uuid.UUID]*entity.User) *fakeGroupRepo {
	return &fakeGroupRepo{groups: make(map[uuid.UUID]*entity.Group), users: users}
}

func (r *fakeGroupRepo) Create(ctx context.Context, group *entity.Group, memberIDs []uuid.UUID) error {
	group.ID = uuid.New()
	now := time.Now()
	group.Members = []entity.GroupMember{{GroupID: group.ID, UserID: group.AdminID, JoinedAt: now}}
	for i, id := range memberIDs {
		group.Members = append(group.Members, entity.GroupMember{
			GroupID:  group.ID,
			UserID:   id,
			JoinedAt: now.Add(time.Duration(i+1) * time.Millisecond),
		})
	}
	r.groups[group.ID] = group
	return nil
}

func (r *fakeGroupRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	group, ok := r.groups[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	for i := range group.Members {
		group.Members[i].User = r.users[group.Members[i].UserID]
	}
	return group, nil
}

func (r *fakeGroupRepo) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	group, ok := r.groups[groupID]
	if !ok {
		return false, nil
	}
	for _, m := range group.Members {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeGroupRepo) AppendMessage(ctx context.Context, msg *entity.GroupMessage) error {
	group, ok := r.groups[msg.GroupID]
	if !ok {
		return apperror.ErrNotFound
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	if msg.Type != entity.MessageTypeSystem {
		msg.ReadBy = []entity.GroupMessageRead{{MessageID: msg.ID, UserID: msg.SenderID, ReadAt: msg.CreatedAt}}
	}
	group.Messages = append(group.Messages, *msg)
	group.LastMessageAt = msg.CreatedAt
	return nil
}

func (r *fakeGroupRepo) MarkRead(ctx context.Context, groupID, userID uuid.UUID) error {
	group, ok := r.groups[groupID]
	if !ok {
		return apperror.ErrNotFound
	}
	for i := range group.Messages {
		seen := false
		for _, receipt := range group.Messages[i].ReadBy {
			if receipt.UserID == userID {
				seen = true
				break
			}
		}
		if !seen {
			group.Messages[i].ReadBy = append(group.Messages[i].ReadBy, entity.GroupMessageRead{
				MessageID: group.Messages[i].ID,
				UserID:    userID,
				ReadAt:    time.Now(),
			})
		}
	}
	return nil
}

func (r *fakeGroupRepo) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	group, ok := r.groups[groupID]
	if !ok {
		return apperror.ErrNotFound
	}
	for i, m := range group.Members {
		if m.UserID == userID {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeGroupRepo) EarliestMember(ctx context.Context, groupID uuid.UUID) (*entity.GroupMember, error) {
	group, ok := r.groups[groupID]
	if !ok || len(group.Members) == 0 {
		return nil, apperror.ErrNotFound
	}
	earliest := group.Members[0]
	for _, m := range group.Members[1:] {
		if m.JoinedAt.Before(earliest.JoinedAt) {
			earliest = m
		}
	}
	return &earliest, nil
}

func (r *fakeGroupRepo) SetAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	group, ok := r.groups[groupID]
	if !ok {
		return apperror.ErrNotFound
	}
	group.AdminID = userID
	return nil
}

func (r *fakeGroupRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Group, error) {
	var out []entity.Group
	for _, group := range r.groups {
		for _, m := range group.Members {
			if m.UserID == userID {
				out = append(out, *group)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeGroupRepo) UnreadCounts(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64)
	for _, id := range groupIDs {
		group, ok := r.groups[id]
		if !ok {
			continue
		}
		for _, msg := range group.Messages {
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

type fakePresenceRepo struct{}

func (r *fakePresenceRepo) SetOnline(ctx context.Context, userID uuid.UUID, isOnline bool) error {
	return nil
}

func (r *fakePresenceRepo) OnlineStatus(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	status := make(map[uuid.UUID]bool)
	for _, id := range userIDs {
		status[id] = false
	}
	return status, nil
}

type fakeNotifications struct {
	created []notifDto.CreateNotificationInput
}

func (f *fakeNotifications) Create(ctx context.Context, input notifDto.CreateNotificationInput) (*entity.Notification, error) {
	f.created = append(f.created, input)
	return &entity.Notification{}, nil
}

func (f *fakeNotifications) List(ctx context.Context, userID uuid.UUID, category string) (*notifDto.NotificationFeed, error) {
	return &notifDto.NotificationFeed{}, nil
}

func (f *fakeNotifications) MarkClicked(ctx context.Context, id, actorID uuid.UUID) error {
	return nil
}

func (f *fakeNotifications) Dismiss(ctx context.Context, id, actorID uuid.UUID) error {
	return nil
}

func (f *fakeNotifications) ExecuteAction(ctx context.Context, id uuid.UUID, actionIndex int, actorID uuid.UUID) (*notifDto.ActionResult, error) {
	return nil, nil
}

func (f *fakeNotifications) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type groupFixture struct {
	svc           GroupService
	repo          *fakeGroupRepo
	notifications *fakeNotifications
	admin         *entity.User
	members       []*entity.User
}

func newGroupFixture(t *testing.T) *groupFixture {
	t.Helper()

	admin := &entity.User{ID: uuid.New(), Username: "admin", FullName: "Admin"}
	m1 := &entity.User{ID: uuid.New(), Username: "m1", FullName: "Member One"}
	m2 := &entity.User{ID: uuid.New(), Username: "m2", FullName: "Member Two"}

	users := map[uuid.UUID]*entity.User{admin.ID: admin, m1.ID: m1, m2.ID: m2}
	repo := newFakeGroupRepo(users)
	notifications := &fakeNotifications{}
	svc := NewGroupService(repo, &fakeUserRepo{users: users}, &fakePresenceRepo{}, notifications)

	return &groupFixture{
		svc:           svc,
		repo:          repo,
		notifications: notifications,
		admin:         admin,
		members:       []*entity.User{m1, m2},
	}
}

func (f *groupFixture) createGroup(t *testing.T) *dto.GroupResponse {
	t.Helper()

	group, err := f.svc.Create(context.Background(), f.admin.ID, dto.CreateGroupRequest{
		Name:      "weekend plans",
		MemberIDs: []string{f.members[0].ID.String(), f.members[1].ID.String()},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return group
}

func TestCreateGroup(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)

	if len(group.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(group.Members))
	}
	if group.AdminID != f.admin.ID {
		t.Fatalf("expected creator as admin, got %s", group.AdminID)
	}

	var adminFlagged int
	for _, m := range group.Members {
		if m.IsAdmin {
			adminFlagged++
			if m.ID != f.admin.ID {
				t.Fatalf("wrong member flagged admin: %s", m.ID)
			}
		}
	}
	if adminFlagged != 1 {
		t.Fatalf("expected exactly one admin flag, got %d", adminFlagged)
	}

	if len(group.Messages) != 1 || group.Messages[0].Type != entity.MessageTypeSystem {
		t.Fatalf("expected a system creation message, got %v", group.Messages)
	}

	if len(f.notifications.created) != 2 {
		t.Fatalf("expected 2 invite notifications, got %d", len(f.notifications.created))
	}
	for _, n := range f.notifications.created {
		if n.Category != entity.CategoryGroup {
			t.Fatalf("expected group category, got %q", n.Category)
		}
	}
}

func TestCreateGroupRequiresTwoInvitees(t *testing.T) {
	f := newGroupFixture(t)

	// The admin's own id and duplicates don't count toward the minimum.
	_, err := f.svc.Create(context.Background(), f.admin.ID, dto.CreateGroupRequest{
		Name: "too small",
		MemberIDs: []string{
			f.admin.ID.String(),
			f.members[0].ID.String(),
			f.members[0].ID.String(),
		},
	})
	if err == nil {
		t.Fatal("expected creation with a single distinct invitee to fail")
	}
}

func TestCreateGroupRejectsUnknownInvitee(t *testing.T) {
	f := newGroupFixture(t)

	_, err := f.svc.Create(context.Background(), f.admin.ID, dto.CreateGroupRequest{
		Name:      "ghosts",
		MemberIDs: []string{f.members[0].ID.String(), uuid.NewString()},
	})
	if err == nil {
		t.Fatal("expected creation with an unknown invitee to fail")
	}
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)

	if _, err := f.svc.SendMessage(context.Background(), group.ID, uuid.New(), "hi", ""); err == nil {
		t.Fatal("expected a non-member's send to be rejected")
	}
}

func TestSendMessage(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)

	updated, err := f.svc.SendMessage(context.Background(), group.ID, f.members[0].ID, "hello all", "")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	last := updated.Messages[len(updated.Messages)-1]
	if last.Content != "hello all" || last.SenderID != f.members[0].ID {
		t.Fatalf("unexpected last message: %+v", last)
	}
	if len(last.ReadBy) != 1 || last.ReadBy[0].UserID != f.members[0].ID {
		t.Fatalf("expected sender receipt only, got %v", last.ReadBy)
	}
}

func TestSendMessageType(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)
	ctx := context.Background()

	updated, err := f.svc.SendMessage(ctx, group.ID, f.members[0].ID, "typed", entity.MessageTypeText)
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	last := updated.Messages[len(updated.Messages)-1]
	if last.Type != entity.MessageTypeText {
		t.Fatalf("expected a text message, got %q", last.Type)
	}

	if _, err := f.svc.SendMessage(ctx, group.ID, f.members[0].ID, "nope", "sticker"); err == nil {
		t.Fatal("expected an unsupported message type to be rejected")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, group.ID, f.members[0].ID, "unread me", ""); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := f.svc.MarkRead(ctx, group.ID, f.members[1].ID); err != nil {
			t.Fatalf("MarkRead call %d failed: %v", i+1, err)
		}
	}

	stored := f.repo.groups[group.ID]
	last := stored.Messages[len(stored.Messages)-1]
	if got := len(last.ReadBy); got != 2 {
		t.Fatalf("expected 2 receipts after repeated MarkRead, got %d", got)
	}
}

func TestLeavePromotesEarliestMember(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)
	ctx := context.Background()

	before := len(f.notifications.created)

	if err := f.svc.Leave(ctx, group.ID, f.admin.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	stored := f.repo.groups[group.ID]
	if stored.AdminID != f.members[0].ID {
		t.Fatalf("expected earliest-joined member %s promoted, got %s", f.members[0].ID, stored.AdminID)
	}

	if len(f.notifications.created) != before+1 {
		t.Fatalf("expected one promotion notification, got %d new", len(f.notifications.created)-before)
	}
	promo := f.notifications.created[len(f.notifications.created)-1]
	if promo.Recipient != f.members[0].ID {
		t.Fatalf("promotion notification went to %s", promo.Recipient)
	}

	// Leave + promotion each leave a system message behind.
	var systemMessages int
	for _, msg := range stored.Messages {
		if msg.Type == entity.MessageTypeSystem {
			systemMessages++
		}
	}
	if systemMessages != 3 {
		t.Fatalf("expected 3 system messages (create, leave, promote), got %d", systemMessages)
	}
}

func TestLeaveByRegularMemberKeepsAdmin(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)

	if err := f.svc.Leave(context.Background(), group.ID, f.members[1].ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	stored := f.repo.groups[group.ID]
	if stored.AdminID != f.admin.ID {
		t.Fatalf("admin should be unchanged, got %s", stored.AdminID)
	}
	if len(stored.Members) != 2 {
		t.Fatalf("expected 2 remaining members, got %d", len(stored.Members))
	}
}

func TestLeaveRejectsNonMember(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)

	if err := f.svc.Leave(context.Background(), group.ID, uuid.New()); err == nil {
		t.Fatal("expected a non-member's leave to be rejected")
	}
}

func TestListReportsUnread(t *testing.T) {
	f := newGroupFixture(t)
	group := f.createGroup(t)
	ctx := context.Background()

	if _, err := f.svc.SendMessage(ctx, group.ID, f.members[0].ID, "ping", ""); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	items, err := f.svc.List(ctx, f.members[1].ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 group, got %d", len(items))
	}
	if items[0].MemberCount != 3 {
		t.Fatalf("expected member count 3, got %d", items[0].MemberCount)
	}
	// The system creation message and the ping are both unread.
	if items[0].UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", items[0].UnreadCount)
	}
}
