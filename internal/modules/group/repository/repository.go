package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupRepository interface {
	Create(ctx context.Context, group *entity.Group, memberIDs []uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Group, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	AppendMessage(ctx context.Context, msg *entity.GroupMessage) error
	MarkRead(ctx context.Context, groupID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error
	EarliestMember(ctx context.Context, groupID uuid.UUID) (*entity.GroupMember, error)
	SetAdmin(ctx context.Context, groupID, userID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Group, error)
	UnreadCounts(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *entity.Group, memberIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		// The admin joins first so they stay earliest in succession order.
		now := time.Now()
		members := make([]entity.GroupMember, 0, len(memberIDs)+1)
		members = append(members, entity.GroupMember{
			GroupID:  group.ID,
			UserID:   group.AdminID,
			JoinedAt: now,
		})
		for i, id := range memberIDs {
			members = append(members, entity.GroupMember{
				GroupID:  group.ID,
				UserID:   id,
				JoinedAt: now.Add(time.Duration(i+1) * time.Millisecond),
			})
		}

		return tx.Create(&members).Error
	})
}

func (r *groupRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Group, error) {
	var group entity.Group
	err := r.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("group_members.joined_at asc")
		}).
		Preload("Members.User").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("group_messages.created_at asc")
		}).
		Preload("Messages.ReadBy").
		First(&group, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *groupRepository) AppendMessage(ctx context.Context, msg *entity.GroupMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		// System messages have no author to receipt.
		if msg.Type != entity.MessageTypeSystem {
			receipt := entity.GroupMessageRead{MessageID: msg.ID, UserID: msg.SenderID}
			if err := tx.Create(&receipt).Error; err != nil {
				return err
			}
		}

		return tx.Model(&entity.Group{}).
			Where("id = ?", msg.GroupID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *groupRepository) MarkRead(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO group_message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, NOW()
		FROM group_messages m
		WHERE m.group_id = ?
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		userID, groupID).Error
}

func (r *groupRepository) RemoveMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&entity.GroupMember{}).Error
}

func (r *groupRepository) EarliestMember(ctx context.Context, groupID uuid.UUID) (*entity.GroupMember, error) {
	var member entity.GroupMember
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("joined_at asc").
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *groupRepository) SetAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entity.Group{}).
		Where("id = ?", groupID).
		Update("admin_id", userID).Error
}

func (r *groupRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Group, error) {
	var groups []entity.Group
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON group_members.group_id = groups.id").
		Where("group_members.user_id = ?", userID).
		Preload("Members").
		Order("groups.last_message_at desc").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) UnreadCounts(ctx context.Context, userID uuid.UUID, groupIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(groupIDs))
	if len(groupIDs) == 0 {
		return counts, nil
	}

	type row struct {
		GroupID uuid.UUID
		Count   int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.group_id, COUNT(*) AS count
		FROM group_messages m
		WHERE m.group_id IN ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM group_message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		  )
		GROUP BY m.group_id`,
		groupIDs, userID, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.GroupID] = r.Count
	}
	return counts, nil
}
