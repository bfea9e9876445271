package repository

import (
	"context"
	"errors"
	"time"

	"anoa.com/sociablechat/internal/entity"
	"anoa.com/sociablechat/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepository interface {
	// GetOrCreate returns the unique conversation for the unordered pair,
	// creating it if absent. Safe under concurrent calls from both sides.
	GetOrCreate(ctx context.Context, userA, userB uuid.UUID) (*entity.Conversation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error)
	AppendMessage(ctx context.Context, msg *entity.ConversationMessage, preview string) error
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Conversation, error)
	UnreadCounts(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB uuid.UUID) (*entity.Conversation, error) {
	pairKey := entity.PairKeyFor(userA, userB)

	// Insert-if-absent on the unique pair key; the racing loser's insert is a
	// no-op and both callers fetch the same row.
	conv := entity.Conversation{
		PairKey:       pairKey,
		UserAID:       userA,
		UserBID:       userB,
		LastMessageAt: time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(&conv).Error
	if err != nil {
		return nil, err
	}

	return r.findByPairKey(ctx, pairKey)
}

func (r *conversationRepository) findByPairKey(ctx context.Context, pairKey string) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", pairKey).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("conversation_messages.created_at asc")
		}).
		Preload("Messages.ReadBy").
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("conversation_messages.created_at asc")
		}).
		Preload("Messages.ReadBy").
		First(&conv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) AppendMessage(ctx context.Context, msg *entity.ConversationMessage, preview string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		// The sender has trivially seen their own message.
		receipt := entity.MessageRead{MessageID: msg.ID, UserID: msg.SenderID}
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}

		return tx.Model(&entity.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Updates(map[string]any{
				"last_message":    preview,
				"last_message_at": msg.CreatedAt,
			}).Error
	})
}

func (r *conversationRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	// Receipt per unseen message from the other participant; re-running the
	// statement inserts nothing new.
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO conversation_message_reads (message_id, user_id, read_at)
		SELECT m.id, ?, NOW()
		FROM conversation_messages m
		WHERE m.conversation_id = ? AND m.sender_id <> ?
		ON CONFLICT (message_id, user_id) DO NOTHING`,
		userID, conversationID, userID).Error
}

func (r *conversationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.Conversation, error) {
	var convs []entity.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("last_message_at desc").
		Find(&convs).Error
	return convs, err
}

func (r *conversationRepository) UnreadCounts(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	type row struct {
		ConversationID uuid.UUID
		Count          int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Raw(`
		SELECT m.conversation_id, COUNT(*) AS count
		FROM conversation_messages m
		WHERE m.conversation_id IN ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM conversation_message_reads r
			WHERE r.message_id = m.id AND r.user_id = ?
		  )
		GROUP BY m.conversation_id`,
		conversationIDs, userID, userID).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		counts[r.ConversationID] = r.Count
	}
	return counts, nil
}
