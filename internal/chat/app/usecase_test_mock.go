package app

import (
	"context"

	"live_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockSequenceRepository Mock SequenceRepository
type MockSequenceRepository struct {
	mock.Mock
}

// Next moke issue next sequence id
func (m *MockSequenceRepository) Next(ctx context.Context, shopID string) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// EnsureIndexes moke ensure indexes
func (m *MockMessageRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Insert moke insert msg
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FetchSince moke incremental fetch
func (m *MockMessageRepository) FetchSince(ctx context.Context, shopID, conversationID string, afterSeq, limit int64) (*domain.MessageBatch, error) {
	args := m.Called(ctx, shopID, conversationID, afterSeq, limit)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MessageBatch), args.Error(1)
	}
	return nil, args.Error(1)
}

// MaxSequence moke high-water mark
func (m *MockMessageRepository) MaxSequence(ctx context.Context, shopID string) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

// MockConversationRepository Mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// Touch moke conversation upsert
func (m *MockConversationRepository) Touch(ctx context.Context, msg *domain.Message, incrUnread bool) error {
	args := m.Called(ctx, msg, incrUnread)
	return args.Error(0)
}

// ResetUnread moke reset unread returning prior count
func (m *MockConversationRepository) ResetUnread(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

// Find moke find conversation
func (m *MockConversationRepository) Find(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByShop moke list shop conversations
func (m *MockConversationRepository) ListByShop(ctx context.Context, shopID string, limit int64) ([]domain.Conversation, error) {
	args := m.Called(ctx, shopID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUnreadIndexRepository Mock UnreadIndexRepository
type MockUnreadIndexRepository struct {
	mock.Mock
}

// IncrShopUnread moke shop unread delta
func (m *MockUnreadIndexRepository) IncrShopUnread(ctx context.Context, shopID string, delta int64) (int64, error) {
	args := m.Called(ctx, shopID, delta)
	return args.Get(0).(int64), args.Error(1)
}

// GetShopUnread moke shop unread read
func (m *MockUnreadIndexRepository) GetShopUnread(ctx context.Context, shopID string) (int64, error) {
	args := m.Called(ctx, shopID)
	return args.Get(0).(int64), args.Error(1)
}

// RebuildFrom moke index rebuild
func (m *MockUnreadIndexRepository) RebuildFrom(ctx context.Context, shopID string, total int64) error {
	args := m.Called(ctx, shopID, total)
	return args.Error(0)
}

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish moke publisher
func (m *MockPubSub) Publish(channel string, message interface{}) error {
	args := m.Called(channel, message)
	return args.Error(0)
}

// Subscribe moke subscriber
func (m *MockPubSub) Subscribe(ctx context.Context, channel string, handler func(msg domain.Message)) error {
	args := m.Called(channel, handler)
	return args.Error(0)
}
