package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/donorflow/donorflow/pkg/eventbus"
	"github.com/donorflow/donorflow/pkg/events"
)

// MockEventBus is a mock implementation of eventbus.EventBus.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, topic, key string, event events.Event) error {
	args := m.Called(ctx, topic, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) {
	m.Called(eventType, handler)
}

func (m *MockEventBus) Subscribe(ctx context.Context, topic string) error {
	args := m.Called(ctx, topic)

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
