package infrastructure

import (
	"context"
	"time"

	"kzcasino/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, subject, msgID string, data []byte) error {
	args := m.Called(ctx, subject, msgID, data)
	return args.Error(0)
}

type MockChannelMessenger struct {
	mock.Mock
}

func (m *MockChannelMessenger) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	args := m.Called(channelID, embed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

type MockDuelSweeper struct {
	mock.Mock
}

func (m *MockDuelSweeper) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type MockOverdueFlagger struct {
	mock.Mock
}

func (m *MockOverdueFlagger) FlagOverdue(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Loan), args.Error(1)
}
