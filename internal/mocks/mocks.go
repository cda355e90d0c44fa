package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"support-service/internal/identity"
	"support-service/internal/models"
	"support-service/internal/presence"
	"support-service/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, params repositories.CreateMessageParams) (models.Message, error) {
	args := m.Called(ctx, params)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, limit int) ([]models.Message, error) {
	args := m.Called(ctx, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) ListTicketMessages(ctx context.Context, ticketID int64) ([]models.Message, error) {
	args := m.Called(ctx, ticketID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ClearRoom(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID int64, participantToken string, kind models.ReactionKind) (bool, models.ReactionCounts, error) {
	args := m.Called(ctx, messageID, participantToken, kind)
	var counts models.ReactionCounts
	if val := args.Get(1); val != nil {
		counts = val.(models.ReactionCounts)
	}
	return args.Bool(0), counts, args.Error(2)
}

type TicketRepositoryMock struct {
	mock.Mock
}

func (m *TicketRepositoryMock) CreateOrGetOpen(ctx context.Context, ownerToken string, category string) (models.Ticket, bool, error) {
	args := m.Called(ctx, ownerToken, category)
	var ticket models.Ticket
	if val := args.Get(0); val != nil {
		ticket = val.(models.Ticket)
	}
	return ticket, args.Bool(1), args.Error(2)
}

func (m *TicketRepositoryMock) Close(ctx context.Context, ticketID int64) error {
	args := m.Called(ctx, ticketID)
	return args.Error(0)
}

func (m *TicketRepositoryMock) Get(ctx context.Context, ticketID int64) (models.Ticket, error) {
	args := m.Called(ctx, ticketID)
	var ticket models.Ticket
	if val := args.Get(0); val != nil {
		ticket = val.(models.Ticket)
	}
	return ticket, args.Error(1)
}

func (m *TicketRepositoryMock) ListForOwner(ctx context.Context, ownerToken string) ([]models.Ticket, error) {
	args := m.Called(ctx, ownerToken)
	var tickets []models.Ticket
	if val := args.Get(0); val != nil {
		tickets = val.([]models.Ticket)
	}
	return tickets, args.Error(1)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) Heartbeat(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *TrackerMock) EstimateOnline(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) Lookup(ctx context.Context, token string) (models.Identity, error) {
	args := m.Called(ctx, token)
	var ident models.Identity
	if val := args.Get(0); val != nil {
		ident = val.(models.Identity)
	}
	return ident, args.Error(1)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionRepository = (*ReactionRepositoryMock)(nil)
var _ repositories.TicketRepository = (*TicketRepositoryMock)(nil)
var _ presence.Tracker = (*TrackerMock)(nil)
var _ identity.Provider = (*ProviderMock)(nil)
