package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatSession_AppendAndMarkRead(t *testing.T) {
	req := require.New(t)
	s := NewChatSession(NewGuest(NewGuestID(), "Alice", "alice@x.com"))

	req.Equal(int64(1), s.NextSeq())

	s.Append(NewMessage(s.ID, s.NextSeq(), SenderUser, "Hello"))
	s.Append(NewMessage(s.ID, s.NextSeq(), SenderAdmin, "Hi, how can I help?"))
	s.Append(NewMessage(s.ID, s.NextSeq(), SenderUser, "Gold price?"))

	req.Equal(int64(4), s.NextSeq())
	req.Equal(2, s.UnreadCount)
	req.NotNil(s.LastMessageAt)

	// customer reads staff replies only
	req.Equal(1, s.MarkRead(SenderUser))
	req.Equal(2, s.UnreadCount)

	// staff reads customer messages
	req.Equal(2, s.MarkRead(SenderAdmin))
	req.Zero(s.UnreadCount)
	req.Zero(s.MarkRead(SenderAdmin))
}

func TestChatSession_SummaryAndHistoryAreCopies(t *testing.T) {
	req := require.New(t)
	s := NewChatSession(NewGuest(NewGuestID(), "", ""))
	s.Append(NewMessage(s.ID, 1, SenderUser, "a"))

	h := s.History()
	h[0].Content = "changed"

	req.Equal("a", s.Messages[0].Content)
	req.Nil(s.Summary().Messages)

	s.Close()
	req.False(s.IsActive())
}

func TestNewChatSession_KeepsGuestEmail(t *testing.T) {
	req := require.New(t)

	// Given: гость оставил контакт при входе
	guest := NewGuest(NewGuestID(), "Alice", "alice@x.com")

	// When
	s := NewChatSession(guest)

	// Then: контакт виден в сводке для агентов
	req.Equal("alice@x.com", s.ParticipantEmail)
	req.Equal("alice@x.com", s.Summary().ParticipantEmail)
}

func TestChatSession_TrimHistory(t *testing.T) {
	req := require.New(t)

	s := NewChatSession(NewGuest(NewGuestID(), "Alice", ""))
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		s.Append(NewMessage(s.ID, s.NextSeq(), SenderUser, text))
	}

	// When: лимит не задан
	s.TrimHistory(0)

	// Then
	req.Len(s.Messages, 5)

	// When: лимит меньше истории
	s.TrimHistory(3)

	// Then: остаются последние сообщения, нумерация продолжается
	req.Len(s.Messages, 3)
	req.Equal("3", s.Messages[0].Content)
	req.Equal("5", s.Messages[2].Content)
	req.Equal(int64(6), s.NextSeq())
	req.Equal(5, s.UnreadCount)
}
