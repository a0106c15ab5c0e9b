package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/domain/events"
)

func TestPresenceUsecase_OnlineOnlyOnFirstConnection(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newEnv(t, time.Minute)

	_, _, sessionID := env.joinGuest(t, Credentials{GuestName: "Alice"})
	agent, agentConn := env.joinAdmin(t, sessionID)

	// Given a customer with two tabs
	_, bob, _ := env.joinGuest(t, Credentials{GuestName: "Bob"})
	tab2, _, _ := env.joinGuest(t, Credentials{GuestID: bob.Participant.ID})

	// Then the watching agent saw one online transition
	online := decodeAll[events.PresenceEvent](t, agent.ofType(events.TypeUserOnline))
	req.Len(online, 1)
	req.Equal(bob.Participant.ID, online[0].UserID)

	// When one tab closes, Bob stays online
	env.conns.OnDisconnect(ctx, bob.ID())
	req.True(env.presence.IsOnline(bob.Participant.ID))
	req.Empty(agent.ofType(events.TypeUserOffline))

	// When the last tab closes, Bob goes offline
	env.conns.OnDisconnect(ctx, tab2.ID())
	req.False(env.presence.IsOnline(bob.Participant.ID))

	offline := decodeAll[events.PresenceEvent](t, agent.ofType(events.TypeUserOffline))
	req.Len(offline, 1)
	req.Equal(bob.Participant.ID, offline[0].UserID)

	// the agent itself is listed online
	req.True(env.presence.IsOnline(agentConn.Participant.ID))
}

func TestPresenceUsecase_CustomerSeesAgent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newEnv(t, time.Minute)

	alice, _, sessionID := env.joinGuest(t, Credentials{GuestName: "Alice"})
	agent, agentConn := env.joinAdmin(t, sessionID)

	// When the agent leaves
	env.conns.OnDisconnect(ctx, agent.ID())

	// Then Alice, who shares a session with the agent, sees it go offline
	offline := decodeAll[events.PresenceEvent](t, alice.ofType(events.TypeUserOffline))
	req.Len(offline, 1)
	req.Equal(agentConn.Participant.ID, offline[0].UserID)
}

func TestPresenceUsecase_SessionListShowsOnline(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	env := newEnv(t, time.Minute)

	alice, _, sessionID := env.joinGuest(t, Credentials{GuestName: "Alice"})

	s, err := env.sessions.GetSession(ctx, sessionID)
	req.NoError(err)
	req.True(s.IsOnline)

	// keep the session in memory after Alice leaves
	env.joinAdmin(t, sessionID)
	env.conns.OnDisconnect(ctx, alice.ID())

	s, err = env.sessions.GetSession(ctx, sessionID)
	req.NoError(err)
	req.False(s.IsOnline)
}
