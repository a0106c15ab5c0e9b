package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/domain"
)

func offer() *webrtc.SessionDescription {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
}

func answer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
}

func candidate(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func ringingCall(t *testing.T) *CallState {
	t.Helper()

	c := NewCallState(uuid.New(), Party{ParticipantID: "u1", ConnectionID: "c1"}, CallTypeVideo)
	require.NoError(t, c.Ring(offer()))

	return c
}

func TestCallState_HappyPath(t *testing.T) {
	req := require.New(t)
	c := ringingCall(t)
	req.Equal(CallRinging, c.Status)
	req.NotNil(c.PendingOffer)

	drained, err := c.Accept(Party{ParticipantID: "u2", ConnectionID: "c2"})
	req.NoError(err)
	req.Empty(drained)
	req.Equal(CallConnecting, c.Status)
	req.Nil(c.PendingOffer)

	_, err = c.ApplyAnswer(answer())
	req.NoError(err)

	now := time.Now()
	req.NoError(c.MarkConnected(now))
	req.Equal(CallConnected, c.Status)

	req.True(c.End(now.Add(3*time.Second), EndReasonHangup))
	req.Equal(CallEnded, c.Status)
	req.Equal(3*time.Second, c.Duration(time.Now()))
}

func TestCallState_AcceptOnlyFromRinging(t *testing.T) {
	req := require.New(t)
	c := ringingCall(t)

	_, err := c.Accept(Party{ParticipantID: "u2"})
	req.NoError(err)

	// second accept is a protocol violation and leaves the call untouched
	_, err = c.Accept(Party{ParticipantID: "u3"})
	req.ErrorIs(err, domain.ErrInvalidCallState)
	req.Equal("u2", c.Callee.ParticipantID)
	req.Equal(CallConnecting, c.Status)
}

func TestCallState_CallerCannotAccept(t *testing.T) {
	c := ringingCall(t)

	_, err := c.Accept(Party{ParticipantID: "u1"})
	require.ErrorIs(t, err, domain.ErrInvalidCallState)
	require.Equal(t, CallRinging, c.Status)
}

func TestCallState_CandidatesBufferedPerDirection(t *testing.T) {
	req := require.New(t)
	c := ringingCall(t)

	// Given three caller candidates before the callee applied the offer
	for _, s := range []string{"a", "b", "c"} {
		forward, err := c.RouteCandidate(true, candidate(s))
		req.NoError(err)
		req.False(forward)
	}
	req.Equal(3, c.BufferedCandidates())

	// When the callee accepts
	drained, err := c.Accept(Party{ParticipantID: "u2"})
	req.NoError(err)

	// Then all three are released in arrival order
	req.Equal([]webrtc.ICECandidateInit{candidate("a"), candidate("b"), candidate("c")}, drained)

	// And later caller candidates go straight through
	forward, err := c.RouteCandidate(true, candidate("d"))
	req.NoError(err)
	req.True(forward)

	// Callee candidates wait for the answer on the caller side
	forward, err = c.RouteCandidate(false, candidate("x"))
	req.NoError(err)
	req.False(forward)

	drained, err = c.ApplyAnswer(answer())
	req.NoError(err)
	req.Equal([]webrtc.ICECandidateInit{candidate("x")}, drained)

	forward, err = c.RouteCandidate(false, candidate("y"))
	req.NoError(err)
	req.True(forward)
	req.Zero(c.BufferedCandidates())
}

func TestCallState_AnswerTwiceRejected(t *testing.T) {
	req := require.New(t)
	c := ringingCall(t)

	_, err := c.Accept(Party{ParticipantID: "u2"})
	req.NoError(err)
	_, err = c.ApplyAnswer(answer())
	req.NoError(err)

	_, err = c.ApplyAnswer(answer())
	req.ErrorIs(err, domain.ErrInvalidCallState)
}

func TestCallState_EndIsIdempotentAndDiscardsBuffers(t *testing.T) {
	req := require.New(t)
	c := ringingCall(t)

	_, err := c.RouteCandidate(true, candidate("a"))
	req.NoError(err)

	req.True(c.End(time.Now(), EndReasonHangup))
	req.False(c.End(time.Now(), EndReasonHangup))
	req.Equal(EndReasonHangup, c.EndReason)
	req.Zero(c.BufferedCandidates())
	req.Nil(c.PendingOffer)

	_, err = c.RouteCandidate(true, candidate("b"))
	req.ErrorIs(err, domain.ErrInvalidCallState)
}

func TestCallState_MarkConnectedRequiresConnecting(t *testing.T) {
	c := ringingCall(t)

	require.ErrorIs(t, c.MarkConnected(time.Now()), domain.ErrInvalidCallState)
	require.Zero(t, c.Duration(time.Now()))
}

func TestCallState_OfferAfterInvite(t *testing.T) {
	req := require.New(t)
	c := NewCallState(uuid.New(), Party{ParticipantID: "u1"}, CallTypeAudio)
	req.NoError(c.Ring(nil))
	req.Nil(c.PendingOffer)

	req.NoError(c.SetOffer(*offer()))
	req.NotNil(c.PendingOffer)

	// only one pending offer per call
	req.ErrorIs(c.SetOffer(*offer()), domain.ErrInvalidCallState)
}

func TestValidateDescription(t *testing.T) {
	req := require.New(t)

	req.NoError(ValidateDescription(*offer(), webrtc.SDPTypeOffer))
	req.ErrorIs(ValidateDescription(answer(), webrtc.SDPTypeOffer), domain.ErrBadRequest)
	req.ErrorIs(ValidateDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer}, webrtc.SDPTypeOffer), domain.ErrBadRequest)
}

func TestTransportState(t *testing.T) {
	req := require.New(t)

	req.True(TransportState("connected").Valid())
	req.True(TransportState("failed").Valid())
	req.True(TransportState("disconnected").Valid())
	req.False(TransportState("checking").Valid())
}
