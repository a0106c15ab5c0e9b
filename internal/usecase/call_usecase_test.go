package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/GoldLink/internal/domain"
	"github.com/qrave1/GoldLink/internal/domain/events"
	"github.com/qrave1/GoldLink/internal/domain/models"
	"github.com/qrave1/GoldLink/internal/domain/runtime"
)

type callFixture struct {
	env       *testEnv
	sessionID uuid.UUID

	caller     *fakeSocket
	callerConn runtime.Connection
	callee     *fakeSocket
	calleeConn runtime.Connection
}

// newCallFixture: гость звонит, сотрудник поддержки подключён к его сессии
func newCallFixture(t *testing.T, ringTimeout time.Duration) *callFixture {
	t.Helper()

	env := newEnv(t, ringTimeout)
	caller, callerConn, sessionID := env.joinGuest(t, Credentials{GuestName: "U1"})
	callee, calleeConn := env.joinAdmin(t, sessionID)

	return &callFixture{
		env:        env,
		sessionID:  sessionID,
		caller:     caller,
		callerConn: callerConn,
		callee:     callee,
		calleeConn: calleeConn,
	}
}

func testOffer() *webrtc.SessionDescription {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}
}

func testAnswer() webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}
}

func callStatus(t *testing.T, socket *fakeSocket, eventType string) []events.CallStatusEvent {
	t.Helper()

	return decodeAll[events.CallStatusEvent](t, socket.ofType(eventType))
}

func TestCallUsecase_InviteRingsOtherParticipants(t *testing.T) {
	req := require.New(t)
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(context.Background(), f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)

	incoming := f.callee.ofType(events.TypeCallIncoming)
	req.Len(incoming, 1)

	ev := decode[events.CallIncomingEvent](t, incoming[0])
	req.Equal(callID, ev.CallID)
	req.Equal(f.callerConn.Participant.ID, ev.CallerID)
	req.Equal(models.CallTypeVideo, ev.CallType)

	req.Len(f.callee.ofType(events.TypeWebrtcOffer), 1)

	// the caller does not ring itself
	req.Empty(f.caller.ofType(events.TypeCallIncoming))

	st, ok := f.env.calls.Snapshot(callID)
	req.True(ok)
	req.Equal(models.CallRinging, st.Status)
}

func TestCallUsecase_OneActiveCallPerSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	_, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	req.NoError(err)

	_, err = f.env.calls.Invite(ctx, f.sessionID, f.calleeConn, models.CallTypeAudio, nil)
	req.ErrorIs(err, domain.ErrCallAlreadyActive)
}

func TestCallUsecase_ScenarioEndWhileRinging(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	// Given U1 invites U2 to a video call and U2 never answers
	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)

	req.NoError(f.env.calls.RelayIceCandidate(ctx, callID, f.callerConn, webrtc.ICECandidateInit{Candidate: "candidate:1"}))

	// When U1 hangs up
	req.NoError(f.env.calls.End(ctx, callID, f.callerConn.Participant.ID, models.EndReasonHangup))

	// Then both parties are notified once
	for _, socket := range []*fakeSocket{f.caller, f.callee} {
		ended := callStatus(t, socket, events.TypeCallEnded)
		req.Len(ended, 1)
		req.Equal(models.EndReasonHangup, ended[0].Reason)
	}

	// And the call and its buffered candidates are gone
	_, ok := f.env.calls.Snapshot(callID)
	req.False(ok)
	req.Empty(f.callee.ofType(events.TypeWebrtcIceCandidate))

	_, ok = f.env.calls.ActiveCall(f.sessionID)
	req.False(ok)

	err = f.env.calls.RelayIceCandidate(ctx, callID, f.callerConn, webrtc.ICECandidateInit{Candidate: "candidate:2"})
	req.ErrorIs(err, domain.ErrCallNotFound)

	// And ending again is a no-op
	req.NoError(f.env.calls.End(ctx, callID, f.callerConn.Participant.ID, models.EndReasonHangup))
	req.Len(f.callee.ofType(events.TypeCallEnded), 1)
}

func TestCallUsecase_ScenarioCandidatesBeforeAnswer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	// Given U1 invites U2 to an audio call
	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, testOffer())
	req.NoError(err)

	// And three candidates arrive before U2 answers
	sent := []string{"candidate:a", "candidate:b", "candidate:c"}
	for _, c := range sent {
		req.NoError(f.env.calls.RelayIceCandidate(ctx, callID, f.callerConn, webrtc.ICECandidateInit{Candidate: c}))
	}
	req.Empty(f.callee.ofType(events.TypeWebrtcIceCandidate))

	// When U2 answers
	req.NoError(f.env.calls.Answer(ctx, callID, f.calleeConn, testAnswer()))

	// Then all three reach U2 once and in order
	got := decodeAll[events.IceCandidateEvent](t, f.callee.ofType(events.TypeWebrtcIceCandidate))
	req.Len(got, 3)
	for i, ev := range got {
		req.Equal(sent[i], ev.Payload.Candidate)
	}

	// And U1 gets the answer
	answers := decodeAll[events.SDPEvent](t, f.caller.ofType(events.TypeWebrtcAnswer))
	req.Len(answers, 1)
	req.Equal(webrtc.SDPTypeAnswer, answers[0].Payload.Type)

	// And later candidates flow directly in both directions
	req.NoError(f.env.calls.RelayIceCandidate(ctx, callID, f.callerConn, webrtc.ICECandidateInit{Candidate: "candidate:d"}))
	req.NoError(f.env.calls.RelayIceCandidate(ctx, callID, f.calleeConn, webrtc.ICECandidateInit{Candidate: "candidate:x"}))

	req.Len(f.callee.ofType(events.TypeWebrtcIceCandidate), 4)
	req.Len(f.caller.ofType(events.TypeWebrtcIceCandidate), 1)

	st, ok := f.env.calls.Snapshot(callID)
	req.True(ok)
	req.Equal(models.CallConnecting, st.Status)
	req.Zero(st.BufferedCandidates())
}

func TestCallUsecase_CalleeCandidatesWaitForAnswer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)

	// Given U2 accepts without an answer yet
	req.NoError(f.env.calls.Accept(ctx, callID, f.calleeConn, nil))
	req.Len(callStatus(t, f.caller, events.TypeCallAccepted), 1)

	// When U2 gathers candidates before its answer is applied
	req.NoError(f.env.calls.RelayIceCandidate(ctx, callID, f.calleeConn, webrtc.ICECandidateInit{Candidate: "candidate:x"}))
	req.Empty(f.caller.ofType(events.TypeWebrtcIceCandidate))

	// Then they are released right after the answer
	req.NoError(f.env.calls.Answer(ctx, callID, f.calleeConn, testAnswer()))

	got := decodeAll[events.IceCandidateEvent](t, f.caller.ofType(events.TypeWebrtcIceCandidate))
	req.Len(got, 1)
	req.Equal("candidate:x", got[0].Payload.Candidate)
}

func TestCallUsecase_ScenarioDisconnectEndsCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)
	req.NoError(f.env.calls.Accept(ctx, callID, f.calleeConn, nil))

	// When U1's socket drops mid-call
	f.env.conns.OnDisconnect(ctx, f.caller.ID())

	// Then U2 receives call:ended
	ended := callStatus(t, f.callee, events.TypeCallEnded)
	req.Len(ended, 1)
	req.Equal(models.EndReasonDisconnected, ended[0].Reason)
	req.Equal(f.callerConn.Participant.ID, ended[0].By)

	_, ok := f.env.calls.ActiveCall(f.sessionID)
	req.False(ok)
}

func TestCallUsecase_RingTimeout(t *testing.T) {
	req := require.New(t)
	f := newCallFixture(t, 50*time.Millisecond)

	callID, err := f.env.calls.Invite(context.Background(), f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	req.NoError(err)

	req.Eventually(func() bool {
		return len(f.caller.ofType(events.TypeCallEnded)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	ended := callStatus(t, f.caller, events.TypeCallEnded)
	req.Equal(models.EndReasonNoAnswer, ended[0].Reason)
	req.Equal(callID, ended[0].CallID)

	_, ok := f.env.calls.Snapshot(callID)
	req.False(ok)
}

func TestCallUsecase_AcceptStopsRingTimer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, 50*time.Millisecond)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, testOffer())
	req.NoError(err)
	req.NoError(f.env.calls.Answer(ctx, callID, f.calleeConn, testAnswer()))

	time.Sleep(150 * time.Millisecond)

	req.Empty(f.caller.ofType(events.TypeCallEnded))

	st, ok := f.env.calls.Snapshot(callID)
	req.True(ok)
	req.Equal(models.CallConnecting, st.Status)
}

func TestCallUsecase_Reject(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	req.NoError(err)

	// the caller cannot reject its own call
	req.ErrorIs(f.env.calls.Reject(ctx, callID, f.callerConn), domain.ErrInvalidCallState)

	req.NoError(f.env.calls.Reject(ctx, callID, f.calleeConn))

	rejected := callStatus(t, f.caller, events.TypeCallRejected)
	req.Len(rejected, 1)
	req.Equal(models.EndReasonRejected, rejected[0].Reason)

	// reject after the call is gone
	req.ErrorIs(f.env.calls.Reject(ctx, callID, f.calleeConn), domain.ErrCallNotFound)
}

func TestCallUsecase_CallerCannotAcceptOwnCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	req.NoError(err)

	// another tab of the caller
	tab := connOf(newFakeSocket(), f.callerConn.Participant)

	req.ErrorIs(f.env.calls.Accept(ctx, callID, tab, nil), domain.ErrInvalidCallState)
}

func TestCallUsecase_TransportFailureKeepsSession(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)
	req.NoError(f.env.calls.Answer(ctx, callID, f.calleeConn, testAnswer()))
	req.NoError(f.env.calls.ReportTransportState(ctx, callID, f.callerConn, models.TransportConnected))

	st, ok := f.env.calls.Snapshot(callID)
	req.True(ok)
	req.Equal(models.CallConnected, st.Status)

	// When the media transport fails
	req.NoError(f.env.calls.ReportTransportState(ctx, callID, f.calleeConn, models.TransportFailed))

	// Then the call ends with a recoverable error for both parties
	for _, socket := range []*fakeSocket{f.caller, f.callee} {
		ended := callStatus(t, socket, events.TypeCallEnded)
		req.Len(ended, 1)
		req.Equal(models.EndReasonTransportFailure, ended[0].Reason)

		errs := decodeAll[events.ErrorEvent](t, socket.ofType(events.TypeError))
		req.Len(errs, 1)
		req.Equal("transport_failure", errs[0].Code)
		req.True(errs[0].Recoverable)
	}

	// And the chat keeps working
	_, err = f.env.relay.Post(ctx, f.sessionID, models.SenderUser, "still here")
	req.NoError(err)
}

func TestCallUsecase_Renegotiation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)
	req.NoError(f.env.calls.Answer(ctx, callID, f.calleeConn, testAnswer()))

	f.caller.reset()
	f.callee.reset()

	// When the callee renegotiates
	req.NoError(f.env.calls.Offer(ctx, callID, f.calleeConn, *testOffer()))
	req.NoError(f.env.calls.Answer(ctx, callID, f.callerConn, testAnswer()))

	// Then offer and answer reach the opposite party only
	req.Len(f.caller.ofType(events.TypeWebrtcOffer), 1)
	req.Len(f.callee.ofType(events.TypeWebrtcAnswer), 1)
	req.Empty(f.callee.ofType(events.TypeWebrtcOffer))
}

func TestCallUsecase_SetMedia(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)
	req.NoError(f.env.calls.Accept(ctx, callID, f.calleeConn, nil))

	req.NoError(f.env.calls.SetMedia(ctx, callID, f.callerConn, true, false))

	media := decodeAll[events.CallMediaEvent](t, f.callee.ofType(events.TypeCallMedia))
	req.Len(media, 1)
	req.True(media[0].IsMuted)
	req.Equal(f.callerConn.Participant.ID, media[0].ParticipantID)
}

func TestCallUsecase_ReplayForLateJoiner(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeVideo, testOffer())
	req.NoError(err)

	// When a second agent attaches while the call rings
	late, _ := f.env.joinAdmin(t, f.sessionID)

	// Then it sees the incoming call and its offer
	incoming := decodeAll[events.CallIncomingEvent](t, late.ofType(events.TypeCallIncoming))
	req.Len(incoming, 1)
	req.Equal(callID, incoming[0].CallID)
	req.Len(late.ofType(events.TypeWebrtcOffer), 1)
}

func TestCallUsecase_CloseSessionEndsCall(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(ctx, f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	req.NoError(err)

	req.NoError(f.env.conns.CloseSession(ctx, f.sessionID))

	ended := callStatus(t, f.callee, events.TypeCallEnded)
	req.Len(ended, 1)
	req.Equal(models.EndReasonSessionClosed, ended[0].Reason)
	req.Len(f.callee.ofType(events.TypeSessionClosed), 1)

	_, ok := f.env.calls.Snapshot(callID)
	req.False(ok)
}

func TestCallUsecase_EmptyCandidateRejected(t *testing.T) {
	f := newCallFixture(t, time.Minute)

	callID, err := f.env.calls.Invite(context.Background(), f.sessionID, f.callerConn, models.CallTypeAudio, nil)
	require.NoError(t, err)

	err = f.env.calls.RelayIceCandidate(context.Background(), callID, f.callerConn, webrtc.ICECandidateInit{})
	require.ErrorIs(t, err, domain.ErrBadRequest)
}
