package webrtc

import (
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/webrtc-task/internal/task"
	"github.com/1ureka/webrtc-task/internal/transport"
)

// TestLoopbackSignalingChannel connects two in-process peers over host
// candidates and opens the negotiated signaling channel on both.
func TestLoopbackSignalingChannel(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real peer connections")
	}

	offerer, err := NewPeer(nil)
	require.NoError(t, err)
	defer offerer.Close()
	answerer, err := NewPeer(nil)
	require.NoError(t, err)
	defer answerer.Close()

	link := transport.NewLink(3, task.ProtocolV1)
	channelA, err := OpenSignalingChannel(offerer.PeerConnection(), link)
	require.NoError(t, err)
	channelB, err := OpenSignalingChannel(answerer.PeerConnection(), link)
	require.NoError(t, err)

	// Gather completely instead of trickling so no candidate races the
	// remote description.
	gatherA := webrtc.GatheringCompletePromise(offerer.PeerConnection())
	_, err = offerer.CreateOffer()
	require.NoError(t, err)
	<-gatherA
	offer, err := OfferFromDescription(*offerer.PeerConnection().LocalDescription())
	require.NoError(t, err)

	gatherB := webrtc.GatheringCompletePromise(answerer.PeerConnection())
	_, err = answerer.AcceptOffer(offer)
	require.NoError(t, err)
	<-gatherB
	answer, err := AnswerFromDescription(*answerer.PeerConnection().LocalDescription())
	require.NoError(t, err)
	require.NoError(t, offerer.AcceptAnswer(answer))

	for _, ch := range []*SignalingChannel{channelA, channelB} {
		select {
		case <-ch.Open():
		case <-time.After(10 * time.Second):
			t.Fatal("signaling channel did not open")
		}
		assert.Greater(t, ch.MaxMessageSize(), uint64(9))
	}

	assert.Equal(t, "saltyrtc-signaling", channelA.raw.Label())
	assert.Equal(t, task.ProtocolV1, channelA.raw.Protocol())
	require.NotNil(t, channelA.raw.ID())
	assert.Equal(t, uint16(3), *channelA.raw.ID())
}
