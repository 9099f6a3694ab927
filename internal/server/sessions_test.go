package server

import (
	"testing"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/protocol"
)

func newSessions(t *testing.T) *SessionManager {
	return NewSessionManager(quartz.NewMock(t), testLogger())
}

func TestRegisterSupersedesOldSocket(t *testing.T) {
	m := newSessions(t)
	old := newFrameSink()
	m.Register("p1", "Ann", old)
	m.SetGameID("p1", "g-1")

	fresh := newFrameSink()
	m.Register("p1", "Ann", fresh)

	require.True(t, old.isClosed(), "superseded socket is closed")
	require.False(t, fresh.isClosed())

	s, ok := m.Get("p1")
	require.True(t, ok)
	require.Equal(t, "g-1", s.GameID, "room binding survives supersession")

	m.Send("p1", protocol.ActionGameList, protocol.GameListPayload{})
	require.Empty(t, old.envelopes())
	require.Len(t, fresh.envelopes(), 1)
}

func TestDisconnectSupersededSocketKeepsSession(t *testing.T) {
	m := newSessions(t)
	old := newFrameSink()
	m.Register("p1", "Ann", old)
	fresh := newFrameSink()
	m.Register("p1", "Ann", fresh)

	// The old socket's read pump exits after supersession; its
	// disconnect must not tear down the fresh binding.
	_, ok := m.Disconnect(old)
	require.False(t, ok)
	require.True(t, m.Connected("p1"))

	id, ok := m.Disconnect(fresh)
	require.True(t, ok)
	require.Equal(t, "p1", id)
	require.False(t, m.Connected("p1"))
}

func TestSendWithoutSinkDropsSilently(t *testing.T) {
	m := newSessions(t)
	m.Send("ghost", protocol.ActionGameList, protocol.GameListPayload{})

	sink := newFrameSink()
	m.Register("p1", "Ann", sink)
	_, ok := m.Disconnect(sink)
	require.True(t, ok)

	m.Send("p1", protocol.ActionGameList, protocol.GameListPayload{})
	require.Empty(t, sink.envelopes())
}

func TestPlayerForResolvesSink(t *testing.T) {
	m := newSessions(t)
	sink := newFrameSink()
	m.Register("p1", "Ann", sink)

	id, ok := m.PlayerFor(sink)
	require.True(t, ok)
	require.Equal(t, "p1", id)

	_, ok = m.PlayerFor(newFrameSink())
	require.False(t, ok)
}
