package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateOnlyMovesForward(t *testing.T) {
	s := &Session{logger: quietLogger().WithField("test", t.Name())}
	assert.Equal(t, StateConnecting, s.State())

	assert.True(t, s.advance(StateJoined))
	assert.False(t, s.advance(StateAuthenticated), "no going back")
	assert.Equal(t, StateJoined, s.State())

	assert.True(t, s.advance(StateClosing))
	assert.False(t, s.advance(StateActive))
	assert.False(t, s.advance(StateClosing))
	assert.True(t, s.advance(StateClosed))
	assert.Equal(t, "closed", s.State().String())
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxMessageLength: 10}.withDefaults()
	assert.Equal(t, 10, o.MaxMessageLength)
	assert.Equal(t, DefaultOutboundBuffer, o.OutboundBuffer)
	assert.Equal(t, DefaultPingInterval, o.PingInterval)
	assert.Positive(t, o.PresenceRefresh)
}
