package ipv4

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterOnLinkReturnsDestinationItself(t *testing.T) {
	r := NewRouter()
	r.AddRoute(Route{Network: Addr{10, 0, 0, 0}, Prefix: 24, OnLink: true})

	next, ok := r.Resolve(Addr{10, 0, 0, 42})
	assert.True(t, ok)
	assert.Equal(t, Addr{10, 0, 0, 42}, next)
}

func TestRouterFallsBackToDefaultGateway(t *testing.T) {
	r := NewRouter()
	r.AddRoute(Route{Network: Addr{10, 0, 0, 0}, Prefix: 24, OnLink: true})
	r.SetDefaultGateway(Addr{10, 0, 0, 254})

	next, ok := r.Resolve(Addr{8, 8, 8, 8})
	assert.True(t, ok)
	assert.Equal(t, Addr{10, 0, 0, 254}, next)
}

func TestRouterNoMatchFails(t *testing.T) {
	r := NewRouter()
	_, ok := r.Resolve(Addr{1, 2, 3, 4})
	assert.False(t, ok)
}

func TestRouterLongestPrefixWins(t *testing.T) {
	r := NewRouter()
	r.AddRoute(Route{Network: Addr{10, 0, 0, 0}, Prefix: 8, Gateway: Addr{10, 0, 0, 1}})
	r.AddRoute(Route{Network: Addr{10, 1, 0, 0}, Prefix: 16, Gateway: Addr{10, 1, 0, 1}})

	next, ok := r.Resolve(Addr{10, 1, 2, 3})
	assert.True(t, ok)
	assert.Equal(t, Addr{10, 1, 0, 1}, next)
}

func TestSetDefaultGatewayReplacesExisting(t *testing.T) {
	r := NewRouter()
	r.SetDefaultGateway(Addr{1, 1, 1, 1})
	r.SetDefaultGateway(Addr{2, 2, 2, 2})

	next, ok := r.Resolve(Addr{9, 9, 9, 9})
	assert.True(t, ok)
	assert.Equal(t, Addr{2, 2, 2, 2}, next)
}
