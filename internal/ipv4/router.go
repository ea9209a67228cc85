package ipv4

import "encoding/binary"

// Route is one directly-attached network or a default gateway (Prefix
// length 0).
type Route struct {
	Network Addr
	Prefix  int // bits, 0..32; 0 matches everything (default route)
	Gateway Addr
	OnLink  bool // true: destination is on-link, gateway is ignored
}

// Router picks the next hop for an outgoing IPv4 datagram by
// longest-prefix match over its configured routes, falling back to the
// default route if present.
type Router struct {
	routes []Route
}

// NewRouter creates a router with no routes configured.
func NewRouter() *Router {
	return &Router{}
}

// AddRoute installs a route. Routes are matched longest-prefix-first
// regardless of insertion order.
func (r *Router) AddRoute(route Route) {
	r.routes = append(r.routes, route)
}

// SetDefaultGateway installs (or replaces) the 0.0.0.0/0 default route.
func (r *Router) SetDefaultGateway(gw Addr) {
	for i := range r.routes {
		if r.routes[i].Prefix == 0 {
			r.routes[i].Gateway = gw
			return
		}
	}
	r.AddRoute(Route{Prefix: 0, Gateway: gw})
}

// Resolve returns the next-hop IPv4 address to ARP-resolve for dst: dst
// itself if it matches an on-link route, otherwise the gateway of the
// longest-matching route. ok is false if no route (including no default
// gateway) matches.
func (r *Router) Resolve(dst Addr) (nextHop Addr, ok bool) {
	best := -1
	var bestRoute Route
	for _, route := range r.routes {
		if route.Prefix > 0 && !matches(dst, route.Network, route.Prefix) {
			continue
		}
		if route.Prefix > best {
			best = route.Prefix
			bestRoute = route
		}
	}
	if best < 0 {
		return Addr{}, false
	}
	if bestRoute.OnLink {
		return dst, true
	}
	return bestRoute.Gateway, true
}

func matches(addr, network Addr, prefix int) bool {
	a := binary.BigEndian.Uint32(addr[:])
	n := binary.BigEndian.Uint32(network[:])
	if prefix == 0 {
		return true
	}
	mask := ^uint32(0) << (32 - prefix)
	return a&mask == n&mask
}
