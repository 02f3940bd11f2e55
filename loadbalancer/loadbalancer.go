// Package loadbalancer implements the gateway's load balancer (spec
// §4.10): pick one of a configured server list per request. Both
// implementations reject an empty server list in their constructor.
package loadbalancer

import (
	"errors"
	"math/rand"
	"sync/atomic"
)

// ErrNoServers is returned by the constructors when given an empty list.
var ErrNoServers = errors.New("loadbalancer: server list must not be empty")

// LoadBalancer selects one backend server for each request.
type LoadBalancer interface {
	Choose() string
	Servers() []string
}

// Random picks a uniformly random server per call.
type Random struct {
	servers []string
}

// NewRandom creates a Random load balancer over servers.
func NewRandom(servers []string) (*Random, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	cp := make([]string, len(servers))
	copy(cp, servers)
	return &Random{servers: cp}, nil
}

func (r *Random) Choose() string {
	return r.servers[rand.Intn(len(r.servers))]
}

func (r *Random) Servers() []string { return r.servers }

// RoundRobin cycles through servers in order via an atomic index, so that
// any n consecutive Choose calls over n servers return each exactly once
// (spec §8 testable property 8).
type RoundRobin struct {
	servers []string
	next    uint64
}

// NewRoundRobin creates a RoundRobin load balancer over servers.
func NewRoundRobin(servers []string) (*RoundRobin, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	cp := make([]string, len(servers))
	copy(cp, servers)
	return &RoundRobin{servers: cp}, nil
}

func (r *RoundRobin) Choose() string {
	i := atomic.AddUint64(&r.next, 1) - 1
	return r.servers[i%uint64(len(r.servers))]
}

func (r *RoundRobin) Servers() []string { return r.servers }
