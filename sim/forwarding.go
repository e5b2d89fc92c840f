package sim

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Forwarding policy names accepted by NewForwardingPolicy and Config.Policy.
const (
	PolicyRoundRobin   = "round-robin"
	PolicyRandom       = "random"
	PolicyFullestFirst = "fullest-first"
)

// validForwardingPolicies is the set of recognized policy names.
// Empty string defaults to round-robin.
var validForwardingPolicies = map[string]bool{
	"":                 true,
	PolicyRoundRobin:   true,
	PolicyRandom:       true,
	PolicyFullestFirst: true,
}

// IsValidForwardingPolicy returns true if name is a recognized forwarding policy.
func IsValidForwardingPolicy(name string) bool {
	return validForwardingPolicies[name]
}

// ValidForwardingPolicyNames returns the recognized non-empty policy names, sorted.
func ValidForwardingPolicyNames() []string {
	names := make([]string, 0, len(validForwardingPolicies))
	for name := range validForwardingPolicies {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ForwardingPolicy selects which sub-buffer forwards its head packet toward
// the central buffer. Implementations never mutate the buffers.
// cursor is the engine-owned round-robin cursor; policies other than
// RoundRobin ignore it.
type ForwardingPolicy interface {
	SelectIndex(buffers []*Buffer, cursor int) int
	Name() string
}

// RoundRobin services sub-buffers in cursor order.
type RoundRobin struct{}

// SelectIndex implements ForwardingPolicy for RoundRobin.
func (rr *RoundRobin) SelectIndex(buffers []*Buffer, cursor int) int {
	if len(buffers) == 0 {
		panic("RoundRobin.SelectIndex: no buffers")
	}
	n := len(buffers)
	return ((cursor % n) + n) % n
}

func (rr *RoundRobin) Name() string { return PolicyRoundRobin }

// RandomForwarding picks a sub-buffer uniformly at random.
type RandomForwarding struct {
	rng *rand.Rand
}

// SelectIndex implements ForwardingPolicy for RandomForwarding.
func (r *RandomForwarding) SelectIndex(buffers []*Buffer, _ int) int {
	if len(buffers) == 0 {
		panic("RandomForwarding.SelectIndex: no buffers")
	}
	return r.rng.IntN(len(buffers))
}

func (r *RandomForwarding) Name() string { return PolicyRandom }

// FullestFirst picks the sub-buffer with the highest occupancy fraction.
// Ties are broken by first occurrence (lowest index).
type FullestFirst struct{}

// SelectIndex implements ForwardingPolicy for FullestFirst.
func (ff *FullestFirst) SelectIndex(buffers []*Buffer, _ int) int {
	if len(buffers) == 0 {
		panic("FullestFirst.SelectIndex: no buffers")
	}
	best := 0
	bestFrac := buffers[0].OccupancyFraction()
	for i := 1; i < len(buffers); i++ {
		// strict > keeps the lowest index on ties
		if f := buffers[i].OccupancyFraction(); f > bestFrac {
			best, bestFrac = i, f
		}
	}
	return best
}

func (ff *FullestFirst) Name() string { return PolicyFullestFirst }

// NewForwardingPolicy creates a forwarding policy by name.
// Empty string defaults to round-robin. rng is only used by "random".
// Panics on unrecognized names; Config.Validate rejects them first.
func NewForwardingPolicy(name string, rng *rand.Rand) ForwardingPolicy {
	if !IsValidForwardingPolicy(name) {
		panic(fmt.Sprintf("unknown forwarding policy %q", name))
	}
	switch name {
	case "", PolicyRoundRobin:
		return &RoundRobin{}
	case PolicyRandom:
		if rng == nil {
			panic("NewForwardingPolicy: random policy requires an rng")
		}
		return &RandomForwarding{rng: rng}
	case PolicyFullestFirst:
		return &FullestFirst{}
	default:
		panic(fmt.Sprintf("unhandled forwarding policy %q", name))
	}
}
