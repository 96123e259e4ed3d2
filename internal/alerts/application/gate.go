package application

import (
	"sync"
	"time"
)

// Phase is the duration-gate state for one (rule, equipment) pair.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseActive
)

// TransitionKind reports what an observation changed.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	// TransitionRaised fires exactly once, on Pending -> Active.
	TransitionRaised
	// TransitionResolved fires when an active pair's condition goes false.
	TransitionResolved
)

// Transition is the outcome of one gate observation.
type Transition struct {
	Kind    TransitionKind
	Onset   time.Time
	AlertID string
}

type pairKey struct {
	RuleID      string
	EquipmentID string
}

type pairState struct {
	mu      sync.Mutex
	phase   Phase
	onset   time.Time
	alertID string
}

// Gate tracks condition onset per (rule, equipment) pair and requires the
// condition to hold continuously for a minimum duration before an alert is
// declared active. Pairs are created on first use and garbage-collected when
// their rule is disabled. Each pair is single-writer: observations for the
// same pair serialize on the pair mutex, pairs never share mutable state.
type Gate struct {
	mu    sync.Mutex
	pairs map[pairKey]*pairState
}

// NewGate constructs an empty gate arena.
func NewGate() *Gate {
	return &Gate{pairs: make(map[pairKey]*pairState)}
}

// Observe advances the pair's state machine with one condition sample.
// A single false sample discards the onset entirely: the required duration
// must be continuous, there is no partial credit.
func (g *Gate) Observe(ruleID, equipmentID string, holds bool, duration time.Duration, now time.Time) Transition {
	if g == nil {
		return Transition{}
	}
	state := g.pair(ruleID, equipmentID, holds)
	if state == nil {
		return Transition{}
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if !holds {
		switch state.phase {
		case PhaseActive:
			alertID := state.alertID
			state.phase = PhaseIdle
			state.onset = time.Time{}
			state.alertID = ""
			return Transition{Kind: TransitionResolved, AlertID: alertID}
		case PhasePending:
			state.phase = PhaseIdle
			state.onset = time.Time{}
		}
		return Transition{}
	}

	switch state.phase {
	case PhaseIdle:
		state.phase = PhasePending
		state.onset = now
		fallthrough
	case PhasePending:
		if now.Sub(state.onset) >= duration {
			state.phase = PhaseActive
			return Transition{Kind: TransitionRaised, Onset: state.onset}
		}
	}
	return Transition{}
}

// BindAlert associates the raised alert with the active pair so resolution
// can auto-resolve it.
func (g *Gate) BindAlert(ruleID, equipmentID, alertID string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	state := g.pairs[pairKey{RuleID: ruleID, EquipmentID: equipmentID}]
	g.mu.Unlock()
	if state == nil {
		return
	}
	state.mu.Lock()
	if state.phase == PhaseActive {
		state.alertID = alertID
	}
	state.mu.Unlock()
}

// PhaseOf reports the current phase for a pair.
func (g *Gate) PhaseOf(ruleID, equipmentID string) Phase {
	if g == nil {
		return PhaseIdle
	}
	g.mu.Lock()
	state := g.pairs[pairKey{RuleID: ruleID, EquipmentID: equipmentID}]
	g.mu.Unlock()
	if state == nil {
		return PhaseIdle
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.phase
}

// Reset forces one pair back to Idle, recovering from state that no longer
// matches the rule's shape. The pair re-derives from the next tick.
func (g *Gate) Reset(ruleID, equipmentID string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	delete(g.pairs, pairKey{RuleID: ruleID, EquipmentID: equipmentID})
	g.mu.Unlock()
}

// DropRule discards all pair state belonging to a rule.
func (g *Gate) DropRule(ruleID string) {
	if g == nil {
		return
	}
	g.mu.Lock()
	for key := range g.pairs {
		if key.RuleID == ruleID {
			delete(g.pairs, key)
		}
	}
	g.mu.Unlock()
}

// RetainRules drops state for every rule not in the keep set, bounding arena
// growth when rules are deleted or disabled.
func (g *Gate) RetainRules(keep map[string]struct{}) {
	if g == nil {
		return
	}
	g.mu.Lock()
	for key := range g.pairs {
		if _, ok := keep[key.RuleID]; !ok {
			delete(g.pairs, key)
		}
	}
	g.mu.Unlock()
}

// pair returns the state for the key, creating it only when the condition
// holds (an idle pair with a false condition needs no state).
func (g *Gate) pair(ruleID, equipmentID string, create bool) *pairState {
	key := pairKey{RuleID: ruleID, EquipmentID: equipmentID}
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.pairs[key]
	if !ok {
		if !create {
			return nil
		}
		state = &pairState{}
		g.pairs[key] = state
	}
	return state
}
