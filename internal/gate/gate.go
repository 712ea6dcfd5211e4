// Package gate decides whether a user may view category content.
//
// Decide is a pure function over an already collected Input; Evaluator
// collects that input from the catalog store and a live membership query.
package gate

import (
	"github.com/m3rciful/gatebot/internal/catalog"
)

// Decision is the outcome of a gate evaluation.
type Decision string

const (
	Granted              Decision = "granted"
	NeedsAgeConfirmation Decision = "needs_age_confirmation"
	NeedsJoin            Decision = "needs_join"
)

// Reasons attached to a Result.
const (
	ReasonNoGate      = "no gate configured"
	ReasonAgeMissing  = "age confirmation required"
	ReasonMember      = "channel member"
	ReasonProvisional = "provisional via join request"
	ReasonNotMember   = "not a channel member"
	ReasonQueryFailed = "membership query failed"
	ReasonAcked       = "join acknowledged"
	ReasonInviteOnly  = "invite not acknowledged"
)

// MemberStatus mirrors the chat member status reported by the transport.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Membership is the answer of a membership query.
type Membership struct {
	Status MemberStatus
	// IsMember is only meaningful for restricted members.
	IsMember bool
}

// Active reports whether the membership counts as joined.
func (m Membership) Active() bool {
	switch m.Status {
	case StatusCreator, StatusAdministrator, StatusMember:
		return true
	case StatusRestricted:
		return m.IsMember
	}
	return false
}

// Input carries everything Decide needs.
type Input struct {
	Config       catalog.GateConfig
	AgeConfirmed bool
	// Acknowledged is set once the user pressed continue after being shown
	// an invite link that cannot be verified.
	Acknowledged bool
	Membership   Membership
	// QueryErr is the failure of the live membership query, if any.
	QueryErr error
	Join     catalog.JoinStatus
}

// Result is a decision with its reason.
type Result struct {
	Decision Decision
	Reason   string
}

// Granted reports whether access was granted.
func (r Result) Granted() bool {
	return r.Decision == Granted
}

// Decide evaluates the gate rules in their fixed order. A failed query is
// never treated as a grant.
func Decide(in Input) Result {
	cfg := in.Config
	if cfg.RequireAge && !in.AgeConfirmed {
		return Result{Decision: NeedsAgeConfirmation, Reason: ReasonAgeMissing}
	}

	if cfg.RequiresMembership() {
		if in.QueryErr == nil && in.Membership.Active() {
			return Result{Decision: Granted, Reason: ReasonMember}
		}
		if in.Join == catalog.JoinPending {
			return Result{Decision: Granted, Reason: ReasonProvisional}
		}
		if in.QueryErr != nil {
			return Result{Decision: NeedsJoin, Reason: ReasonQueryFailed}
		}
		return Result{Decision: NeedsJoin, Reason: ReasonNotMember}
	}

	if cfg.InviteLink != "" {
		if in.Acknowledged {
			return Result{Decision: Granted, Reason: ReasonAcked}
		}
		return Result{Decision: NeedsJoin, Reason: ReasonInviteOnly}
	}

	return Result{Decision: Granted, Reason: ReasonNoGate}
}
