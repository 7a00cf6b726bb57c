// Package roles decides which application section an authenticated session
// lands in.
package roles

import "pkt.systems/wayfare/schema"

// Rule pairs a predicate with the target it produces.
type Rule struct {
	Name   string
	Match  func(view SessionView) bool
	Target schema.NavigationTarget
}

// SessionView is a nil-safe projection of an auth session.
// Absent booleans read as false and absent memberships as empty.
type SessionView struct {
	SuperAdmin bool
	Host       bool
	Agencies   []schema.AgencyMembership
}

// View projects a possibly nil session.
func View(session *schema.AuthSession) SessionView {
	if session == nil {
		return SessionView{}
	}
	view := SessionView{Agencies: session.Agencies}
	if session.User != nil {
		view.SuperAdmin = session.User.IsSuperAdmin
		view.Host = session.User.IsHost
	}
	return view
}

// HasRole reports whether any membership carries role.
func (v SessionView) HasRole(role schema.AgencyRole) bool {
	for _, membership := range v.Agencies {
		if membership.Role == role {
			return true
		}
	}
	return false
}

// FallbackRule is the rule reported when nothing else matches.
var FallbackRule = Rule{
	Name:   "default",
	Match:  func(SessionView) bool { return true },
	Target: schema.TargetCustomer,
}

// DefaultRules returns the marketplace precedence, highest first.
// Agency membership wins over the host flag.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "super-admin",
			Match:  func(v SessionView) bool { return v.SuperAdmin },
			Target: schema.TargetSuperAdmin,
		},
		{
			Name:   "jipper-membership",
			Match:  func(v SessionView) bool { return v.HasRole(schema.RoleJipper) },
			Target: schema.TargetKeeper,
		},
		{
			Name:   "host-without-agency",
			Match:  func(v SessionView) bool { return v.Host && len(v.Agencies) == 0 },
			Target: schema.TargetHost,
		},
		{
			Name:   "agency-membership",
			Match:  func(v SessionView) bool { return len(v.Agencies) > 0 },
			Target: schema.TargetAgent,
		},
	}
}

// Resolver evaluates rules top to bottom; the first match wins.
type Resolver struct {
	rules []Rule
}

// New builds a resolver. With no rules it uses DefaultRules.
func New(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.Match == nil {
			continue
		}
		out = append(out, rule)
	}
	return &Resolver{rules: out}
}

// Rules returns a copy of the rule list, fallback excluded.
func (r *Resolver) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Resolve maps a session to exactly one navigation target.
func (r *Resolver) Resolve(session *schema.AuthSession) schema.NavigationTarget {
	return r.Explain(session).Target
}

// Explain returns the rule that decided the session.
func (r *Resolver) Explain(session *schema.AuthSession) Rule {
	view := View(session)
	for _, rule := range r.rules {
		if rule.Match(view) {
			return rule
		}
	}
	return FallbackRule
}

var defaultResolver = New()

// Resolve maps a session with the default rules.
func Resolve(session *schema.AuthSession) schema.NavigationTarget {
	return defaultResolver.Resolve(session)
}

// Explain reports the default rule matching session.
func Explain(session *schema.AuthSession) Rule {
	return defaultResolver.Explain(session)
}
