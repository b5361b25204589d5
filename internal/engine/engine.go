// Package engine decides whether a flow between two endpoints is
// authorized by a network's declarative policy rules. It is evaluated
// per request over an explicit rule snapshot and directory data; the
// engine holds no state and touches no storage.
//
// Rules are purely additive: there is no deny rule type, and absence
// of any matching rule means the flow is denied by default. A snapshot
// that is momentarily stale degrades gracefully: selector values that
// no longer resolve to anything simply never match.
package engine

import (
	"strconv"
	"strings"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// Subject is one endpoint of a candidate flow. Device rules look at
// the entity's tags; user rules look at the identity fields.
type Subject struct {
	Entity *domain.Entity
	User   string
	Groups []string
}

// Flow is a candidate communication the consuming system asks about.
// Src and Dst are in the literal direction of travel. Transport and
// Port describe the requested service and only constrain user-policy
// rules.
type Flow struct {
	Src       Subject
	Dst       Subject
	Transport string
	Port      string
}

// Matches reports whether the rule authorizes traffic between src and
// dst, honoring the rule's direction: a unidirectional rule requires
// the literal (source, destination) assignment, a bidirectional rule
// accepts either.
func Matches(rule *domain.PolicyRule, src, dst Subject) bool {
	if !rule.Enabled {
		return false
	}
	if sourceMatches(rule, src) && destinationMatches(rule, dst) {
		return true
	}
	if rule.Direction == domain.DirectionBidirectional {
		return sourceMatches(rule, dst) && destinationMatches(rule, src)
	}
	return false
}

// MatchesFlow is Matches plus the user-policy protocol/port
// constraint.
func MatchesFlow(rule *domain.PolicyRule, flow Flow) bool {
	if !Matches(rule, flow.Src, flow.Dst) {
		return false
	}
	if rule.PolicyType != domain.PolicyUser {
		return true
	}
	return serviceAllows(rule, flow.Transport, flow.Port)
}

// IsAuthorized reports whether any rule in the snapshot matches the
// flow.
func IsAuthorized(rules []*domain.PolicyRule, flow Flow) bool {
	_, ok := FirstMatch(rules, flow)
	return ok
}

// FirstMatch returns the first rule that authorizes the flow, in
// snapshot order. Rules carry no ordering dependency, so which
// matching rule is returned has no authorization significance; it is
// reported so operators can see why a flow is open.
func FirstMatch(rules []*domain.PolicyRule, flow Flow) (*domain.PolicyRule, bool) {
	for _, rule := range rules {
		if MatchesFlow(rule, flow) {
			return rule, true
		}
	}
	return nil, false
}

func sourceMatches(rule *domain.PolicyRule, s Subject) bool {
	for _, entry := range rule.SourceSelector {
		if entry.IsWildcard() {
			return true
		}
		switch entry.Kind {
		case domain.SelectorTag:
			if s.Entity != nil && s.Entity.HasTag(entry.Value) {
				return true
			}
		case domain.SelectorUser:
			if s.User != "" && s.User == entry.Value {
				return true
			}
		case domain.SelectorUserGroup:
			for _, g := range s.Groups {
				if g == entry.Value {
					return true
				}
			}
		}
	}
	return false
}

func destinationMatches(rule *domain.PolicyRule, s Subject) bool {
	for _, entry := range rule.DestinationSelector {
		if entry.IsWildcard() {
			return true
		}
		if entry.Kind == domain.SelectorTag && s.Entity != nil && s.Entity.HasTag(entry.Value) {
			return true
		}
	}
	return false
}

// serviceAllows applies the rule's transport/port restriction to the
// requested flow. Services with pinned ports use those ports no matter
// what the stored ports list says; only a custom service consults the
// stored list, and an empty list then means all ports.
func serviceAllows(rule *domain.PolicyRule, transport, port string) bool {
	if rule.ProtocolName == "" && rule.TransportType == "" && len(rule.Ports) == 0 {
		return true
	}

	svc, known := domain.LookupService(rule.ProtocolName)
	if rule.ProtocolName != "" && !known {
		// Stale reference to a service the catalog no longer defines.
		return false
	}

	ruleTransport := rule.TransportType
	if known && svc.Transport != "" {
		ruleTransport = svc.Transport
	}
	if ruleTransport != "" && transport != "" && transport != ruleTransport {
		return false
	}

	ports := rule.Ports
	if known && !svc.AllowCustomPorts {
		ports = svc.Ports
	}
	if len(ports) == 0 {
		return true
	}
	if port == "" {
		return false
	}
	return portInSet(port, ports)
}

// portInSet reports whether the requested port falls within the
// declared set of single-port and range tokens. Malformed tokens never
// match.
func portInSet(port string, set []string) bool {
	want, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	for _, token := range set {
		lo, hi, isRange := strings.Cut(token, "-")
		loPort, err := strconv.Atoi(lo)
		if err != nil {
			continue
		}
		if !isRange {
			if want == loPort {
				return true
			}
			continue
		}
		hiPort, err := strconv.Atoi(hi)
		if err != nil {
			continue
		}
		if want >= loPort && want <= hiPort {
			return true
		}
	}
	return false
}
