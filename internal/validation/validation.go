// Package validation provides validation for ACL policy rules before
// they reach storage. Rules are checked in full and every violation is
// reported; a rule is only persisted when the collection is empty
// (validate-before-mutate).
package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

// sourceKinds lists the selector kinds legal in a source selector for
// each policy type. Destination selectors are always tag-based.
var sourceKinds = map[domain.PolicyType][]domain.SelectorKind{
	domain.PolicyDevice: {domain.SelectorTag},
	domain.PolicyUser:   {domain.SelectorUser, domain.SelectorUserGroup},
}

// ValidateRule checks a policy rule against all invariants and returns
// every violation found. The rule is not modified.
func ValidateRule(rule *domain.PolicyRule) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(rule.Name) == "" {
		errs.Add("name", rule.Name, "name must not be empty")
	}

	if rule.PolicyType != domain.PolicyDevice && rule.PolicyType != domain.PolicyUser {
		errs.Add("policy_type", string(rule.PolicyType), "policy type must be device-policy or user-policy")
		return errs
	}

	if rule.Direction != domain.DirectionUnidirectional && rule.Direction != domain.DirectionBidirectional {
		errs.Add("allowed_traffic_direction", strconv.Itoa(int(rule.Direction)), "direction must be 0 (unidirectional) or 1 (bidirectional)")
	}

	validateSelector(&errs, "src_type", rule.SourceSelector, sourceKinds[rule.PolicyType])
	validateSelector(&errs, "dst_type", rule.DestinationSelector, []domain.SelectorKind{domain.SelectorTag})

	if rule.PolicyType == domain.PolicyDevice {
		if rule.ProtocolName != "" || rule.TransportType != "" || len(rule.Ports) > 0 {
			errs.Add("protocol", rule.ProtocolName, "protocol, transport and ports apply to user policies only")
		}
		return errs
	}

	if rule.TransportType != "" && rule.TransportType != "tcp" && rule.TransportType != "udp" {
		errs.Add("type", rule.TransportType, "transport must be tcp or udp")
	}
	if rule.ProtocolName != "" {
		if _, ok := domain.LookupService(rule.ProtocolName); !ok {
			errs.Add("protocol", rule.ProtocolName, "unknown service name")
		}
	}
	for i, port := range rule.Ports {
		if err := ValidatePortToken(port); err != nil {
			errs.Add(fmt.Sprintf("ports[%d]", i), port, err.Error())
		}
	}

	return errs
}

// validateSelector checks one selector list: it must be non-empty, a
// wildcard entry must be the only entry, and every entry must carry a
// legal kind and a non-empty value.
func validateSelector(errs *ValidationErrors, field string, entries []domain.SelectorEntry, kinds []domain.SelectorKind) {
	if len(entries) == 0 {
		errs.Add(field, "", "selector must not be empty")
		return
	}

	wildcards := 0
	for _, e := range entries {
		if e.IsWildcard() {
			wildcards++
		}
	}
	if wildcards > 0 && len(entries) > 1 {
		errs.Add(field, domain.Wildcard, "wildcard selector must be the only entry")
	}

	for i, e := range entries {
		if e.Value == "" {
			errs.Add(fmt.Sprintf("%s[%d]", field, i), "", "selector value must not be empty")
		}
		if !kindAllowed(e.Kind, kinds) {
			errs.Add(fmt.Sprintf("%s[%d]", field, i), string(e.Kind),
				fmt.Sprintf("selector kind must be one of %s", kindList(kinds)))
		}
	}
}

func kindAllowed(kind domain.SelectorKind, kinds []domain.SelectorKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func kindList(kinds []domain.SelectorKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

// ValidatePortToken validates a single port token: either a single
// port number or a lo-hi range, both within 1-65535.
func ValidatePortToken(token string) error {
	if token == "" {
		return fmt.Errorf("port must not be empty")
	}
	lo, hi, isRange := strings.Cut(token, "-")
	loPort, err := parsePort(lo)
	if err != nil {
		return err
	}
	if !isRange {
		return nil
	}
	hiPort, err := parsePort(hi)
	if err != nil {
		return err
	}
	if hiPort < loPort {
		return fmt.Errorf("range end %d is below range start %d", hiPort, loPort)
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d is out of range 1-65535", port)
	}
	return port, nil
}
