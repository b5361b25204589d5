package validation

import (
	"testing"

	"github.com/netgrid/mesh-acl-manager/internal/domain"
)

func validDeviceRule() *domain.PolicyRule {
	return &domain.PolicyRule{
		Name:                "web to db",
		PolicyType:          domain.PolicyDevice,
		Enabled:             true,
		SourceSelector:      []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-web"}},
		DestinationSelector: []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-db"}},
		Direction:           domain.DirectionUnidirectional,
	}
}

func validUserRule() *domain.PolicyRule {
	return &domain.PolicyRule{
		Name:                "ops to db",
		PolicyType:          domain.PolicyUser,
		Enabled:             true,
		SourceSelector:      []domain.SelectorEntry{{Kind: domain.SelectorUserGroup, Value: "ops"}},
		DestinationSelector: []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-db"}},
		Direction:           domain.DirectionBidirectional,
		ProtocolName:        "Custom",
		TransportType:       "tcp",
		Ports:               []string{"8080", "9000-9100"},
	}
}

func hasFieldError(errs ValidationErrors, field string) bool {
	for _, e := range errs {
		if e.Field == field {
			return true
		}
	}
	return false
}

func TestValidateRuleAcceptsValidRules(t *testing.T) {
	if errs := ValidateRule(validDeviceRule()); errs.HasErrors() {
		t.Errorf("Expected valid device rule, got %v", errs)
	}
	if errs := ValidateRule(validUserRule()); errs.HasErrors() {
		t.Errorf("Expected valid user rule, got %v", errs)
	}
}

func TestValidateRuleRequiresName(t *testing.T) {
	rule := validDeviceRule()
	rule.Name = "   "

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "name") {
		t.Errorf("Expected name error, got %v", errs)
	}
}

func TestValidateRuleRejectsUnknownPolicyType(t *testing.T) {
	rule := validDeviceRule()
	rule.PolicyType = "firewall-policy"

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "policy_type") {
		t.Errorf("Expected policy_type error, got %v", errs)
	}
}

func TestValidateRuleRejectsBadDirection(t *testing.T) {
	rule := validDeviceRule()
	rule.Direction = 2

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "allowed_traffic_direction") {
		t.Errorf("Expected direction error, got %v", errs)
	}
}

func TestValidateSelectorEmpty(t *testing.T) {
	rule := validDeviceRule()
	rule.SourceSelector = nil

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "src_type") {
		t.Errorf("Expected src_type error, got %v", errs)
	}
}

func TestValidateSelectorWildcardExclusivity(t *testing.T) {
	rule := validDeviceRule()
	rule.SourceSelector = []domain.SelectorEntry{
		{Kind: domain.SelectorTag, Value: domain.Wildcard},
		{Kind: domain.SelectorTag, Value: "tag-web"},
	}

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "src_type") {
		t.Errorf("Expected wildcard exclusivity error, got %v", errs)
	}

	// Wildcard alone is fine
	rule.SourceSelector = []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: domain.Wildcard}}
	if errs := ValidateRule(rule); errs.HasErrors() {
		t.Errorf("Expected lone wildcard to validate, got %v", errs)
	}
}

func TestValidateSelectorKindsPerPolicyType(t *testing.T) {
	// Device rules take tag sources only
	rule := validDeviceRule()
	rule.SourceSelector = []domain.SelectorEntry{{Kind: domain.SelectorUser, Value: "alice@example.com"}}
	errs := ValidateRule(rule)
	if !hasFieldError(errs, "src_type[0]") {
		t.Errorf("Expected selector kind error, got %v", errs)
	}

	// User rules take user and user-group sources only
	userRule := validUserRule()
	userRule.SourceSelector = []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: "tag-web"}}
	errs = ValidateRule(userRule)
	if !hasFieldError(errs, "src_type[0]") {
		t.Errorf("Expected selector kind error, got %v", errs)
	}

	// Destinations are always tag-based
	rule = validDeviceRule()
	rule.DestinationSelector = []domain.SelectorEntry{{Kind: domain.SelectorUser, Value: "alice@example.com"}}
	errs = ValidateRule(rule)
	if !hasFieldError(errs, "dst_type[0]") {
		t.Errorf("Expected destination kind error, got %v", errs)
	}
}

func TestValidateSelectorEmptyValue(t *testing.T) {
	rule := validDeviceRule()
	rule.SourceSelector = []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: ""}}

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "src_type[0]") {
		t.Errorf("Expected empty value error, got %v", errs)
	}
}

func TestDeviceRuleRejectsServiceFields(t *testing.T) {
	rule := validDeviceRule()
	rule.ProtocolName = "SSH"

	errs := ValidateRule(rule)
	if !hasFieldError(errs, "protocol") {
		t.Errorf("Expected protocol error, got %v", errs)
	}

	rule = validDeviceRule()
	rule.Ports = []string{"22"}
	errs = ValidateRule(rule)
	if !hasFieldError(errs, "protocol") {
		t.Errorf("Expected protocol error for ports on device rule, got %v", errs)
	}
}

func TestUserRuleServiceFields(t *testing.T) {
	rule := validUserRule()
	rule.TransportType = "icmp"
	errs := ValidateRule(rule)
	if !hasFieldError(errs, "type") {
		t.Errorf("Expected transport error, got %v", errs)
	}

	rule = validUserRule()
	rule.ProtocolName = "Gopher"
	errs = ValidateRule(rule)
	if !hasFieldError(errs, "protocol") {
		t.Errorf("Expected unknown service error, got %v", errs)
	}

	rule = validUserRule()
	rule.Ports = []string{"8080", "bad", "99999"}
	errs = ValidateRule(rule)
	if !hasFieldError(errs, "ports[1]") || !hasFieldError(errs, "ports[2]") {
		t.Errorf("Expected port errors for every bad token, got %v", errs)
	}
}

func TestValidatePortToken(t *testing.T) {
	tests := []struct {
		token string
		valid bool
	}{
		{"22", true},
		{"1", true},
		{"65535", true},
		{"8000-8100", true},
		{"", false},
		{"0", false},
		{"65536", false},
		{"abc", false},
		{"100-50", false},
		{"100-", false},
		{"-100", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			err := ValidatePortToken(tt.token)
			if (err == nil) != tt.valid {
				t.Errorf("ValidatePortToken(%q) = %v, want valid=%v", tt.token, err, tt.valid)
			}
		})
	}
}

func TestValidateRuleCollectsAllViolations(t *testing.T) {
	rule := &domain.PolicyRule{
		Name:                "",
		PolicyType:          domain.PolicyUser,
		Direction:           5,
		SourceSelector:      nil,
		DestinationSelector: []domain.SelectorEntry{{Kind: domain.SelectorTag, Value: ""}},
		Ports:               []string{"bad"},
	}

	errs := ValidateRule(rule)
	if len(errs) < 4 {
		t.Errorf("Expected all violations reported, got %d: %v", len(errs), errs)
	}
}
