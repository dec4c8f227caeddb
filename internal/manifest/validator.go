package manifest

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
	"time"
)

// Validator checks manifests for semantic correctness before compilation.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

// ValidationError holds every error found across a batch of manifests.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (v *Validator) ValidateAll(manifests []*Manifest) error {
	var errs []string
	for _, m := range manifests {
		if err := v.Validate(m); err != nil {
			ve := err.(*ValidationError)
			errs = append(errs, ve.Errors...)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (v *Validator) Validate(m *Manifest) error {
	var errs []string
	ctx := fmt.Sprintf("[%s/%s]", m.Metadata.Namespace, m.Metadata.Name)

	if m.Metadata.Name == "" {
		errs = append(errs, ctx+": metadata.name is required")
	}

	switch m.Kind {
	case KindACLRule:
		errs = append(errs, v.validateRule(ctx, m.RuleSpec)...)
	case KindAlias:
		errs = append(errs, v.validateAlias(ctx, m.AliasSpec)...)
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown kind %q", ctx, m.Kind))
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func (v *Validator) validateRule(ctx string, spec *ACLRuleSpec) []string {
	if spec == nil {
		return []string{ctx + ": spec is required for ACLRule"}
	}

	var errs []string

	if spec.Expires != "" {
		if _, err := time.Parse(time.RFC3339, spec.Expires); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid expires %q: %v", ctx, spec.Expires, err))
		}
	}

	if spec.AllUsers && len(spec.AllowUsers) > 0 {
		errs = append(errs, ctx+": allUsers and allowUsers are mutually exclusive")
	}
	if spec.DenyAllUsers && len(spec.DenyUsers) > 0 {
		errs = append(errs, ctx+": denyAllUsers and denyUsers are mutually exclusive")
	}

	errs = append(errs, validateCIDRs(ctx, spec.DestinationCIDRs)...)
	errs = append(errs, validateRanges(ctx, spec.DestinationRanges)...)
	errs = append(errs, validatePorts(ctx, spec.Ports)...)
	errs = append(errs, validateProtocols(ctx, spec.Protocols)...)

	return errs
}

func (v *Validator) validateAlias(ctx string, spec *AliasSpec) []string {
	if spec == nil {
		return []string{ctx + ": spec is required for Alias"}
	}

	var errs []string
	if spec.Kind != "Destination" && spec.Kind != "Component" {
		errs = append(errs, fmt.Sprintf("%s: invalid alias kind %q (want Destination|Component)", ctx, spec.Kind))
	}
	if len(spec.DestinationCIDRs) == 0 && len(spec.DestinationRanges) == 0 {
		errs = append(errs, ctx+": alias must declare at least one destination")
	}

	errs = append(errs, validateCIDRs(ctx, spec.DestinationCIDRs)...)
	errs = append(errs, validateRanges(ctx, spec.DestinationRanges)...)
	errs = append(errs, validatePorts(ctx, spec.Ports)...)
	errs = append(errs, validateProtocols(ctx, spec.Protocols)...)

	return errs
}

func validateCIDRs(ctx string, cidrs []string) []string {
	var errs []string
	for _, c := range cidrs {
		if _, err := netip.ParsePrefix(c); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid CIDR %q: %v", ctx, c, err))
		}
	}
	return errs
}

func validateRanges(ctx string, ranges []string) []string {
	var errs []string
	for _, r := range ranges {
		start, end, ok := strings.Cut(r, "-")
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: invalid range %q (want start-end)", ctx, r))
			continue
		}
		startAddr, err1 := netip.ParseAddr(strings.TrimSpace(start))
		endAddr, err2 := netip.ParseAddr(strings.TrimSpace(end))
		if err1 != nil || err2 != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid range %q: bad address", ctx, r))
			continue
		}
		if startAddr.Is4() != endAddr.Is4() {
			errs = append(errs, fmt.Sprintf("%s: range %q mixes address families", ctx, r))
		}
	}
	return errs
}

func validatePorts(ctx string, ports []string) []string {
	var errs []string
	for _, p := range ports {
		start, end, ok := strings.Cut(p, ":")
		if !ok {
			if _, err := strconv.ParseUint(p, 10, 16); err != nil {
				errs = append(errs, fmt.Sprintf("%s: invalid port %q", ctx, p))
			}
			continue
		}
		lo, err1 := strconv.ParseUint(start, 10, 16)
		hi, err2 := strconv.ParseUint(end, 10, 16)
		if err1 != nil || err2 != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid port range %q", ctx, p))
			continue
		}
		if lo > hi {
			errs = append(errs, fmt.Sprintf("%s: port range start > end (%q)", ctx, p))
		}
	}
	return errs
}

func validateProtocols(ctx string, protocols []string) []string {
	var errs []string
	for _, p := range protocols {
		switch strings.ToLower(p) {
		case "tcp", "udp", "icmp":
		default:
			errs = append(errs, fmt.Sprintf("%s: invalid protocol %q (want tcp|udp|icmp)", ctx, p))
		}
	}
	return errs
}
