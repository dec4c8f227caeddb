package store

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/fenwall/aclcore/internal/acl"
)

// parseIPRange parses the "start-end" text representation persisted for an
// ACL rule's destination_ranges / alias destination_ranges column.
func parseIPRange(s string) (acl.IPRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return acl.IPRange{}, fmt.Errorf("malformed ip range %q", s)
	}
	start, err := netip.ParseAddr(strings.TrimSpace(parts[0]))
	if err != nil {
		return acl.IPRange{}, fmt.Errorf("malformed ip range %q: %w", s, err)
	}
	end, err := netip.ParseAddr(strings.TrimSpace(parts[1]))
	if err != nil {
		return acl.IPRange{}, fmt.Errorf("malformed ip range %q: %w", s, err)
	}
	return acl.IPRange{Start: start, End: end}, nil
}

// parsePortRanges parses "start:end" (or "port" for a single-port span)
// text representations persisted for an ACL rule's/alias's ports column.
func parsePortRanges(in []string) []acl.PortRange {
	var out []acl.PortRange
	for _, s := range in {
		parts := strings.SplitN(s, ":", 2)
		start, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			continue
		}
		end := start
		if len(parts) == 2 {
			e, err := strconv.ParseUint(parts[1], 10, 16)
			if err != nil {
				continue
			}
			end = e
		}
		out = append(out, acl.PortRange{Start: uint16(start), End: uint16(end)})
	}
	return out
}
