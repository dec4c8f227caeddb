package acl

import "sort"

// CanonicalizePorts merges and deduplicates an unordered list of inclusive
// port ranges into a sorted, disjoint canonical list (spec §4.2, component
// C2). A span covering exactly one port is rendered as PortKindSingle.
func CanonicalizePorts(ranges []PortRange) []Port {
	valid := make([]PortRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Start > r.End {
			continue
		}
		valid = append(valid, r)
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End < valid[j].End
	})

	merged := make([]PortRange, 0, len(valid))
	cur := valid[0]
	for _, next := range valid[1:] {
		if next.Start <= adjacent(cur.End) {
			if next.End > cur.End {
				cur.End = next.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)

	out := make([]Port, 0, len(merged))
	for _, m := range merged {
		if m.Start == m.End {
			out = append(out, Port{Kind: PortKindSingle, Start: m.Start, End: m.Start})
		} else {
			out = append(out, Port{Kind: PortKindRange, Start: m.Start, End: m.End})
		}
	}
	return out
}

// adjacent returns end+1, saturating at 65535 so that the top port never
// wraps around to 0 and falsely merges with port 0.
func adjacent(end uint16) uint16 {
	if end == 65535 {
		return end
	}
	return end + 1
}
