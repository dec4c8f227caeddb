package acl

import (
	"bytes"
	"math/big"
	"math/bits"
	"net/netip"
	"sort"
)

// CanonicalizeAddresses folds an unordered multiset of inclusive IP ranges,
// all meant to be read in one IP family, into the shortest canonical
// sequence of single IPs, CIDR-aligned subnets, and explicit ranges: the
// Address Canonicalizer (spec §4.1, component C1).
//
// Ranges belonging to a different family than family, or whose two
// endpoints straddle families, are dropped. The result is sorted by start
// and pairwise non-adjacent (for any two consecutive entries a, b,
// b.start > a.end + 1).
func CanonicalizeAddresses(ranges []IPRange, family IPFamily) []Address {
	filtered := make([]IPRange, 0, len(ranges))
	for _, r := range ranges {
		if !r.Start.IsValid() || !r.End.IsValid() {
			continue
		}
		if FamilyOf(r.Start) != family || FamilyOf(r.End) != family {
			continue
		}
		if cmpAddr(r.Start, r.End) > 0 {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return nil
	}

	sort.Slice(filtered, func(i, j int) bool {
		c := cmpAddr(filtered[i].Start, filtered[j].Start)
		if c != 0 {
			return c < 0
		}
		return cmpAddr(filtered[i].End, filtered[j].End) < 0
	})

	merged := mergeRanges(filtered)

	var out []Address
	for _, m := range merged {
		out = append(out, decomposeSpan(m.Start, m.End, family.bits())...)
	}
	return out
}

// mergeRanges folds a start-sorted slice of ranges into disjoint,
// non-adjacent spans: adjacent or overlapping ranges (next.start <=
// current.end + 1) are merged by lifting current.end to the max of the two
// ends.
func mergeRanges(sorted []IPRange) []IPRange {
	var merged []IPRange
	cur := sorted[0]
	for _, next := range sorted[1:] {
		adjAfterCur, ok := addOne(cur.End)
		if ok && cmpAddr(next.Start, adjAfterCur) <= 0 {
			if cmpAddr(next.End, cur.End) > 0 {
				cur.End = next.End
			}
			continue
		}
		if !ok {
			// cur.End is already the top of the address space; nothing can
			// follow it.
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)
	return merged
}

// decomposeSpan greedily extracts the largest CIDR subnet that starts at lo
// and is contained in [lo, hi], repeating until the span is exhausted
// (spec §4.1 step 3). When the resulting decomposition is nothing but
// isolated /32s or /128s — the merged span straddles a CIDR boundary with
// no non-trivial block fitting anywhere — the whole span collapses into one
// explicit IpRange instead, favoring a compact wire representation over a
// run of single addresses (spec §4.1 tie-break).
func decomposeSpan(lo, hi netip.Addr, familyBits int) []Address {
	var items []Address
	allSingles := true

	cur := lo
	for {
		if cmpAddr(cur, hi) > 0 {
			break
		}
		prefix, ok := FindLargestSubnetInRange(cur, hi)
		if !ok {
			// Unreachable per spec (a single address always fits), kept as
			// an explicit fallback rather than a panic.
			items = append(items, Address{Kind: KindRange, Start: cur, End: hi})
			allSingles = false
			break
		}

		if prefix.Bits() == familyBits {
			items = append(items, Address{Kind: KindSingleIP, IP: cur})
			next, ok := addOne(cur)
			if !ok {
				break
			}
			cur = next
			continue
		}

		allSingles = false
		items = append(items, Address{Kind: KindSubnet, Prefix: prefix})
		last := LastIPInSubnet(prefix)
		if cmpAddr(last, hi) == 0 {
			break
		}
		next, ok := addOne(last)
		if !ok {
			break
		}
		cur = next
	}

	if allSingles && len(items) > 1 {
		return []Address{{Kind: KindRange, Start: lo, End: hi}}
	}
	return items
}

// FindLargestSubnetInRange returns the largest CIDR subnet that (a) starts
// at lo and (b) is entirely contained within [lo, hi]: the auxiliary
// primitive of spec §4.1. It reports false when lo and hi are of different
// families or lo > hi.
func FindLargestSubnetInRange(lo, hi netip.Addr) (netip.Prefix, bool) {
	if !lo.IsValid() || !hi.IsValid() {
		return netip.Prefix{}, false
	}
	if FamilyOf(lo) != FamilyOf(hi) {
		return netip.Prefix{}, false
	}
	if cmpAddr(lo, hi) > 0 {
		return netip.Prefix{}, false
	}

	familyBits := FamilyOf(lo).bits()
	alignment := trailingZeroBits(lo, familyBits)
	alignPrefix := familyBits - alignment

	span := spanCount(lo, hi)
	neededPrefix := familyBits - floorLog2(span)

	p := alignPrefix
	if neededPrefix > p {
		p = neededPrefix
	}
	if p < 0 {
		p = 0
	}
	if p > familyBits {
		p = familyBits
	}

	return netip.PrefixFrom(lo, p), true
}

// LastIPInSubnet returns the last address of a CIDR subnet: network | ~mask
// in the family's integer width (spec §4.1 auxiliary primitive).
func LastIPInSubnet(p netip.Prefix) netip.Addr {
	base := p.Masked().Addr()
	bz := addrBytes(base)
	familyBits := len(bz) * 8
	hostBits := familyBits - p.Bits()

	baseInt := new(big.Int).SetBytes(bz)
	mask := new(big.Int).Lsh(big.NewInt(1), uint(hostBits))
	mask.Sub(mask, big.NewInt(1))
	baseInt.Or(baseInt, mask)

	buf := make([]byte, len(bz))
	baseInt.FillBytes(buf)
	return bytesToAddr(buf)
}

// ─── Address arithmetic helpers ────────────────────────────────────────

// addrBytes returns the address's bytes in its native family width: 4
// bytes for IPv4, 16 for IPv6. Using the native width (rather than
// As16's v4-mapped form) keeps bit-length and trailing-zero computations
// scaled to the correct family.
func addrBytes(a netip.Addr) []byte {
	if a.Is4() || a.Is4In6() {
		b := a.As4()
		return b[:]
	}
	b := a.As16()
	return b[:]
}

func bytesToAddr(b []byte) netip.Addr {
	if len(b) == 4 {
		return netip.AddrFrom4([4]byte(b))
	}
	var a16 [16]byte
	copy(a16[:], b)
	return netip.AddrFrom16(a16)
}

func cmpAddr(a, b netip.Addr) int {
	return bytes.Compare(addrBytes(a), addrBytes(b))
}

// addOne returns a+1, reporting false on overflow past the top of the
// family's address space.
func addOne(a netip.Addr) (netip.Addr, bool) {
	bz := addrBytes(a)
	i := new(big.Int).SetBytes(bz)
	i.Add(i, big.NewInt(1))
	if i.BitLen() > len(bz)*8 {
		return netip.Addr{}, false
	}
	buf := make([]byte, len(bz))
	i.FillBytes(buf)
	return bytesToAddr(buf), true
}

// spanCount returns hi - lo + 1, the number of addresses in [lo, hi].
func spanCount(lo, hi netip.Addr) *big.Int {
	l := new(big.Int).SetBytes(addrBytes(lo))
	h := new(big.Int).SetBytes(addrBytes(hi))
	d := new(big.Int).Sub(h, l)
	d.Add(d, big.NewInt(1))
	return d
}

// floorLog2 returns floor(log2(n)) for n >= 1.
func floorLog2(n *big.Int) int {
	return n.BitLen() - 1
}

// trailingZeroBits returns the number of trailing zero bits of a, capped
// at familyBits (reached when a is the all-zero address).
func trailingZeroBits(a netip.Addr, familyBits int) int {
	bz := addrBytes(a)
	total := 0
	for i := len(bz) - 1; i >= 0; i-- {
		if bz[i] == 0 {
			total += 8
			continue
		}
		total += bits.TrailingZeros8(bz[i])
		break
	}
	if total > familyBits {
		total = familyBits
	}
	return total
}
