package acl

import (
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) netip.Addr {
	t.Helper()
	a, err := netip.ParseAddr(s)
	require.NoError(t, err)
	return a
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

func ipr(t *testing.T, start, end string) IPRange {
	return IPRange{Start: mustAddr(t, start), End: mustAddr(t, end)}
}

func single(t *testing.T, ip string) Address {
	return Address{Kind: KindSingleIP, IP: mustAddr(t, ip)}
}

func subnet(t *testing.T, cidr string) Address {
	return Address{Kind: KindSubnet, Prefix: mustPrefix(t, cidr)}
}

func addrRange(t *testing.T, start, end string) Address {
	return Address{Kind: KindRange, Start: mustAddr(t, start), End: mustAddr(t, end)}
}

var addrCmp = cmp.Comparer(func(a, b Address) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindSingleIP:
		return a.IP == b.IP
	case KindSubnet:
		return a.Prefix == b.Prefix
	case KindRange:
		return a.Start == b.Start && a.End == b.End
	}
	return false
})

func TestCanonicalizeAddresses_S1(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.1.1", "10.0.1.2"),
		ipr(t, "10.0.1.5", "10.0.1.5"),
		ipr(t, "192.168.1.100", "192.168.1.100"),
		ipr(t, "10.0.1.3", "10.0.1.4"),
		ipr(t, "172.16.1.1", "172.16.1.1"),
	}

	got := CanonicalizeAddresses(ranges, FamilyV4)
	want := []Address{
		single(t, "10.0.1.1"),
		subnet(t, "10.0.1.2/31"),
		subnet(t, "10.0.1.4/31"),
		single(t, "172.16.1.1"),
		single(t, "192.168.1.100"),
	}
	require.Empty(t, cmp.Diff(want, got, addrCmp))
}

func TestCanonicalizeAddresses_S2(t *testing.T) {
	ranges := []IPRange{ipr(t, "192.168.1.0", "192.168.2.255")}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	want := []Address{
		subnet(t, "192.168.1.0/24"),
		subnet(t, "192.168.2.0/24"),
	}
	require.Empty(t, cmp.Diff(want, got, addrCmp))
}

func TestCanonicalizeAddresses_S3(t *testing.T) {
	ranges := []IPRange{ipr(t, "192.168.1.255", "192.168.2.0")}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	want := []Address{addrRange(t, "192.168.1.255", "192.168.2.0")}
	require.Empty(t, cmp.Diff(want, got, addrCmp))
}

func TestCanonicalizeAddresses_S6Destination(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.1.13", "10.0.1.43"),
		ipr(t, "10.0.1.52", "10.0.2.43"),
	}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	want := []Address{
		single(t, "10.0.1.13"),
		subnet(t, "10.0.1.14/31"),
		subnet(t, "10.0.1.16/28"),
		subnet(t, "10.0.1.32/29"),
		subnet(t, "10.0.1.40/30"),
		subnet(t, "10.0.1.52/30"),
		subnet(t, "10.0.1.56/29"),
		subnet(t, "10.0.1.64/26"),
		subnet(t, "10.0.1.128/25"),
		subnet(t, "10.0.2.0/27"),
		subnet(t, "10.0.2.32/29"),
		subnet(t, "10.0.2.40/30"),
	}
	require.Empty(t, cmp.Diff(want, got, addrCmp))
}

func TestCanonicalizeAddresses_DropsWrongFamily(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.0.1", "10.0.0.1"),
		ipr(t, "2001:db8::1", "2001:db8::1"),
	}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	require.Equal(t, []Address{single(t, "10.0.0.1")}, got)
}

// integerCoverSize returns the total number of addresses covered by a
// canonical list, used to check coverage-preservation (property 1).
func integerCoverSize(t *testing.T, addrs []Address) int {
	total := 0
	for _, a := range addrs {
		switch a.Kind {
		case KindSingleIP:
			total++
		case KindSubnet:
			total += 1 << (32 - a.Prefix.Bits())
		case KindRange:
			total += int(spanCount(a.Start, a.End).Int64())
		}
	}
	return total
}

func TestCanonicalizeAddresses_CoveragePreserving(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.1.1", "10.0.1.2"),
		ipr(t, "10.0.1.5", "10.0.1.5"),
		ipr(t, "10.0.1.3", "10.0.1.4"),
	}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	require.Equal(t, 5, integerCoverSize(t, got))
}

func TestCanonicalizeAddresses_NonAdjacentAndSorted(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.1.200", "10.0.1.200"),
		ipr(t, "10.0.1.1", "10.0.1.1"),
		ipr(t, "10.0.1.50", "10.0.1.60"),
	}
	got := CanonicalizeAddresses(ranges, FamilyV4)
	for i := 1; i < len(got); i++ {
		prevEnd := addrEnd(got[i-1])
		curStart := addrStart(got[i])
		adj, ok := addOne(prevEnd)
		require.True(t, ok)
		require.True(t, cmpAddr(curStart, adj) > 0)
	}
}

func addrStart(a Address) netip.Addr {
	switch a.Kind {
	case KindSingleIP:
		return a.IP
	case KindSubnet:
		return a.Prefix.Masked().Addr()
	default:
		return a.Start
	}
}

func addrEnd(a Address) netip.Addr {
	switch a.Kind {
	case KindSingleIP:
		return a.IP
	case KindSubnet:
		return LastIPInSubnet(a.Prefix)
	default:
		return a.End
	}
}

func TestCanonicalizeAddresses_Idempotent(t *testing.T) {
	ranges := []IPRange{
		ipr(t, "10.0.1.13", "10.0.1.43"),
		ipr(t, "10.0.1.52", "10.0.2.43"),
	}
	first := CanonicalizeAddresses(ranges, FamilyV4)

	var asRanges []IPRange
	for _, a := range first {
		asRanges = append(asRanges, IPRange{Start: addrStart(a), End: addrEnd(a)})
	}
	second := CanonicalizeAddresses(asRanges, FamilyV4)
	require.Empty(t, cmp.Diff(first, second, addrCmp))
}
