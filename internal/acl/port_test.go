package acl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizePorts_S4Merge(t *testing.T) {
	got := CanonicalizePorts([]PortRange{
		{Start: 100, End: 200},
		{Start: 150, End: 220},
		{Start: 210, End: 300},
	})
	require.Equal(t, []Port{{Kind: PortKindRange, Start: 100, End: 300}}, got)
}

func TestCanonicalizePorts_S4Mixed(t *testing.T) {
	got := CanonicalizePorts([]PortRange{
		{Start: 501, End: 699},
		{Start: 151, End: 220},
		{Start: 210, End: 300},
		{Start: 800, End: 800},
		{Start: 50, End: 50},
	})
	want := []Port{
		{Kind: PortKindSingle, Start: 50, End: 50},
		{Kind: PortKindRange, Start: 151, End: 300},
		{Kind: PortKindRange, Start: 501, End: 699},
		{Kind: PortKindSingle, Start: 800, End: 800},
	}
	require.Equal(t, want, got)
}

func TestCanonicalizePorts_DropsInvertedRanges(t *testing.T) {
	got := CanonicalizePorts([]PortRange{{Start: 500, End: 100}})
	require.Nil(t, got)
}

func TestCanonicalizePorts_SaturatesAtTop(t *testing.T) {
	got := CanonicalizePorts([]PortRange{
		{Start: 65534, End: 65535},
		{Start: 65535, End: 65535},
	})
	require.Equal(t, []Port{{Kind: PortKindRange, Start: 65534, End: 65535}}, got)
}

func TestCanonicalizePorts_Empty(t *testing.T) {
	require.Nil(t, CanonicalizePorts(nil))
}
