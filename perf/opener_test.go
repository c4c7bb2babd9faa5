package perf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/newtools/ebpf"
)

func TestNewReaderAcceptsPerfEventArray(t *testing.T) {
	m, err := ebpf.NewPerfEventArray(4)
	if err != nil {
		t.Skipf("bpf() unavailable in this environment: %v", err)
	}
	defer m.Close()

	rd, err := NewReader(m)
	require.NoError(t, err)
	require.NotNil(t, rd)
}

func TestNewReaderRejectsWrongMapType(t *testing.T) {
	m, err := ebpf.NewMap(ebpf.HashMapType, 4, 4, 4)
	if err != nil {
		t.Skipf("bpf() unavailable in this environment: %v", err)
	}
	defer m.Close()

	_, err = NewReader(m)

	var invalid *InvalidMapType
	require.ErrorAs(t, err, &invalid)
	require.EqualValues(t, ebpf.HashMapType, invalid.MapType)
}

func TestNewRingRejectsNonPowerOfTwoPageCount(t *testing.T) {
	_, err := newRing(0, 4096, 3)

	var invalid *InvalidPageCount
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, 3, invalid.PageCount)
}

func TestNewRingRejectsZeroPageCount(t *testing.T) {
	_, err := newRing(0, 4096, 0)

	var invalid *InvalidPageCount
	require.ErrorAs(t, err, &invalid)
}
