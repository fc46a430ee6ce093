package freshness

import (
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = netip.MustParseAddr("10.0.0.5")
	addrB = netip.MustParseAddr("10.0.0.6")
	addrC = netip.MustParseAddr("fe80::1")
)

func newMockTable(t *testing.T) (*Table, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	return New(WithClock(mock), WithShards(4)), mock
}

func TestTable_TouchReportsNewPairs(t *testing.T) {
	table, mock := newMockTable(t)

	assert.True(t, table.Touch("host", addrA), "first sighting is new")
	mock.Add(time.Second)
	assert.False(t, table.Touch("host", addrA), "repeat sighting is not new")
	assert.True(t, table.Touch("host", addrB))
	assert.True(t, table.Touch("other", addrA), "same address under another key is a new pair")

	assert.Equal(t, []netip.Addr{addrA, addrB}, table.Addresses("host"))
	assert.Equal(t, 2, table.Len("host"))
}

func TestTable_TouchKeepsLatestTimestamp(t *testing.T) {
	table, mock := newMockTable(t)

	table.Touch("host", addrA)
	mock.Add(5 * time.Second)
	table.Touch("host", addrA)

	last, ok := table.LastSeen("host", addrA)
	require.True(t, ok)
	assert.Equal(t, mock.Now(), last)
	assert.Equal(t, 1, table.Len("host"), "one entry per (key, address)")
}

func TestTable_ConcurrentTouchesSameAddress(t *testing.T) {
	table, mock := newMockTable(t)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.Touch("host", addrA)
		}()
	}
	wg.Wait()

	mock.Add(3 * time.Second)
	table.Touch("host", addrA)

	last, ok := table.LastSeen("host", addrA)
	require.True(t, ok)
	assert.Equal(t, mock.Now(), last)
	assert.Equal(t, 1, table.Len("host"))
}

func TestTable_ConcurrentKeys(t *testing.T) {
	table := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("host-%d", i)
			addr := netip.AddrFrom4([4]byte{10, 0, 1, byte(i)})
			for j := 0; j < 100; j++ {
				table.Touch(key, addr)
			}
			table.Sweep(time.Hour)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		assert.Equal(t, 1, table.Len(fmt.Sprintf("host-%d", i)))
	}
}

func TestTable_RemoveAddress(t *testing.T) {
	table, _ := newMockTable(t)
	table.Touch("host", addrA)
	table.Touch("host", addrB)

	assert.False(t, table.RemoveAddress("host", addrA))
	assert.Empty(t, table.Owners(addrA))

	assert.True(t, table.RemoveAddress("host", addrB))
	assert.Equal(t, 0, table.Len("host"))
	assert.True(t, table.RemoveAddress("missing", addrA), "unknown keys are empty")
}

func TestTable_Owners(t *testing.T) {
	table, _ := newMockTable(t)
	assert.Empty(t, table.Owners(addrA))

	table.Touch("second", addrA)
	table.Touch("first", addrA)
	assert.Equal(t, []string{"first", "second"}, table.Owners(addrA), "every holder owns a shared address")

	table.RemoveAddress("first", addrA)
	assert.Equal(t, []string{"second"}, table.Owners(addrA))

	table.RemoveKey("second")
	assert.Empty(t, table.Owners(addrA))
}

func TestTable_RemoveKey(t *testing.T) {
	table, _ := newMockTable(t)
	table.Touch("host", addrB)
	table.Touch("host", addrA)
	table.Touch("other", addrA)

	removed := table.RemoveKey("host")
	assert.Equal(t, []netip.Addr{addrA, addrB}, removed)
	assert.Equal(t, 0, table.Len("host"))

	assert.Equal(t, []string{"other"}, table.Owners(addrA), "other holders keep the address")
	assert.Empty(t, table.Owners(addrB))
	assert.Nil(t, table.RemoveKey("host"))
}

func TestTable_Refresh(t *testing.T) {
	table, mock := newMockTable(t)

	assert.Empty(t, table.Refresh(addrA), "refresh never creates")
	assert.Equal(t, 0, table.Len("host"))

	table.Touch("host", addrA)
	mock.Add(10 * time.Second)

	assert.Equal(t, []string{"host"}, table.Refresh(addrA))
	last, _ := table.LastSeen("host", addrA)
	assert.Equal(t, mock.Now(), last)
}

func TestTable_RefreshSharedAddress(t *testing.T) {
	table, mock := newMockTable(t)
	table.Touch("a", addrA)
	table.Touch("b", addrA)
	mock.Add(10 * time.Second)

	assert.Equal(t, []string{"a", "b"}, table.Refresh(addrA))
	for _, key := range []string{"a", "b"} {
		last, ok := table.LastSeen(key, addrA)
		require.True(t, ok)
		assert.Equal(t, mock.Now(), last, key)
	}

	mock.Add(10 * time.Second)
	emptied, _ := table.Sweep(15 * time.Second)
	assert.Empty(t, emptied, "both holders were refreshed")
}

func TestTable_Sweep(t *testing.T) {
	table, mock := newMockTable(t)

	table.Touch("old", addrA)
	table.Touch("mixed", addrB)
	mock.Add(10 * time.Second)
	table.Touch("mixed", addrC)
	table.Touch("fresh", addrC)
	mock.Add(6 * time.Second)

	emptied, expired := table.Sweep(15 * time.Second)
	assert.Equal(t, []string{"old"}, emptied)
	assert.Equal(t, 2, expired)
	assert.Equal(t, []netip.Addr{addrC}, table.Addresses("mixed"))
	assert.Equal(t, 1, table.Len("fresh"))

	emptied, expired = table.Sweep(15 * time.Second)
	assert.Empty(t, emptied, "sweep is idempotent")
	assert.Zero(t, expired)
}

func TestTable_SweepBoundary(t *testing.T) {
	table, mock := newMockTable(t)

	table.Touch("host", addrA)
	mock.Add(5 * time.Second)
	table.Touch("host", addrA)

	mock.Add(5 * time.Second)
	emptied, _ := table.Sweep(15 * time.Second)
	assert.Empty(t, emptied, "age 5 is below the threshold")

	mock.Add(10 * time.Second)
	emptied, _ = table.Sweep(15 * time.Second)
	assert.Equal(t, []string{"host"}, emptied, "age 15 reaches the threshold")
}
