package ringchan_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellvd/probefinder/internal/ringchan"
)

func TestSendDropsOldestWhenFull(t *testing.T) {
	r := ringchan.New[int](3)
	for i := 1; i <= 5; i++ {
		r.Send(i)
	}

	require.Equal(t, int64(2), r.Dropped())
	require.Equal(t, 3, r.Len())

	var got []int
	for i := 0; i < 3; i++ {
		got = append(got, <-r.C())
	}
	require.Equal(t, []int{3, 4, 5}, got)
}

func TestTrySendRefusesWhenFull(t *testing.T) {
	r := ringchan.New[string](1)
	require.True(t, r.TrySend("a"))
	require.False(t, r.TrySend("b"))
	require.Equal(t, "a", <-r.C())
}

func TestCloseEndsRange(t *testing.T) {
	r := ringchan.New[int](2)
	r.Send(1)
	r.Close()

	var got []int
	for v := range r.C() {
		got = append(got, v)
	}
	require.Equal(t, []int{1}, got)
}

func TestNewPanicsOnZeroCapacity(t *testing.T) {
	require.Panics(t, func() { ringchan.New[int](0) })
}
