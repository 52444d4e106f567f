package transport_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellvd/probefinder/internal/transport"
)

func TestTransportErrorKinds(t *testing.T) {
	cause := errors.New("adapter powered off")

	t.Run("unavailable matches sentinel and unwraps", func(t *testing.T) {
		err := transport.WrapUnavailable("initialize", cause)
		require.True(t, transport.IsUnavailable(err))
		require.False(t, errors.Is(err, transport.ErrFailure))
		require.ErrorIs(t, err, cause)
	})

	t.Run("failure matches sentinel and unwraps", func(t *testing.T) {
		err := transport.WrapFailure("connect", cause)
		require.True(t, errors.Is(err, transport.ErrFailure))
		require.False(t, transport.IsUnavailable(err))
		require.ErrorIs(t, err, cause)
	})

	t.Run("wrapping preserves kind through fmt", func(t *testing.T) {
		err := fmt.Errorf("session: %w", transport.WrapFailure("read", cause))
		require.True(t, errors.Is(err, transport.ErrFailure))
	})

	t.Run("nil passes through", func(t *testing.T) {
		require.NoError(t, transport.WrapFailure("read", nil))
		require.NoError(t, transport.WrapUnavailable("scan", nil))
	})
}

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "short form passes through", in: "FFF0", want: "fff0"},
		{name: "0x prefix stripped", in: "0x2A19", want: "2a19"},
		{name: "sig base collapses to short form", in: "00002a19-0000-1000-8000-00805F9B34FB", want: "2a19"},
		{name: "vendor 128-bit keeps full form", in: "6E400001-B5A3-F393-E0A9-E50E24DCCA9E", want: "6e400001b5a3f393e0a9e50e24dcca9e"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, transport.NormalizeUUID(tt.in))
		})
	}
}
