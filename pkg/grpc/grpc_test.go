package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Event-Matching-Platform/pkg/errors"
)

type echo struct {
	N int `json:"n"`
}

func startServer(t *testing.T) string {
	t.Helper()
	s := NewServer(time.Second)
	s.Register("Echo.Double", func(_ context.Context, raw json.RawMessage) (any, error) {
		var in echo
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
		if in.N < 0 {
			return nil, apperrors.Invalidf("negative %d", in.N)
		}
		return echo{N: in.N * 2}, nil
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.ServeListener(ln) }()
	t.Cleanup(s.Stop)
	return ln.Addr().String()
}

func TestCallRoundTrip(t *testing.T) {
	c, err := Dial(startServer(t))
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out echo
	require.NoError(t, c.Call(ctx, "Echo.Double", echo{N: 21}, &out))
	assert.Equal(t, 42, out.N)

	err = c.Call(ctx, "Echo.Double", echo{N: -1}, &out)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	err = c.Call(ctx, "Echo.Missing", echo{}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown method")
}
