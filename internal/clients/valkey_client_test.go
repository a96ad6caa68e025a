package clients

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spacesedan/sentibot/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValkey(t *testing.T) (*ValkeyClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	vc, err := NewValkeyClient(config.ValkeyConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(vc.Close)
	return vc, mr
}

func TestValkeyClient_IncrWindowCountsEachCallOnce(t *testing.T) {
	vc, mr := newTestValkey(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := vc.IncrWindow(ctx, "ratelimit:60:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	value, err := mr.Get("ratelimit:60:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "3", value)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:60:1.2.3.4"))
}

func TestValkeyClient_IncrWindowKeepsFirstExpiry(t *testing.T) {
	vc, mr := newTestValkey(t)
	ctx := context.Background()

	_, err := vc.IncrWindow(ctx, "k", time.Minute)
	require.NoError(t, err)

	mr.FastForward(40 * time.Second)
	_, err = vc.IncrWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, mr.TTL("k"), "later requests do not extend the window")

	mr.FastForward(20 * time.Second)
	got, err := vc.IncrWindow(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "a new window starts after expiry")
}

func TestValkeyClient_IncrWindowError(t *testing.T) {
	vc, mr := newTestValkey(t)

	mr.SetError("LOADING server is loading")
	_, err := vc.IncrWindow(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
