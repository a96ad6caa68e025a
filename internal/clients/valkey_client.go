package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/sentibot/config"
	"github.com/valkey-io/valkey-go"
)

type ValkeyClient struct {
	Client valkey.Client
	opts   valkey.ClientOption
	mu     sync.Mutex
}

func valkeyOptions(cfg config.ValkeyConfig) valkey.ClientOption {
	opts := valkey.ClientOption{
		InitAddress: []string{
			cfg.Address,
		},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		DisableCache:     true,
		SelectDB:         0,
	}

	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}
	return opts
}

func connectValkey(opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}
	return client, nil
}

func NewValkeyClient(cfg config.ValkeyConfig) (*ValkeyClient, error) {
	opts := valkeyOptions(cfg)
	client, err := connectValkey(opts)
	if err != nil {
		return nil, err
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey",
		slog.String("address", cfg.Address))
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed", slog.String("error", err.Error()))
		return
	}

	vc.Client.Close()
	vc.Client = client
	slog.Info("[ValkeyClient] Successfully reconnected to valkey")
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// IncrWindow bumps the counter for key and returns the count inside the
// current window. The window starts with the first request and the counter is
// created and incremented in one MULTI/EXEC, so the expiry is always set.
// It is not retried: a lost reply could otherwise count a request twice.
func (vc *ValkeyClient) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	c := vc.client()
	responses := c.DoMulti(ctx,
		c.B().Multi().Build(),
		c.B().Set().Key(key).Value("0").Nx().ExSeconds(seconds).Build(),
		c.B().Incr().Key(key).Build(),
		c.B().Exec().Build(),
	)
	for _, res := range responses {
		if err := res.Error(); err != nil {
			if isConnectionError(err) {
				vc.recreateClient()
			}
			return 0, fmt.Errorf("[ValkeyClient] incr window %s: %w", key, err)
		}
	}

	replies, err := responses[len(responses)-1].ToArray()
	if err != nil {
		return 0, fmt.Errorf("[ValkeyClient] read transaction reply: %w", err)
	}
	if len(replies) != 2 {
		return 0, fmt.Errorf("[ValkeyClient] unexpected transaction reply length %d", len(replies))
	}
	return replies[1].AsInt64()
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
