package grpc

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey carries the request id in both directions.
const RequestIDMetadataKey = "x-request-id"

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// RequestIDInterceptor reuses the caller's x-request-id or generates one,
// stores it in the context and echoes it in the response headers.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		id := firstMetadata(ctx, RequestIDMetadataKey)
		if id == "" {
			id = NewRequestID()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(WithRequestID(ctx, id), req)
	}
}

// TimeoutInterceptor bounds every call by d unless the caller set a tighter deadline.
func TimeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

// AccessTokenInterceptor requires "authorization: Bearer <token>" on agenda
// calls. An empty token disables the check. Other services, such as health,
// are not guarded.
func AccessTokenInterceptor(token string) grpc.UnaryServerInterceptor {
	want := []byte(token)
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if token == "" || !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		got, ok := strings.CutPrefix(firstMetadata(ctx, "authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), want) != 1 {
			return nil, status.Error(codes.Unauthenticated, "invalid access token")
		}
		return handler(ctx, req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(key)
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// WindowCounter counts hits for key in the current fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

var redisFixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

type RedisWindowCounter struct {
	rdb redis.Scripter
}

func NewRedisWindowCounter(rdb redis.Scripter) *RedisWindowCounter {
	return &RedisWindowCounter{rdb: rdb}
}

func (c *RedisWindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = time.Minute.Milliseconds()
	}
	res, err := redisFixedWindowScript.Run(ctx, c.rdb, []string{key}, ms).Result()
	if err != nil {
		return 0, err
	}
	switch v := res.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected redis script result type %T", res)
	}
}

// RateLimit allows Limit agenda calls per caller in each Window. A caller is
// the peer address plus the actor_id it sends, so an actor id only spends the
// quota of requests arriving from the same peer. PeerLimit, when set, caps
// all calls from one peer regardless of actor_id.
type RateLimit struct {
	Counter   WindowCounter
	Limit     int
	PeerLimit int
	Window    time.Duration
	Prefix    string
	FailOpen  bool
}

type windowCheck struct {
	key   string
	limit int
}

func RateLimitInterceptor(rl RateLimit, log *slog.Logger) grpc.UnaryServerInterceptor {
	if rl.Limit <= 0 {
		rl.Limit = 60
	}
	if rl.Window <= 0 {
		rl.Window = time.Minute
	}
	if rl.Prefix == "" {
		rl.Prefix = "agenda:rl"
	}
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if rl.Counter == nil || !strings.HasPrefix(info.FullMethod, "/"+ServiceName+"/") {
			return handler(ctx, req)
		}
		peerKey, key := callerKeys(ctx, req)
		checks := []windowCheck{{key: rl.Prefix + ":" + key, limit: rl.Limit}}
		if rl.PeerLimit > 0 {
			checks = append(checks, windowCheck{key: rl.Prefix + ":total:" + peerKey, limit: rl.PeerLimit})
		}
		for _, c := range checks {
			count, err := rl.Counter.Incr(ctx, c.key, rl.Window)
			if err != nil {
				log.Warn("rate limiter error", slog.Any("err", err), slog.String("method", info.FullMethod))
				if rl.FailOpen {
					return handler(ctx, req)
				}
				return nil, status.Error(codes.Unavailable, "rate limiter unavailable")
			}
			if count > int64(c.limit) {
				log.Info("rate limit exceeded", slog.String("key", c.key), slog.String("method", info.FullMethod))
				return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
			}
		}
		return handler(ctx, req)
	}
}

// callerKeys returns the peer key and the per-caller key derived from it.
func callerKeys(ctx context.Context, req any) (peerKey, key string) {
	peerKey = "anonymous"
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		host := p.Addr.String()
		if i := strings.LastIndexByte(host, ':'); i > 0 {
			host = host[:i]
		}
		peerKey = "ip:" + host
	}
	key = peerKey
	if r, ok := req.(actorRequest); ok {
		if id := strings.TrimSpace(r.actor()); id != "" {
			key = peerKey + "|actor:" + id
		}
	}
	return peerKey, key
}
