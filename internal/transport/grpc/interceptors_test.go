package grpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var agendaInfo = &grpc.UnaryServerInfo{FullMethod: fullMethod("CreateBooking")}

func okHandler(ctx context.Context, req any) (any, error) { return "ok", nil }

func TestRequestIDInterceptor_ReusesOrGenerates(t *testing.T) {
	var seen string
	handler := func(ctx context.Context, req any) (any, error) {
		seen = RequestIDFromContext(ctx)
		return nil, nil
	}
	ic := RequestIDInterceptor()

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, " abc "))
	if _, err := ic(ctx, nil, agendaInfo, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if seen != "abc" {
		t.Fatalf("request id = %q, want abc", seen)
	}

	if _, err := ic(context.Background(), nil, agendaInfo, handler); err != nil {
		t.Fatalf("interceptor: %v", err)
	}
	if len(seen) != 32 {
		t.Fatalf("generated request id = %q", seen)
	}
}

func TestTimeoutInterceptor_SetsDeadline(t *testing.T) {
	ic := TimeoutInterceptor(time.Second)
	_, err := ic(context.Background(), nil, agendaInfo, func(ctx context.Context, req any) (any, error) {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > time.Second {
			t.Errorf("deadline = %v, %v", deadline, ok)
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("interceptor: %v", err)
	}
}

func TestAccessTokenInterceptor(t *testing.T) {
	ic := AccessTokenInterceptor("s3cret")
	tests := []struct {
		name   string
		md     metadata.MD
		method string
		want   codes.Code
	}{
		{"valid", metadata.Pairs("authorization", "Bearer s3cret"), agendaInfo.FullMethod, codes.OK},
		{"wrong", metadata.Pairs("authorization", "Bearer nope"), agendaInfo.FullMethod, codes.Unauthenticated},
		{"missing", metadata.MD{}, agendaInfo.FullMethod, codes.Unauthenticated},
		{"health is open", metadata.MD{}, "/grpc.health.v1.Health/Check", codes.OK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := metadata.NewIncomingContext(context.Background(), tt.md)
			_, err := ic(ctx, nil, &grpc.UnaryServerInfo{FullMethod: tt.method}, okHandler)
			if status.Code(err) != tt.want {
				t.Fatalf("code = %s, want %s", status.Code(err), tt.want)
			}
		})
	}

	if _, err := AccessTokenInterceptor("")(context.Background(), nil, agendaInfo, okHandler); err != nil {
		t.Fatalf("disabled token check: %v", err)
	}
}

type fakeCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (f *fakeCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hits == nil {
		f.hits = map[string]int64{}
	}
	f.hits[key]++
	return f.hits[key], nil
}

func TestRateLimitInterceptor_PerActor(t *testing.T) {
	counter := &fakeCounter{}
	ic := RateLimitInterceptor(RateLimit{Counter: counter, Limit: 2, Window: time.Minute}, slog.Default())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := ic(ctx, &CreateBookingRequest{ActorID: "tg:1"}, agendaInfo, okHandler); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := ic(ctx, &CreateBookingRequest{ActorID: "tg:1"}, agendaInfo, okHandler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.ResourceExhausted)
	}
	if _, err := ic(ctx, &CreateBookingRequest{ActorID: "tg:2"}, agendaInfo, okHandler); err != nil {
		t.Fatalf("other actor limited: %v", err)
	}
	if counter.hits["agenda:rl:anonymous|actor:tg:1"] != 3 {
		t.Fatalf("hits = %v", counter.hits)
	}
}

func TestRateLimitInterceptor_CounterFailure(t *testing.T) {
	counter := &fakeCounter{err: errors.New("redis down")}
	ctx := context.Background()

	open := RateLimitInterceptor(RateLimit{Counter: counter, FailOpen: true}, slog.Default())
	if _, err := open(ctx, &PingRequest{}, agendaInfo, okHandler); err != nil {
		t.Fatalf("fail open: %v", err)
	}
	closed := RateLimitInterceptor(RateLimit{Counter: counter}, slog.Default())
	if _, err := closed(ctx, &PingRequest{}, agendaInfo, okHandler); status.Code(err) != codes.Unavailable {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.Unavailable)
	}
}

func TestCallerKeys_ScopeActorToPeer(t *testing.T) {
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 5123}})
	tests := []struct {
		name     string
		ctx      context.Context
		req      any
		wantPeer string
		wantKey  string
	}{
		{"peer only", ctx, &PingRequest{}, "ip:10.0.0.7", "ip:10.0.0.7"},
		{"peer and actor", ctx, &ListMyBookingsRequest{ActorID: " tg:5 "}, "ip:10.0.0.7", "ip:10.0.0.7|actor:tg:5"},
		{"no peer", context.Background(), nil, "anonymous", "anonymous"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peerKey, key := callerKeys(tt.ctx, tt.req)
			if peerKey != tt.wantPeer || key != tt.wantKey {
				t.Fatalf("callerKeys = %q, %q, want %q, %q", peerKey, key, tt.wantPeer, tt.wantKey)
			}
		})
	}
}

func TestRateLimitInterceptor_ActorQuotaIsPerPeer(t *testing.T) {
	counter := &fakeCounter{}
	ic := RateLimitInterceptor(RateLimit{Counter: counter, Limit: 1, Window: time.Minute}, slog.Default())
	from := func(ip string) context.Context {
		return peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: 4000}})
	}

	if _, err := ic(from("10.0.0.1"), &CreateBookingRequest{ActorID: "tg:1"}, agendaInfo, okHandler); err != nil {
		t.Fatalf("first peer: %v", err)
	}
	if _, err := ic(from("10.0.0.1"), &CreateBookingRequest{ActorID: "tg:1"}, agendaInfo, okHandler); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.ResourceExhausted)
	}
	if _, err := ic(from("10.0.0.2"), &CreateBookingRequest{ActorID: "tg:1"}, agendaInfo, okHandler); err != nil {
		t.Fatalf("same actor id from another peer limited: %v", err)
	}
}

func TestRateLimitInterceptor_PeerLimitCapsRotatingActors(t *testing.T) {
	counter := &fakeCounter{}
	ic := RateLimitInterceptor(RateLimit{Counter: counter, Limit: 5, PeerLimit: 3, Window: time.Minute}, slog.Default())
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.9"), Port: 4000}})

	for i := 0; i < 3; i++ {
		req := &CreateBookingRequest{ActorID: fmt.Sprintf("tg:%d", i)}
		if _, err := ic(ctx, req, agendaInfo, okHandler); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	_, err := ic(ctx, &CreateBookingRequest{ActorID: "tg:99"}, agendaInfo, okHandler)
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("code = %s, want %s", status.Code(err), codes.ResourceExhausted)
	}
	if counter.hits["agenda:rl:total:ip:10.0.0.9"] != 4 {
		t.Fatalf("hits = %v", counter.hits)
	}
}
