package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/auth"
)

type ping struct{}

func callWithHeader(t *testing.T, interceptor connect.UnaryInterceptorFunc, header string) (uuid.UUID, bool, error) {
	t.Helper()

	var got uuid.UUID
	var ok bool
	next := connect.UnaryFunc(func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		got, ok = GetParticipant(ctx)
		return connect.NewResponse(&ping{}), nil
	})

	req := connect.NewRequest(&ping{})
	if header != "" {
		req.Header().Set("Authorization", header)
	}
	_, err := interceptor(next)(context.Background(), req)
	return got, ok, err
}

func TestRequireAuth(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)
	participant := uuid.New()
	token, err := m.Generate(participant)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	got, ok, err := callWithHeader(t, RequireAuth(m), "Bearer "+token)
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if !ok || got != participant {
		t.Errorf("participant = %s (%v), want %s", got, ok, participant)
	}

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer not-a-token"} {
		_, _, err := callWithHeader(t, RequireAuth(m), header)
		var connectErr *connect.Error
		if !errors.As(err, &connectErr) || connectErr.Code() != connect.CodeUnauthenticated {
			t.Errorf("header %q: error = %v, want Unauthenticated", header, err)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	m := auth.NewJWTManager("secret", time.Hour)

	_, ok, err := callWithHeader(t, OptionalAuth(m), "")
	if err != nil || ok {
		t.Errorf("anonymous call: ok=%v err=%v", ok, err)
	}

	_, ok, err = callWithHeader(t, OptionalAuth(m), "Bearer junk")
	if err != nil || ok {
		t.Errorf("bad token call: ok=%v err=%v", ok, err)
	}
}

func TestGetParticipant_Nil(t *testing.T) {
	if _, ok := GetParticipant(WithParticipant(context.Background(), uuid.Nil)); ok {
		t.Error("nil participant reported as authenticated")
	}
}
