package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigErrors(t *testing.T) {
	notFound := &ErrConfigNotFound{Path: "/tmp/config.yaml"}
	if !strings.Contains(notFound.Error(), "config file not found") {
		t.Fatalf("unexpected error message: %s", notFound.Error())
	}
	if !strings.Contains(notFound.Error(), notFound.Path) {
		t.Fatalf("expected path in error message: %s", notFound.Error())
	}

	base := errors.New("bad yaml")
	parse := &ErrConfigParse{Err: base}
	if !strings.Contains(parse.Error(), "failed to parse YAML") {
		t.Fatalf("unexpected parse message: %s", parse.Error())
	}
	if !errors.Is(parse, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestKeyMaterialError(t *testing.T) {
	base := errors.New("no such file")
	km := &ErrKeyMaterial{Path: "/certs/private_key.pem", Err: base}
	if !strings.Contains(km.Error(), "unusable key material") {
		t.Fatalf("unexpected message: %s", km.Error())
	}
	if !errors.Is(km, base) {
		t.Fatalf("expected unwrap to base error")
	}

	short := &ErrKeyMaterial{Path: "/certs/symmetric.key", Reason: "expected 16/24/32 bytes, got 7"}
	if !strings.Contains(short.Error(), "got 7") {
		t.Fatalf("expected reason in message: %s", short.Error())
	}
}

func TestAuthRequiredError(t *testing.T) {
	authErr := &ErrAuthRequired{Reason: "no cached credential"}
	if !strings.Contains(authErr.Error(), "authorization required") {
		t.Fatalf("unexpected message: %s", authErr.Error())
	}

	base := &ErrAPIRequest{Status: 401, Body: "invalid_grant"}
	wrapped := &ErrAuthRequired{Reason: "refresh rejected", Err: base}
	var apiErr *ErrAPIRequest
	if !errors.As(wrapped, &apiErr) {
		t.Fatalf("expected ErrAPIRequest inside ErrAuthRequired")
	}
	if apiErr.Status != 401 {
		t.Fatalf("expected status 401, got %d", apiErr.Status)
	}
}

func TestAPIRequestError(t *testing.T) {
	apiErr := &ErrAPIRequest{Status: 503, Body: "upstream down"}
	if !strings.Contains(apiErr.Error(), "503") {
		t.Fatalf("expected status in message: %s", apiErr.Error())
	}
	if !strings.Contains(apiErr.Error(), "upstream down") {
		t.Fatalf("expected body in message: %s", apiErr.Error())
	}
}

func TestProtocolError(t *testing.T) {
	base := errors.New("truncated ciphertext")
	protoErr := &ErrProtocol{Operation: "decrypt response", Err: base}
	if !strings.Contains(protoErr.Error(), "decrypt response") {
		t.Fatalf("expected operation in message: %s", protoErr.Error())
	}
	if !errors.Is(protoErr, base) {
		t.Fatalf("expected unwrap to base error")
	}
}

func TestDatabaseErrors(t *testing.T) {
	base := errors.New("db")

	open := &ErrDatabaseOpen{Path: "/tmp/db.sqlite", Err: base}
	if !strings.Contains(open.Error(), "failed to open database") {
		t.Fatalf("unexpected message: %s", open.Error())
	}
	if !errors.Is(open, base) {
		t.Fatalf("expected unwrap to base error")
	}

	query := &ErrDatabaseQuery{Operation: "insert transaction", Err: base}
	if !strings.Contains(query.Error(), "insert transaction") {
		t.Fatalf("expected operation in message: %s", query.Error())
	}
}
