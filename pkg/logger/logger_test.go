package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, Format: "json"})

	ctx := log.WithOrderID(context.Background(), "order-123")
	ctx = log.WithUserID(ctx, "user-9")

	log.Error(ctx, "checkout failed", pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v (%s)", err, buf.String())
	}
	if entry["order_id"] != "order-123" || entry["user_id"] != "user-9" {
		t.Fatalf("expected context fields; entry=%s", buf.String())
	}
	if entry["error_code"] != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected error_code field; entry=%s", buf.String())
	}
	if _, ok := entry["stack"]; !ok {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, Format: "json", WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected stack on warn when enabled; entry=%s", buf.String())
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, Format: "json"})
	log.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte("\"stack\"")) {
		t.Fatalf("expected no stack on warn by default; entry=%s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"bananas": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.Info(context.Background(), "nothing")
	log.Error(context.TODO(), "nothing", nil)
}
