package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLoggerWithWriter(&buf, slog.LevelInfo)

	log.Debugf("hidden %d", 1)
	log.Infof("visible %d", 2)
	log.Errorf(errors.New("boom"), "failed %s", "op")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record must be filtered at info level: %s", out)
	}
	if !strings.Contains(out, "visible 2") {
		t.Errorf("info record missing: %s", out)
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("error attribute missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
