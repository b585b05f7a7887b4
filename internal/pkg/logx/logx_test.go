package logx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	tests := map[string]string{
		"203.0.113.42:5555":          "203.0.113.0",
		"198.51.100.7":               "198.51.100.0",
		"[2001:db8:1:2:3:4:5:6]:443": "2001:db8:1:2::",
		"[::1]:8080":                 "127.0.0.1",
		"127.0.0.1:9000":             "127.0.0.1",
		"not-an-ip":                  "unknown_ip",
		"":                           "unknown_ip",
	}

	for in, want := range tests {
		require.Equal(t, want, anonymizeIP(in), "input %q", in)
	}
}

func TestHelpersWriteFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	Info("relay started", "port", 8080)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "relay started", entry["message"])
	require.EqualValues(t, 8080, entry["port"])
}

func TestOddFieldsAreDropped(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel)

	Warn("dangling", "key")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	require.Equal(t, "dangling", entry["message"])
	require.NotContains(t, entry, "key")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.InfoLevel)

	handler := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotNil(t, zerolog.Ctx(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	r.RemoteAddr = "192.0.2.10:1234"
	handler.ServeHTTP(httptest.NewRecorder(), r)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.EqualValues(t, http.StatusNotFound, entry["status"])
	require.Equal(t, "192.0.2.0", entry["remote_ip"])
	require.Equal(t, "/api/missing", entry["request_uri"])
}
