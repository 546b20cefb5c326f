package httpsrv

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/infra/auth"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	httphandler "github.com/webitel/im-realtime-service/internal/handler/http"
)

type stats struct{}

func (stats) Stats() model.HubStats   { return model.HubStats{} }
func (stats) OnlineUserIDs() []string { return []string{"alice"} }

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wsStub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	system := httphandler.NewSystemHandler(stats{}, nil, nil, "test")
	api := httphandler.NewAPIHandler(httphandler.Deps{Presence: stats{}}, logger)

	return NewRouter(wsStub, system, api, auth.NewResolver(config.AuthConfig{}), logger)
}

func TestRouter_Mounts(t *testing.T) {
	r := newTestRouter()

	cases := []struct {
		path   string
		header string
		status int
	}{
		{"/ws", "", http.StatusTeapot},
		{"/healthz", "", http.StatusOK},
		{"/stats", "", http.StatusOK},
		{"/api/v1/presence", "", http.StatusUnauthorized},
		{"/api/v1/presence", "alice", http.StatusOK},
		{"/nope", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.header != "" {
			req.Header.Set("X-User-ID", tc.header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.path)
	}
}

func TestServer_StartStop(t *testing.T) {
	s := New(config.HTTPConfig{Addr: "127.0.0.1:0"}, newTestRouter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop(context.Background()))
}

func TestRouter_WebsocketSeesRealIP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen string
	wsStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.RemoteAddr
		w.WriteHeader(http.StatusTeapot)
	})
	system := httphandler.NewSystemHandler(stats{}, nil, nil, "test")
	api := httphandler.NewAPIHandler(httphandler.Deps{Presence: stats{}}, logger)
	r := NewRouter(wsStub, system, api, auth.NewResolver(config.AuthConfig{}), logger)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.9", seen)
}
