package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-wellness/backend/internal/metrics"
	personaModel "github.com/zhouzirui/z-wellness/backend/internal/model/persona"
	chatService "github.com/zhouzirui/z-wellness/backend/internal/service/chat"
	"github.com/zhouzirui/z-wellness/backend/internal/service/conversation"
	profileService "github.com/zhouzirui/z-wellness/backend/internal/service/profile"
	"github.com/zhouzirui/z-wellness/backend/internal/storage/kv"
)

func newTestRouter() http.Handler {
	store := kv.NewMemoryStore()
	chatSvc := chatService.NewService(context.Background(), store, zerolog.Nop())
	profiles := profileService.NewService(store, zerolog.Nop())
	return NewRouter(Deps{
		Personas:   personaModel.NewMemoryStore(personaModel.Seed()),
		Chat:       chatSvc,
		Profiles:   profiles,
		Controller: conversation.NewController(chatSvc, profiles, nil, zerolog.Nop()),
		Logger:     zerolog.Nop(),
	})
}

func TestRouterServesCoreRoutes(t *testing.T) {
	metrics.MustRegister()
	r := newTestRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{method: http.MethodGet, path: "/api/personas", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/profile", want: http.StatusOK},
		{method: http.MethodGet, path: "/api/sessions", want: http.StatusOK},
		{method: http.MethodPost, path: "/api/rituals", want: http.StatusServiceUnavailable},
		{method: http.MethodPost, path: "/api/speech/synthesize", want: http.StatusServiceUnavailable},
		{method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{method: http.MethodOptions, path: "/api/sessions", want: http.StatusNoContent},
	}

	for _, tt := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		if rr.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rr.Code)
		}
	}
}
