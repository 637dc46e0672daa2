package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/directory"
	"github.com/dkeye/Collab/internal/domain"
	"github.com/gin-gonic/gin"
)

type brokenDirectory struct{ directory.Directory }

func (brokenDirectory) List(context.Context) ([]directory.RoomInfo, error) {
	return nil, errors.New("connection refused")
}

func (brokenDirectory) Get(context.Context, domain.RoomID) (directory.RoomInfo, error) {
	return directory.RoomInfo{}, errors.New("connection refused")
}

func newEngine(dir directory.Directory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	o := orch.New(domain.DefaultOptions())
	o.Lookup = dir
	(&Handlers{Orch: o, Directory: dir}).Register(r.Group("/api"))
	return r
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestRoomIDEndpoint(t *testing.T) {
	mem := directory.NewMemory()
	r := newEngine(mem)

	w := serve(r, http.MethodGet, "/api/room-id")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body["roomId"]) != 6 {
		t.Fatalf("unexpected id %q", body["roomId"])
	}
}

func TestDirectoryFailureIsUnavailable(t *testing.T) {
	r := newEngine(brokenDirectory{})

	if w := serve(r, http.MethodGet, "/api/rooms"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("list: expected 503, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/rooms/ROOM01"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("get: expected 503, got %d", w.Code)
	}
}

func TestMissingRoomIsNotFound(t *testing.T) {
	r := newEngine(directory.NewMemory())
	w := serve(r, http.MethodGet, "/api/rooms/NOPE00")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
