package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/helpy/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/rma-service/internal/handler"
	"github.com/psds-microservice/rma-service/internal/logger"
	"github.com/psds-microservice/rma-service/internal/model"
	"github.com/psds-microservice/rma-service/internal/teams"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := handler.RegisterValidators(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type okDB struct{}

func (okDB) Ping(context.Context) error { return nil }

type emptyProcessor struct{}

func (emptyProcessor) Process(context.Context, string, string) (*model.RMATicket, error) {
	return &model.RMATicket{}, nil
}

func (emptyProcessor) List(context.Context, int, int) ([]model.RMATicket, int64, error) {
	return []model.RMATicket{}, 0, nil
}

func (emptyProcessor) GetByNumber(_ context.Context, n string) (*model.RMATicket, error) {
	return &model.RMATicket{RMANumber: n}, nil
}

func (emptyProcessor) DeleteByNumber(context.Context, string) (bool, error) {
	return true, nil
}

type noSearch struct{}

func (noSearch) SearchDevice(_ context.Context, id, _ string) teams.DeviceSearchResult {
	return teams.DeviceSearchResult{DeviceID: id}
}

func newTestRouter() http.Handler {
	return New(Deps{
		RMA:   handler.NewRMAHandler(emptyProcessor{}, nil, false),
		Teams: handler.NewTeamsHandler(noSearch{}),
		DB:    okDB{},
		Log:   logger.Discard(),
	})
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestRouter_Routes(t *testing.T) {
	h := newTestRouter()

	tests := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, paths.PathHealth, http.StatusOK},
		{http.MethodGet, paths.PathReady, http.StatusOK},
		{http.MethodGet, "/api/v1/rma", http.StatusOK},
		{http.MethodGet, "/api/v1/rma/15", http.StatusOK},
		{http.MethodDelete, "/api/v1/rma/15", http.StatusOK},
		{http.MethodPost, "/api/v1/rma/process", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/teams/search", http.StatusBadRequest},
		{http.MethodPut, "/api/v1/rma/15", http.StatusNotFound},
		{http.MethodGet, "/api/v1/tickets", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.status, serve(h, tt.method, tt.target).Code)
		})
	}
}

func TestRouter_Swagger(t *testing.T) {
	h := newTestRouter()

	w := serve(h, http.MethodGet, paths.PathSwagger)
	assert.Equal(t, http.StatusFound, w.Code)

	w = serve(h, http.MethodGet, paths.PathSwagger+"/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/api/v1/rma/process")
}
