package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/cloudcli-push/internal/api"
	"github.com/shaharia-lab/cloudcli-push/internal/logger"
	svcmocks "github.com/shaharia-lab/cloudcli-push/internal/service/mocks"
)

const testSecret = "test-secret"

// testHarness bundles the mocks and router used by every test.
type testHarness struct {
	pushSvc *svcmocks.MockPushService
	router  chi.Router
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	pushSvc := new(svcmocks.MockPushService)
	srv := api.New(pushSvc, testSecret, logger.Discard())

	r := chi.NewRouter()
	r.Route("/api", srv.Mount)

	return &testHarness{pushSvc: pushSvc, router: r}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := api.GenerateToken(testSecret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRequest(t *testing.T, method, path string, body any, userID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID))
	}
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}
