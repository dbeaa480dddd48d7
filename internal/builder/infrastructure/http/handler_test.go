package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/burger-builder/internal/builder/application"
	"github.com/dmehra2102/burger-builder/internal/builder/domain"
	"github.com/dmehra2102/burger-builder/internal/builder/infrastructure/memory"
)

type stubOrders struct{ orders map[string]domain.Order }

func (s *stubOrders) SaveWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error {
	s.orders[o.ID] = o
	return nil
}

func (s *stubOrders) Get(ctx context.Context, id string) (domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, application.ErrOrderNotFound
	}
	return o, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, memory.NewSessionStore(time.Hour),
		application.WithOrders(&stubOrders{orders: map[string]domain.Order{}}))
	srv := httptest.NewServer(NewHandler(log, svc, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, body := do(t, http.MethodPost, base+"/sessions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHandler_BuildAndOrder(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	base := srv.URL + "/sessions/" + id

	resp, _ := do(t, http.MethodPost, base+"/ingredients/meat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, base+"/ingredients/meat", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, st := do(t, http.MethodDelete, base+"/ingredients/bacon", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "6.6", st["total_price"])
	assert.Equal(t, true, st["purchasable"])
	ings := st["ingredients"].(map[string]any)
	assert.Equal(t, float64(2), ings["meat"])
	assert.Equal(t, float64(0), ings["bacon"])

	resp, st = do(t, http.MethodPost, base+"/purchase", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, st["purchasing"])

	resp, view := do(t, http.MethodGet, base+"/view", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, view["modal_visible"])
	summary := view["summary"].(map[string]any)
	assert.Equal(t, "6.60", summary["total"])

	resp, conf := do(t, http.MethodPost, base+"/purchase/confirm", `{"customer":"Max"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, application.NoticeOrderPlaced, conf["notice"])
	orderID, _ := conf["order_id"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, false, conf["state"].(map[string]any)["purchasing"])

	resp, order := do(t, http.MethodGet, srv.URL+"/orders/"+orderID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Max", order["customer"])
	assert.Len(t, order["items"], 1)
}

func TestHandler_OpenCancel(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/sessions/" + createSession(t, srv.URL)

	do(t, http.MethodPost, base+"/ingredients/salad", "")
	do(t, http.MethodPost, base+"/purchase", "")
	resp, st := do(t, http.MethodDelete, base+"/purchase", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, st["purchasing"])
	assert.Equal(t, "4.5", st["total_price"])
}

func TestHandler_ConfirmWithoutBody(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/sessions/" + createSession(t, srv.URL)

	do(t, http.MethodPost, base+"/purchase", "")
	resp, conf := do(t, http.MethodPost, base+"/purchase/confirm", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, application.NoticeNothingToDo, conf["notice"])
	assert.NotContains(t, conf, "order_id")
}

func TestHandler_Errors(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/sessions/" + createSession(t, srv.URL)

	cases := []struct {
		name   string
		method string
		url    string
		body   string
		status int
	}{
		{"unknown ingredient", http.MethodPost, base + "/ingredients/pickles", "", http.StatusBadRequest},
		{"unknown session", http.MethodGet, srv.URL + "/sessions/nope", "", http.StatusNotFound},
		{"unknown order", http.MethodGet, srv.URL + "/orders/nope", "", http.StatusNotFound},
		{"malformed confirm body", http.MethodPost, base + "/purchase/confirm", `{`, http.StatusBadRequest},
		{"customer too long", http.MethodPost, base + "/purchase/confirm", `{"customer":"` + strings.Repeat("x", 101) + `"}`, http.StatusBadRequest},
		{"event_type header", http.MethodPost, base + "/purchase/confirm", `{"headers":{"event_type":"Whatever"}}`, http.StatusBadRequest},
		{"traceparent header", http.MethodPost, base + "/purchase/confirm", `{"headers":{"traceparent":"00-x"}}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, tc.method, tc.url, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandler_MenuAndDelete(t *testing.T) {
	srv := newTestServer(t)

	resp, menu := do(t, http.MethodGet, srv.URL+"/menu", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "4.00", menu["base_price"])
	items := menu["ingredients"].([]any)
	require.Len(t, items, 4)
	assert.Equal(t, "Salad", items[0].(map[string]any)["label"])

	id := createSession(t, srv.URL)
	resp, _ = do(t, http.MethodDelete, srv.URL+"/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_EventStream(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	base := srv.URL + "/sessions/" + id

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var st domain.OrderState
	require.NoError(t, wsjson.Read(ctx, conn, &st))
	assert.False(t, st.Purchasable)

	do(t, http.MethodPost, base+"/ingredients/cheese", "")
	require.NoError(t, wsjson.Read(ctx, conn, &st))
	assert.Equal(t, 1, st.Ingredients[domain.Cheese])
	assert.True(t, st.Purchasable)
	assert.Equal(t, "4.40", st.TotalPrice.StringFixed(2))

	do(t, http.MethodDelete, base, "")
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
