package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"wanderlust/internal/cart"
	"wanderlust/internal/config"
	"wanderlust/internal/http/handlers"
	"wanderlust/internal/notify"
	"wanderlust/internal/payment"
	"wanderlust/internal/repos"
)

type testApp struct {
	app      *fiber.App
	db       *sqlx.DB
	deps     *handlers.Deps
	gw       *stubGateway
	notifier *countingNotifier
	carts    *cart.MemoryStorage
}

func testConfig() config.Config {
	return config.Config{
		DBDSN:   ":memory:",
		BaseURL: "https://shop.test",
		Pricing: config.PricingConfig{FlatShipping: "10", FreeShippingThreshold: "100", VATRate: "0.10"},
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := testConfig()
	db, err := repos.OpenDB(cfg.DBDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ta := &testApp{db: db, gw: newStubGateway(), notifier: &countingNotifier{}, carts: cart.NewMemoryStorage()}
	ta.deps, err = handlers.NewDeps(db, cfg, ta.gw, ta.notifier, ta.carts)
	require.NoError(t, err)

	ta.app = fiber.New(fiber.Config{
		Views:        html.New("../../web/templates", ".html"),
		ErrorHandler: handlers.ErrorHandler,
		BodyLimit:    1 << 20,
	})
	ta.app.Use(requestid.New())
	ta.deps.Mount(ta.app)
	return ta
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	StatusCode int             `json:"statusCode"`
}

// call sends a request with an optional JSON body and the given cookies.
func (ta *testApp) call(t *testing.T, method, target string, body any, cookies ...*http.Cookie) (*http.Response, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), "body=%s", raw)
		require.Equal(t, resp.StatusCode, env.StatusCode)
	}
	return resp, env
}

func (ta *testApp) login(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp, env := ta.call(t, "POST", "/auth/login", map[string]string{"email": email, "password": "Passw0rd!"})
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Message)
	c := cookie(resp, "sid")
	require.NotNil(t, c)
	return c
}

func cookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, raw json.RawMessage, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, into), "data=%s", raw)
}

type stubGateway struct {
	mu      sync.Mutex
	n       int
	states  map[string]payment.SessionState
	created []payment.SessionRequest
	down    bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{states: map[string]payment.SessionState{}}
}

func (g *stubGateway) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return payment.Session{}, fmt.Errorf("%w: stripe said no (req_8842 secret)", payment.ErrUnavailable)
	}
	g.n++
	id := fmt.Sprintf("cs_test_h%d", g.n)
	g.created = append(g.created, req)
	g.states[id] = payment.SessionState{ID: id, PaymentStatus: payment.StatusUnpaid}
	return payment.Session{ID: id, URL: "https://pay.test/" + id}, nil
}

func (g *stubGateway) RetrieveSession(_ context.Context, id string) (payment.SessionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return payment.SessionState{}, fmt.Errorf("%w: timeout", payment.ErrUnavailable)
	}
	return g.states[id], nil
}

func (g *stubGateway) ExpireSession(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.states[id]
	st.Expired = true
	g.states[id] = st
	return nil
}

func (g *stubGateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.states[id]
	st.PaymentStatus = payment.StatusPaid
	g.states[id] = st
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) OrderConfirmed(context.Context, notify.Confirmation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return nil
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedWriter struct {
	mu sync.Mutex
	w  bytes.Buffer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs swaps the std logger output while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var lw lockedWriter
	oldW, oldFlags := log.Writer(), log.Flags()
	log.SetOutput(&lw)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(lw.w.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func hasAction(entries []logEntry, action string) bool {
	for _, e := range entries {
		if e.Action == action {
			return true
		}
	}
	return false
}
