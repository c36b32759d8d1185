package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"wanderlust/internal/notify"
	"wanderlust/internal/payment"
	"wanderlust/internal/repos"
)

func memdb(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fakeGateway struct {
	mu        sync.Mutex
	n         int
	created   []payment.SessionRequest
	states    map[string]payment.SessionState
	createErr error
	getErr    error
	expireErr error
	gets      int
	expired   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{states: map[string]payment.SessionState{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, req payment.SessionRequest) (payment.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return payment.Session{}, g.createErr
	}
	g.n++
	id := fmt.Sprintf("cs_test_%d", g.n)
	g.created = append(g.created, req)
	g.states[id] = payment.SessionState{ID: id, PaymentStatus: payment.StatusUnpaid}
	return payment.Session{ID: id, URL: "https://pay.test/" + id}, nil
}

func (g *fakeGateway) RetrieveSession(ctx context.Context, id string) (payment.SessionState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	if err := ctx.Err(); err != nil {
		return payment.SessionState{}, err
	}
	if g.getErr != nil {
		return payment.SessionState{}, g.getErr
	}
	st, ok := g.states[id]
	if !ok {
		return payment.SessionState{}, fmt.Errorf("%w: no such session", payment.ErrUnavailable)
	}
	return st, nil
}

func (g *fakeGateway) ExpireSession(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expireErr != nil {
		return g.expireErr
	}
	g.expired = append(g.expired, id)
	st := g.states[id]
	st.Expired = true
	g.states[id] = st
	return nil
}

func (g *fakeGateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.states[id]
	st.PaymentStatus = payment.StatusPaid
	g.states[id] = st
}

func (g *fakeGateway) retrieveCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gets
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Confirmation
	err  error
}

func (n *fakeNotifier) OrderConfirmed(_ context.Context, c notify.Confirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, c)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

var errGatewayDown = fmt.Errorf("%w: connection reset", payment.ErrUnavailable)
