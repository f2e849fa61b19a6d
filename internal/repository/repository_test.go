package repository

import (
	"context"
	"errors"
	"os"
	"papertrader/internal/engine"
	"papertrader/internal/ledger"
	"papertrader/types"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func TestStoresRoundTrip(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store {
			s, _ := newTestSQLite(t)
			return s
		},
		"memory": func(t *testing.T) Store { return NewMemory() },
	}
	if dsn := os.Getenv("PAPERTRADER_TEST_DATABASE_URL"); dsn != "" {
		stores["postgres"] = func(t *testing.T) Store {
			d, err := NewDatabase(context.Background(), dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = d.Close() })
			return d
		}
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			got, err := store.Load(ctx)
			if name != "postgres" {
				require.NoError(t, err)
				assert.Nil(t, got, "empty store loads nothing")
			}

			want := sampleState("acct-"+name, 0)
			require.NoError(t, store.Save(ctx, want))

			got, err = store.Load(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assertStateEqual(t, want, *got)

			// a second save replaces rows rather than appending
			next := sampleState("acct-"+name, 1)
			require.NoError(t, store.Save(ctx, next))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assertStateEqual(t, next, *got)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestSQLite(t)
	want := sampleState("acct-1", 0)
	require.NoError(t, s.Save(ctx, want))
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assertStateEqual(t, want, *got)
}

func TestSQLiteCorruptDecimal(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSQLite(t)
	require.NoError(t, s.Save(ctx, sampleState("acct-1", 0)))

	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET cash_balance = 'many'`)
	require.NoError(t, err)

	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, "SQLite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "redis", "")
	assert.ErrorIs(t, err, ErrDriverNotSupported)
}

func TestSaverPersistsEngineChanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	account, err := ledger.OpenAccount("acct-saver", decimal.NewFromInt(1000))
	require.NoError(t, err)
	e := engine.NewEngine(account, nil, nil)
	e.AddListener(NewSaver(store, e, nil))

	res := e.ExecuteOrder("AAPL", types.SideTypeBuy, 2, decimal.NewFromInt(100))
	require.True(t, res.Success)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Account.CashBalance.Equal(decimal.NewFromInt(800)))
	require.Len(t, got.Positions, 1)
	assert.Equal(t, int64(2), got.Positions[0].Quantity)

	restored, err := engine.NewEngineFromState(*got, nil, nil)
	require.NoError(t, err)
	assert.True(t, restored.Balance().Equal(decimal.NewFromInt(800)))
}

func TestSaverSkipsRejectedOrders(t *testing.T) {
	store := &countingStore{}
	s := NewSaver(store, stateFunc(func() types.State { return types.State{} }), nil)

	s.OnEvent(engine.Event{Kind: engine.EventOrder, Order: &types.OrderResult{Success: false}})
	assert.Equal(t, 0, store.saves)

	s.OnEvent(engine.Event{Kind: engine.EventOrder, Order: &types.OrderResult{Success: true}})
	s.OnEvent(engine.Event{Kind: engine.EventEquity})
	s.OnEvent(engine.Event{Kind: engine.EventReset})
	assert.Equal(t, 3, store.saves)

	// errors are logged, not propagated
	store.err = errors.New("disk full")
	assert.NotPanics(t, func() { s.OnEvent(engine.Event{Kind: engine.EventReset}) })
}

func TestSaverKeepsLatestStateWhenFirstSaveIsSlow(t *testing.T) {
	ctx := context.Background()
	store := &slowFirstSaveStore{Memory: NewMemory(), delay: 200 * time.Millisecond, started: make(chan struct{})}

	account, err := ledger.OpenAccount("acct-slow", decimal.NewFromInt(1000))
	require.NoError(t, err)
	e := engine.NewEngine(account, nil, nil)
	e.AddListener(NewSaver(store, e, nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.True(t, e.ExecuteOrder("AAA", types.SideTypeBuy, 1, decimal.NewFromInt(10)).Success)
	}()

	<-store.started
	require.True(t, e.ExecuteOrder("BBB", types.SideTypeBuy, 1, decimal.NewFromInt(10)).Success)
	wg.Wait()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Positions, 2)
	assert.Len(t, got.Transactions, 2)
	assert.True(t, got.Account.CashBalance.Equal(decimal.NewFromInt(980)))
}

// Helper functions

type slowFirstSaveStore struct {
	*Memory
	delay   time.Duration
	started chan struct{}
	once    sync.Once
}

func (s *slowFirstSaveStore) Save(ctx context.Context, state types.State) error {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.started)
		time.Sleep(s.delay)
	}
	return s.Memory.Save(ctx, state)
}

type stateFunc func() types.State

func (f stateFunc) Snapshot() types.State { return f() }

type countingStore struct {
	saves int
	err   error
}

func (c *countingStore) Load(context.Context) (*types.State, error) { return nil, nil }
func (c *countingStore) Save(context.Context, types.State) error {
	c.saves++
	return c.err
}
func (c *countingStore) Close() error { return nil }

func sampleState(accountID string, variant int) types.State {
	base := time.Date(2025, 6, 2, 13, 30, 0, 0, time.UTC)
	d := decimal.RequireFromString

	state := types.State{
		Account: types.Account{ID: accountID, CashBalance: d("98765.4321")},
		Positions: []types.Position{
			{Symbol: "AAPL", Quantity: 15, AverageCost: d("103.3333333333333333")},
			{Symbol: "MSFT", Quantity: 3, AverageCost: d("410.25")},
		},
		Transactions: []types.Transaction{
			{ID: "01J0000000000000000000000C", Symbol: "AAPL", Side: types.SideTypeSell, Type: types.TypeMarket, Quantity: 5, Price: d("120"), Total: d("600"), RealizedPnL: d("83.3333333333333335"), Timestamp: base.Add(2 * time.Minute), Status: types.StatusFilled},
			{ID: "01J0000000000000000000000B", Symbol: "AAPL", Side: types.SideTypeBuy, Type: types.TypeMarket, Quantity: 20, Price: d("103.3333333333333333"), Total: d("2066.666666666666666"), Timestamp: base.Add(time.Minute), Status: types.StatusFilled},
			{ID: "01J0000000000000000000000A", Symbol: "MSFT", Side: types.SideTypeBuy, Type: types.TypeMarket, Quantity: 3, Price: d("410.25"), Total: d("1230.75"), Timestamp: base, Status: types.StatusFilled},
		},
		RealizedPnL: d("83.3333333333333335"),
		EquityCurve: []types.EquitySnapshot{
			{Timestamp: base, Value: d("100000")},
			{Timestamp: base.Add(time.Minute), Value: d("100012.5")},
		},
	}
	if variant == 1 {
		state.Account.CashBalance = d("1")
		state.Positions = state.Positions[1:]
		state.Transactions = state.Transactions[2:]
		state.RealizedPnL = decimal.Zero
		state.EquityCurve = append(state.EquityCurve, types.EquitySnapshot{Timestamp: base.Add(time.Hour), Value: d("99000")})
	}
	return state
}

func assertStateEqual(t *testing.T, want, got types.State) {
	t.Helper()

	assert.Equal(t, want.Account.ID, got.Account.ID)
	assertDecEqual(t, want.Account.CashBalance, got.Account.CashBalance)
	assertDecEqual(t, want.RealizedPnL, got.RealizedPnL)

	require.Len(t, got.Positions, len(want.Positions))
	for i := range want.Positions {
		assert.Equal(t, want.Positions[i].Symbol, got.Positions[i].Symbol)
		assert.Equal(t, want.Positions[i].Quantity, got.Positions[i].Quantity)
		assertDecEqual(t, want.Positions[i].AverageCost, got.Positions[i].AverageCost)
	}

	require.Len(t, got.Transactions, len(want.Transactions))
	for i := range want.Transactions {
		w, g := want.Transactions[i], got.Transactions[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Symbol, g.Symbol)
		assert.Equal(t, w.Side, g.Side)
		assert.Equal(t, w.Type, g.Type)
		assert.Equal(t, w.Status, g.Status)
		assert.Equal(t, w.Quantity, g.Quantity)
		assertDecEqual(t, w.Price, g.Price)
		assertDecEqual(t, w.Total, g.Total)
		assertDecEqual(t, w.RealizedPnL, g.RealizedPnL)
		assert.True(t, w.Timestamp.Equal(g.Timestamp), "timestamp %s != %s", g.Timestamp, w.Timestamp)
	}

	require.Len(t, got.EquityCurve, len(want.EquityCurve))
	for i := range want.EquityCurve {
		assert.True(t, want.EquityCurve[i].Timestamp.Equal(got.EquityCurve[i].Timestamp))
		assertDecEqual(t, want.EquityCurve[i].Value, got.EquityCurve[i].Value)
	}
}

func assertDecEqual(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Equal(got), "got %s, want %s", got, want)
}
