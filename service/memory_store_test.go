package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"kzcasino/config"
	"kzcasino/events"
	"kzcasino/models"
)

// memoryState is the whole database of the in-memory store
type memoryState struct {
	accounts       map[int64]models.Account
	history        []models.BalanceHistory
	settings       map[string]string
	gameStats      map[string]models.GameStat
	predictions    []models.Prediction
	predictionLogs []models.PredictionLog
	loans          map[int64]models.Loan
	nextID         int64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		accounts:       make(map[int64]models.Account, len(s.accounts)),
		history:        append([]models.BalanceHistory(nil), s.history...),
		settings:       make(map[string]string, len(s.settings)),
		gameStats:      make(map[string]models.GameStat, len(s.gameStats)),
		predictions:    append([]models.Prediction(nil), s.predictions...),
		predictionLogs: append([]models.PredictionLog(nil), s.predictionLogs...),
		loans:          make(map[int64]models.Loan, len(s.loans)),
		nextID:         s.nextID,
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.gameStats {
		c.gameStats[k] = v
	}
	for k, v := range s.loans {
		c.loans[k] = v
	}
	return c
}

// memoryStore is a UnitOfWorkFactory backed by maps. A rollback restores the state
// captured at Begin. Tests drive it from one goroutine at a time.
type memoryStore struct {
	mu        sync.Mutex
	state     *memoryState
	clock     Clock
	published []events.Event
}

func newMemoryStore(clock Clock) *memoryStore {
	return &memoryStore{
		state: &memoryState{
			accounts:  make(map[int64]models.Account),
			settings:  make(map[string]string),
			gameStats: make(map[string]models.GameStat),
			loans:     make(map[int64]models.Loan),
		},
		clock: clock,
	}
}

func (m *memoryStore) Create() UnitOfWork {
	return &memoryUnitOfWork{store: m}
}

// seed creates an account with a balance outside any unit of work
func (m *memoryStore) seed(discordID, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.accounts[discordID] = models.Account{DiscordID: discordID, Balance: balance, CreatedAt: m.clock.Now()}
}

func (m *memoryStore) balance(discordID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[discordID].Balance
}

func (m *memoryStore) account(discordID int64) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[discordID]
}

func (m *memoryStore) loan(id int64) models.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.loans[id]
}

func (m *memoryStore) historyTypes(discordID int64) []models.TransactionType {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TransactionType
	for _, h := range m.state.history {
		if h.DiscordID == discordID {
			out = append(out, h.TransactionType)
		}
	}
	return out
}

func (m *memoryStore) events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Event(nil), m.published...)
}

type memoryUnitOfWork struct {
	store    *memoryStore
	snapshot *memoryState
	pending  []events.Event
	done     bool
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.snapshot = u.store.state.clone()
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.done = true
	u.store.published = append(u.store.published, u.pending...)
	u.pending = nil
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if u.done || u.snapshot == nil {
		return nil
	}
	u.store.mu.Lock()
	defer u.store.mu.Unlock()
	u.store.state = u.snapshot
	u.pending = nil
	u.done = true
	return nil
}

func (u *memoryUnitOfWork) AccountRepository() AccountRepository {
	return &memoryAccounts{store: u.store}
}

func (u *memoryUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return &memoryHistory{store: u.store}
}

func (u *memoryUnitOfWork) SettingRepository() SettingRepository {
	return &memorySettings{store: u.store}
}

func (u *memoryUnitOfWork) GameStatRepository() GameStatRepository {
	return &memoryGameStats{store: u.store}
}

func (u *memoryUnitOfWork) PredictionRepository() PredictionRepository {
	return &memoryPredictions{store: u.store}
}

func (u *memoryUnitOfWork) LoanRepository() LoanRepository {
	return &memoryLoans{store: u.store}
}

func (u *memoryUnitOfWork) EventBus() EventPublisher {
	return publisherFunc(func(e events.Event) { u.pending = append(u.pending, e) })
}

type publisherFunc func(events.Event)

func (f publisherFunc) Publish(e events.Event) { f(e) }

type memoryAccounts struct{ store *memoryStore }

func (r *memoryAccounts) Ensure(ctx context.Context, discordID int64, startBalance int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.state.accounts[discordID]; ok {
		return false, nil
	}
	r.store.state.accounts[discordID] = models.Account{DiscordID: discordID, Balance: startBalance, CreatedAt: r.store.clock.Now()}
	return true, nil
}

func (r *memoryAccounts) GetByDiscordID(ctx context.Context, discordID int64) (*models.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.state.accounts[discordID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memoryAccounts) GetForUpdate(ctx context.Context, discordID int64) (*models.Account, error) {
	return r.GetByDiscordID(ctx, discordID)
}

func (r *memoryAccounts) update(discordID int64, fn func(a *models.Account)) bool {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	a, ok := r.store.state.accounts[discordID]
	if !ok {
		return false
	}
	fn(&a)
	r.store.state.accounts[discordID] = a
	return true
}

func (r *memoryAccounts) AddBalance(ctx context.Context, discordID int64, delta int64) (*models.BalanceChange, error) {
	var change *models.BalanceChange
	r.update(discordID, func(a *models.Account) {
		change = &models.BalanceChange{DiscordID: discordID, Before: a.Balance, After: max(0, a.Balance+delta)}
		a.Balance = change.After
	})
	return change, nil
}

func (r *memoryAccounts) SetBalance(ctx context.Context, discordID int64, amount int64) (*models.BalanceChange, error) {
	var change *models.BalanceChange
	r.update(discordID, func(a *models.Account) {
		change = &models.BalanceChange{DiscordID: discordID, Before: a.Balance, After: max(0, amount)}
		a.Balance = change.After
	})
	return change, nil
}

func (r *memoryAccounts) IncrementStats(ctx context.Context, discordID int64, delta models.StatsDelta) error {
	r.update(discordID, func(a *models.Account) {
		a.GamesPlayed += delta.Games
		a.Wins += delta.Wins
		a.Losses += delta.Losses
	})
	return nil
}

func (r *memoryAccounts) IncrementPvPStats(ctx context.Context, discordID int64, delta models.PvPStatsDelta) error {
	r.update(discordID, func(a *models.Account) {
		a.PvPGames += delta.Games
		a.PvPWins += delta.Wins
		a.PvPLosses += delta.Losses
		a.PvPProfit += delta.Profit
	})
	return nil
}

func (r *memoryAccounts) IncrementBotStats(ctx context.Context, discordID int64, wins, losses int64) error {
	r.update(discordID, func(a *models.Account) {
		a.BotWins += wins
		a.BotLosses += losses
	})
	return nil
}

func (r *memoryAccounts) AddXP(ctx context.Context, discordID int64, amount int64) error {
	r.update(discordID, func(a *models.Account) { a.XP += amount })
	return nil
}

func (r *memoryAccounts) Wipe(ctx context.Context, discordID int64) error {
	r.update(discordID, func(a *models.Account) {
		*a = models.Account{DiscordID: a.DiscordID, CreatedAt: a.CreatedAt}
	})
	return nil
}

func (r *memoryAccounts) WipeAll(ctx context.Context) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, a := range r.store.state.accounts {
		r.store.state.accounts[id] = models.Account{DiscordID: id, CreatedAt: a.CreatedAt}
	}
	return int64(len(r.store.state.accounts)), nil
}

func (r *memoryAccounts) GetTopByBalance(ctx context.Context, limit int) ([]*models.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.Account, 0, len(r.store.state.accounts))
	for _, a := range r.store.state.accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].DiscordID < out[j].DiscordID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memoryHistory struct{ store *memoryStore }

func (r *memoryHistory) Record(ctx context.Context, history *models.BalanceHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.nextID++
	history.ID = r.store.state.nextID
	history.CreatedAt = r.store.clock.Now()
	r.store.state.history = append(r.store.state.history, *history)
	return nil
}

func (r *memoryHistory) GetByUser(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.BalanceHistory
	for i := len(r.store.state.history) - 1; i >= 0 && len(out) < limit; i-- {
		if h := r.store.state.history[i]; h.DiscordID == discordID {
			out = append(out, &h)
		}
	}
	return out, nil
}

func (r *memoryHistory) GetByDateRange(ctx context.Context, discordID int64, from, to time.Time) ([]*models.BalanceHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.BalanceHistory
	for _, h := range r.store.state.history {
		if h.DiscordID == discordID && !h.CreatedAt.Before(from) && !h.CreatedAt.After(to) {
			h := h
			out = append(out, &h)
		}
	}
	return out, nil
}

type memorySettings struct{ store *memoryStore }

func (r *memorySettings) Get(ctx context.Context, key string) (*string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	v, ok := r.store.state.settings[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *memorySettings) GetByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make(map[string]string)
	for k, v := range r.store.state.settings {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (r *memorySettings) Set(ctx context.Context, key, value string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.settings[key] = value
	return nil
}

func (r *memorySettings) Delete(ctx context.Context, key string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	_, ok := r.store.state.settings[key]
	delete(r.store.state.settings, key)
	return ok, nil
}

func (r *memorySettings) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for k := range r.store.state.settings {
		if strings.HasPrefix(k, prefix) {
			delete(r.store.state.settings, k)
			n++
		}
	}
	return n, nil
}

type memoryGameStats struct{ store *memoryStore }

func (r *memoryGameStats) Increment(ctx context.Context, discordID int64, game models.GameName, delta models.GameStatDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := fmt.Sprintf("%d:%s", discordID, game)
	st := r.store.state.gameStats[key]
	st.DiscordID = discordID
	st.Game = game
	st.Games += delta.Games
	st.Wins += delta.Wins
	st.Losses += delta.Losses
	st.Profit += delta.Profit
	r.store.state.gameStats[key] = st
	return nil
}

func (r *memoryGameStats) GetByUser(ctx context.Context, discordID int64) ([]*models.GameStat, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.GameStat
	for _, st := range r.store.state.gameStats {
		if st.DiscordID == discordID {
			st := st
			out = append(out, &st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Game < out[j].Game })
	return out, nil
}

type memoryPredictions struct{ store *memoryStore }

func (r *memoryPredictions) index(predictorID, targetID int64) int {
	for i, p := range r.store.state.predictions {
		if p.PredictorID == predictorID && p.TargetID == targetID {
			return i
		}
	}
	return -1
}

func (r *memoryPredictions) Get(ctx context.Context, predictorID, targetID int64) (*models.Prediction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if i := r.index(predictorID, targetID); i >= 0 {
		p := r.store.state.predictions[i]
		return &p, nil
	}
	return nil, nil
}

func (r *memoryPredictions) Upsert(ctx context.Context, prediction *models.Prediction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if i := r.index(prediction.PredictorID, prediction.TargetID); i >= 0 {
		r.store.state.predictions[i] = *prediction
		return nil
	}
	r.store.state.predictions = append(r.store.state.predictions, *prediction)
	return nil
}

func (r *memoryPredictions) Delete(ctx context.Context, predictorID, targetID int64) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	i := r.index(predictorID, targetID)
	if i < 0 {
		return false, nil
	}
	r.store.state.predictions = append(r.store.state.predictions[:i:i], r.store.state.predictions[i+1:]...)
	return true, nil
}

func (r *memoryPredictions) filter(keep func(p models.Prediction) bool) []*models.Prediction {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Prediction
	for _, p := range r.store.state.predictions {
		if keep(p) {
			p := p
			out = append(out, &p)
		}
	}
	return out
}

func (r *memoryPredictions) GetByPredictor(ctx context.Context, predictorID int64) ([]*models.Prediction, error) {
	return r.filter(func(p models.Prediction) bool { return p.PredictorID == predictorID }), nil
}

func (r *memoryPredictions) GetPredictorIDsByTarget(ctx context.Context, targetID int64) ([]int64, error) {
	var ids []int64
	for _, p := range r.filter(func(p models.Prediction) bool { return p.TargetID == targetID }) {
		ids = append(ids, p.PredictorID)
	}
	return ids, nil
}

func (r *memoryPredictions) GetByTarget(ctx context.Context, targetID int64) ([]*models.Prediction, error) {
	return r.filter(func(p models.Prediction) bool { return p.TargetID == targetID }), nil
}

func (r *memoryPredictions) DeleteByTarget(ctx context.Context, targetID int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.state.predictions[:0:0]
	var n int64
	for _, p := range r.store.state.predictions {
		if p.TargetID == targetID {
			n++
			continue
		}
		kept = append(kept, p)
	}
	r.store.state.predictions = kept
	return n, nil
}

func (r *memoryPredictions) CreateLog(ctx context.Context, entry *models.PredictionLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.nextID++
	entry.ID = r.store.state.nextID
	r.store.state.predictionLogs = append(r.store.state.predictionLogs, *entry)
	return nil
}

func (r *memoryPredictions) GetLogsByUser(ctx context.Context, discordID int64, limit int) ([]*models.PredictionLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.PredictionLog
	for i := len(r.store.state.predictionLogs) - 1; i >= 0 && len(out) < limit; i-- {
		if l := r.store.state.predictionLogs[i]; l.PredictorID == discordID || l.TargetID == discordID {
			out = append(out, &l)
		}
	}
	return out, nil
}

type memoryLoans struct{ store *memoryStore }

func (r *memoryLoans) Create(ctx context.Context, loan *models.Loan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.nextID++
	loan.ID = r.store.state.nextID
	loan.CreatedAt = r.store.clock.Now()
	r.store.state.loans[loan.ID] = *loan
	return nil
}

func (r *memoryLoans) GetByID(ctx context.Context, id int64) (*models.Loan, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.state.loans[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *memoryLoans) GetByIDForUpdate(ctx context.Context, id int64) (*models.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryLoans) Update(ctx context.Context, loan *models.Loan) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.state.loans[loan.ID] = *loan
	return nil
}

func (r *memoryLoans) filter(keep func(l models.Loan) bool) []*models.Loan {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Loan
	for _, l := range r.store.state.loans {
		if keep(l) {
			l := l
			out = append(out, &l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryLoans) GetUsedSlots(ctx context.Context, borrowerID int64) ([]int, error) {
	var slots []int
	for _, l := range r.filter(func(l models.Loan) bool { return l.BorrowerID == borrowerID && l.IsOpen() && l.Slot != nil }) {
		slots = append(slots, *l.Slot)
	}
	return slots, nil
}

func (r *memoryLoans) GetOpenByUser(ctx context.Context, discordID int64) ([]*models.Loan, error) {
	return r.filter(func(l models.Loan) bool { return l.IsOpen() && l.IsParticipant(discordID) }), nil
}

func (r *memoryLoans) GetPendingByLender(ctx context.Context, lenderID int64) ([]*models.Loan, error) {
	return r.filter(func(l models.Loan) bool { return l.Status == models.LoanStatusPending && l.IsLender(lenderID) }), nil
}

func (r *memoryLoans) GetPendingBank(ctx context.Context) ([]*models.Loan, error) {
	return r.filter(func(l models.Loan) bool { return l.Status == models.LoanStatusPending && !l.IsP2P() }), nil
}

func (r *memoryLoans) GetHistoryByUser(ctx context.Context, discordID int64, limit int) ([]*models.Loan, error) {
	out := r.filter(func(l models.Loan) bool { return l.IsTerminal() && l.IsParticipant(discordID) })
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryLoans) GetOverdueUnnotified(ctx context.Context, now time.Time) ([]*models.Loan, error) {
	return r.filter(func(l models.Loan) bool { return l.IsOverdue(now) && l.OverdueNotifiedAt == nil }), nil
}

func (r *memoryLoans) MarkOverdueNotified(ctx context.Context, id int64, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	l, ok := r.store.state.loans[id]
	if !ok || l.OverdueNotifiedAt != nil {
		return false, nil
	}
	l.OverdueNotifiedAt = &at
	r.store.state.loans[id] = l
	return true, nil
}

// fixedClock returns a settable instant
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedRandom replays queued draws, then falls back to fixed values
type scriptedRandom struct {
	floats []float64
	ints   []int
}

func (r *scriptedRandom) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	f := r.floats[0]
	r.floats = r.floats[1:]
	return f
}

func (r *scriptedRandom) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

// staticParams serves the packaged defaults with test overrides
type staticParams struct {
	params *Params
}

func newStaticParams(overrides map[string]string) *staticParams {
	defs, err := config.ParamDefinitions()
	if err != nil {
		panic(err)
	}
	return &staticParams{params: ResolveParams(defs, overrides)}
}

func (p *staticParams) Snapshot(ctx context.Context) (*Params, error) {
	return p.params, nil
}
