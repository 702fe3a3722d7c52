package gamification

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

// memStore is an in-memory Store with the same compare-and-set semantics as
// PostgresStore.
type memStore struct {
	mu       sync.Mutex
	aggs     map[string]*models.UserGamification
	votes    map[string]models.Vote // voter|target
	txs      []models.PointTransaction
	counters map[string]*models.VoteCounters
	claims   map[string]string // activity|target -> uid

	// failure injection
	appendErr   error
	countersErr error
	saveErr     error
	conflicts   int // SaveAggregate reports ErrConflict this many times
	saves       int
}

func newMemStore() *memStore {
	return &memStore{
		aggs:     make(map[string]*models.UserGamification),
		votes:    make(map[string]models.Vote),
		counters: make(map[string]*models.VoteCounters),
		claims:   make(map[string]string),
	}
}

func voteKey(voterID, targetID string) string { return voterID + "|" + targetID }

func (s *memStore) addTarget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id] = &models.VoteCounters{}
}

func (s *memStore) seed(g models.UserGamification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.Level == 0 {
		g.Level = 1
	}
	if g.Badges == nil {
		g.Badges = []string{}
	}
	s.aggs[g.UID] = g.Clone()
}

func (s *memStore) aggregate(uid string) models.UserGamification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.aggs[uid]; ok {
		return *g.Clone()
	}
	return models.UserGamification{}
}

func (s *memStore) counter(id string) models.VoteCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[id]; ok {
		return *c
	}
	return models.VoteCounters{}
}

func (s *memStore) voteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

func (s *memStore) transactions() []models.PointTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.txs)
}

func (s *memStore) GetAggregate(_ context.Context, uid string) (*models.UserGamification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.aggs[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return g.Clone(), nil
}

func (s *memStore) GetOrCreateAggregate(_ context.Context, uid string) (*models.UserGamification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.aggs[uid]
	if !ok {
		now := time.Now().UTC()
		g = &models.UserGamification{UID: uid, Level: 1, Badges: []string{}, CreatedAt: now, UpdatedAt: now}
		s.aggs[uid] = g
	}
	return g.Clone(), nil
}

func (s *memStore) SaveAggregate(_ context.Context, g *models.UserGamification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return ErrConflict
	}
	cur, ok := s.aggs[g.UID]
	if !ok || cur.Version != g.Version {
		return ErrConflict
	}
	next := g.Clone()
	next.Badges = cur.Badges
	next.Version++
	s.aggs[g.UID] = next
	g.Version++
	return nil
}

func (s *memStore) AddBadges(_ context.Context, uid string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.aggs[uid]
	if !ok {
		return ErrNotFound
	}
	g.AddBadges(ids...)
	return nil
}

func (s *memStore) AppendTransaction(_ context.Context, tx models.PointTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.txs = append(s.txs, tx)
	return nil
}

func (s *memStore) ListTransactions(_ context.Context, uid string, limit int) ([]models.PointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PointTransaction
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txs[i].UID == uid {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *memStore) TopAggregates(_ context.Context, limit int) ([]models.UserGamification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserGamification, 0, len(s.aggs))
	for _, g := range s.aggs {
		out = append(out, *g.Clone())
	}
	// Ties stay in map order.
	slices.SortFunc(out, func(a, b models.UserGamification) int {
		return cmp.Compare(b.TotalPoints, a.TotalPoints)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountAhead(_ context.Context, points int64, uid string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, g := range s.aggs {
		if g.TotalPoints > points || (g.TotalPoints == points && g.UID < uid) {
			n++
		}
	}
	return n, nil
}

func (s *memStore) FindVote(_ context.Context, voterID, targetID string) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[voteKey(voterID, targetID)]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *memStore) InsertVote(_ context.Context, v models.Vote) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := voteKey(v.VoterID, v.TargetID)
	if _, ok := s.votes[k]; ok {
		return false, nil
	}
	s.votes[k] = v
	return true, nil
}

func (s *memStore) DeleteVote(_ context.Context, id string, value int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.votes {
		if v.ID == id && v.Value == value {
			delete(s.votes, k)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpdateVoteValue(_ context.Context, id string, from, to int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.votes {
		if v.ID == id && v.Value == from {
			v.Value = to
			s.votes[k] = v
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AdjustCounters(_ context.Context, targetID string, t models.TargetType, dUp, dDown int) (models.VoteCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countersErr != nil {
		return models.VoteCounters{}, s.countersErr
	}
	c, ok := s.counters[targetID]
	if !ok {
		return models.VoteCounters{}, fmt.Errorf("%s %s: %w", t, targetID, ErrNotFound)
	}
	c.Upvotes = max(0, c.Upvotes+dUp)
	c.Downvotes = max(0, c.Downvotes+dDown)
	return *c, nil
}

func (s *memStore) ClaimActivity(_ context.Context, a Activity, targetID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(a) + "|" + targetID
	if _, ok := s.claims[k]; ok {
		return false, nil
	}
	s.claims[k] = uid
	return true, nil
}

func (s *memStore) ReleaseActivity(_ context.Context, a Activity, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, string(a)+"|"+targetID)
	return nil
}

func (s *memStore) claimCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

// fakeForum maps target ids to authors, replies to their helpful mark and
// users to image-post counts.
type fakeForum struct {
	mu         sync.Mutex
	authors    map[string]string
	helpful    map[string]bool
	images     map[string]int
	imageErr   error
	imageCalls int
}

func newFakeForum() *fakeForum {
	return &fakeForum{
		authors: make(map[string]string),
		helpful: make(map[string]bool),
		images:  make(map[string]int),
	}
}

func (f *fakeForum) AuthorOf(_ context.Context, targetID string, _ models.TargetType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.authors[targetID]
	if !ok {
		return "", ErrNotFound
	}
	return a, nil
}

func (f *fakeForum) IsHelpful(_ context.Context, replyID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.authors[replyID]; !ok {
		return false, ErrNotFound
	}
	return f.helpful[replyID], nil
}

func (f *fakeForum) ImagePostCount(_ context.Context, uid string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageCalls++
	if f.imageErr != nil {
		return 0, f.imageErr
	}
	return f.images[uid], nil
}

type fakeProfiles map[string]models.Profile

func (p fakeProfiles) Profile(_ context.Context, uid string) (models.Profile, error) {
	pr, ok := p[uid]
	if !ok {
		return models.Profile{}, errors.New("profile missing")
	}
	return pr, nil
}

// recordingNotifier keeps every notification for assertions.
type recordingNotifier struct {
	mu  sync.Mutex
	got []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, note)
}

func (n *recordingNotifier) ofType(typ string) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, note := range n.got {
		if note.Type == typ {
			out = append(out, note)
		}
	}
	return out
}

// fixedClock returns a settable clock for streak and timestamp tests.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newTestLedger(store Store, forum Forum, notifier Notifier) *Ledger {
	return NewLedger(store, forum, MustLevelSystem(DefaultLevelThresholds), MustBadgeCatalog(DefaultBadges), notifier)
}
