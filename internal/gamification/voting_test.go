package gamification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/models"
)

type voteFixture struct {
	store  *memStore
	forum  *fakeForum
	engine *VotingEngine
}

func newVoteFixture(reclaim bool) *voteFixture {
	store := newMemStore()
	store.addTarget("p1")
	store.addTarget("r1")
	forum := newFakeForum()
	forum.authors["p1"] = "author"
	forum.authors["r1"] = "author"
	ledger := newTestLedger(store, forum, nil)
	return &voteFixture{
		store:  store,
		forum:  forum,
		engine: NewVotingEngine(store, forum, ledger, reclaim),
	}
}

func (f *voteFixture) points(uid string) int64 {
	return f.store.aggregate(uid).TotalPoints
}

type voteStep struct {
	value    int
	action   models.VoteAction
	counters models.VoteCounters
	points   int64
}

func TestCastVoteSequence(t *testing.T) {
	tests := []struct {
		name    string
		reclaim bool
		steps   []voteStep
	}{
		{
			name:    "reclaim",
			reclaim: true,
			steps: []voteStep{
				{models.VoteUp, models.VoteCreated, models.VoteCounters{Upvotes: 1}, 3},
				{models.VoteUp, models.VoteRemoved, models.VoteCounters{}, 0},
				{models.VoteUp, models.VoteCreated, models.VoteCounters{Upvotes: 1}, 3},
				{models.VoteDown, models.VoteChanged, models.VoteCounters{Downvotes: 1}, 0},
				{models.VoteUp, models.VoteChanged, models.VoteCounters{Upvotes: 1}, 3},
			},
		},
		{
			name:    "one-way",
			reclaim: false,
			steps: []voteStep{
				{models.VoteUp, models.VoteCreated, models.VoteCounters{Upvotes: 1}, 3},
				{models.VoteUp, models.VoteRemoved, models.VoteCounters{}, 3},
				{models.VoteDown, models.VoteCreated, models.VoteCounters{Downvotes: 1}, 3},
				{models.VoteUp, models.VoteChanged, models.VoteCounters{Upvotes: 1}, 3},
				{models.VoteDown, models.VoteChanged, models.VoteCounters{Downvotes: 1}, 3},
			},
		},
	}

	for _, tt := range tests {
		f := newVoteFixture(tt.reclaim)
		for i, step := range tt.steps {
			res, err := f.engine.CastVote(context.Background(), "voter", "p1", models.TargetPost, step.value)
			if err != nil {
				t.Fatalf("%s step %d: CastVote: %v", tt.name, i, err)
			}
			if res.Action != step.action {
				t.Errorf("%s step %d: action = %s, want %s", tt.name, i, res.Action, step.action)
			}
			if res.Counters != step.counters {
				t.Errorf("%s step %d: counters = %+v, want %+v", tt.name, i, res.Counters, step.counters)
			}
			if got := f.points("author"); got != step.points {
				t.Errorf("%s step %d: author points = %d, want %d", tt.name, i, got, step.points)
			}
		}
	}
}

func TestCastVoteResultValue(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	res, _ := f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteDown)
	if res.Value != models.VoteDown {
		t.Errorf("created vote value = %d, want -1", res.Value)
	}
	res, _ = f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteDown)
	if res.Value != 0 || f.store.voteCount() != 0 {
		t.Errorf("toggled vote value = %d with %d records, want 0 and 0", res.Value, f.store.voteCount())
	}
}

func TestCastVoteReplyAward(t *testing.T) {
	f := newVoteFixture(true)

	if _, err := f.engine.CastVote(context.Background(), "voter", "r1", models.TargetReply, models.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if got := f.points("author"); got != 2 {
		t.Errorf("reply upvote author points = %d, want 2", got)
	}
}

func TestCastVoteValidation(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	tests := []struct {
		voter, target string
		targetType    models.TargetType
		value         int
		want          error
	}{
		{"", "p1", models.TargetPost, 1, ErrUnauthenticated},
		{"voter", "", models.TargetPost, 1, ErrValidation},
		{"voter", "p1", "COMMENT", 1, ErrValidation},
		{"voter", "p1", models.TargetPost, 0, ErrValidation},
		{"voter", "p1", models.TargetPost, 2, ErrValidation},
	}

	for _, tt := range tests {
		_, err := f.engine.CastVote(ctx, tt.voter, tt.target, tt.targetType, tt.value)
		if !errors.Is(err, tt.want) {
			t.Errorf("CastVote(%q, %q, %q, %d) = %v, want %v", tt.voter, tt.target, tt.targetType, tt.value, err, tt.want)
		}
	}
	if n := f.store.voteCount(); n != 0 {
		t.Errorf("vote records after rejected calls = %d, want 0", n)
	}
}

func TestCastVoteMissingTarget(t *testing.T) {
	f := newVoteFixture(true)
	f.forum.authors["ghost"] = "author"

	_, err := f.engine.CastVote(context.Background(), "voter", "ghost", models.TargetPost, models.VoteUp)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("CastVote on missing target = %v, want ErrNotFound", err)
	}
	if n := f.store.voteCount(); n != 0 {
		t.Errorf("vote records after missing target = %d, want 0 (reverted)", n)
	}
	if got := f.points("author"); got != 0 {
		t.Errorf("author points = %d, want 0", got)
	}
}

func TestCastVoteMissingAuthorSkipsAward(t *testing.T) {
	f := newVoteFixture(true)
	f.store.addTarget("orphan")

	res, err := f.engine.CastVote(context.Background(), "voter", "orphan", models.TargetPost, models.VoteUp)
	if err != nil {
		t.Fatalf("CastVote on orphan target: %v", err)
	}
	if res.Counters.Upvotes != 1 {
		t.Errorf("orphan upvotes = %d, want 1", res.Counters.Upvotes)
	}
}

func TestCastVoteCounterFailureReverts(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	if _, err := f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteUp); err != nil {
		t.Fatalf("CastVote: %v", err)
	}

	f.store.countersErr = errors.New("timeout")
	if _, err := f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteDown); err == nil {
		t.Fatal("CastVote with failing counters = nil error, want error")
	}
	v, _ := f.store.FindVote(ctx, "voter", "p1")
	if v == nil || v.Value != models.VoteUp {
		t.Errorf("vote after failed flip = %+v, want the original upvote", v)
	}
	if got := f.points("author"); got != 3 {
		t.Errorf("author points after failed flip = %d, want 3", got)
	}
}

func TestCastVoteCountersNeverNegative(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	// A vote whose counter increment was lost elsewhere.
	f.store.InsertVote(ctx, models.Vote{ID: "v1", TargetID: "p1", TargetType: models.TargetPost, VoterID: "voter", Value: models.VoteUp})

	res, err := f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteUp)
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	if res.Counters.Upvotes != 0 || res.Counters.Downvotes != 0 {
		t.Errorf("counters = %+v, want zeros", res.Counters)
	}
}

func TestCastVoteSelfVote(t *testing.T) {
	f := newVoteFixture(true)

	if _, err := f.engine.CastVote(context.Background(), "author", "p1", models.TargetPost, models.VoteUp); err != nil {
		t.Fatalf("self CastVote: %v", err)
	}
	if got := f.points("author"); got != 3 {
		t.Errorf("self upvote points = %d, want 3", got)
	}
}

func TestCastVoteConcurrentToggles(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.CastVote(ctx, "voter", "p1", models.TargetPost, models.VoteUp); err != nil {
				t.Errorf("CastVote: %v", err)
			}
		}()
	}
	wg.Wait()

	// An even number of toggles lands back on "no vote".
	if n := f.store.voteCount(); n != 0 {
		t.Errorf("vote records = %d, want 0", n)
	}
	if c := f.store.counter("p1"); c != (models.VoteCounters{}) {
		t.Errorf("counters = %+v, want zeros", c)
	}
	if got := f.points("author"); got != 0 {
		t.Errorf("author points = %d, want 0", got)
	}
}

func TestCastVoteManyVoters(t *testing.T) {
	f := newVoteFixture(true)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			voter := "voter-" + string(rune('a'+i))
			if _, err := f.engine.CastVote(ctx, voter, "p1", models.TargetPost, models.VoteUp); err != nil {
				t.Errorf("CastVote(%s): %v", voter, err)
			}
		}()
	}
	wg.Wait()

	if c := f.store.counter("p1"); c.Upvotes != 10 {
		t.Errorf("upvotes = %d, want 10", c.Upvotes)
	}
	if got := f.points("author"); got != 30 {
		t.Errorf("author points = %d, want 30", got)
	}
}
