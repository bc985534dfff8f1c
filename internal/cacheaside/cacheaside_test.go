package cacheaside

import (
	"context"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind string
	name string
	op   string
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingRecorder) add(e event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingRecorder) Hit(_ context.Context, name string)  { r.add(event{kind: "hit", name: name}) }
func (r *recordingRecorder) Miss(_ context.Context, name string) { r.add(event{kind: "miss", name: name}) }
func (r *recordingRecorder) Failure(_ context.Context, name, op string, _ error) {
	r.add(event{kind: "failure", name: name, op: op})
}

// fakeStore counts every step of a Loader.
type fakeStore struct {
	cached   []int
	present  bool
	getErr   error
	setErr   error
	fetched  []int
	fetchErr error

	gets, fetches, sets int
	stored              []int
}

func (s *fakeStore) loader() Loader[[]int] {
	return Loader[[]int]{
		Name: "numbers",
		Get: func(context.Context) ([]int, bool, error) {
			s.gets++
			return s.cached, s.present, s.getErr
		},
		Fetch: func(context.Context) ([]int, error) {
			s.fetches++
			return s.fetched, s.fetchErr
		},
		Set: func(_ context.Context, v []int) error {
			s.sets++
			s.stored = v
			return s.setErr
		},
	}
}

var errBackend = errors.New("backend down")

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		store       *fakeStore
		want        []int
		wantErr     error
		wantFetches int
		wantSets    int
		wantEvents  []event
	}{
		{
			name:        "hit skips fetch",
			store:       &fakeStore{cached: []int{1, 2}, present: true, fetched: []int{9}},
			want:        []int{1, 2},
			wantFetches: 0,
			wantSets:    0,
			wantEvents:  []event{{kind: "hit", name: "numbers"}},
		},
		{
			name:        "miss fetches and populates",
			store:       &fakeStore{fetched: []int{3}},
			want:        []int{3},
			wantFetches: 1,
			wantSets:    1,
			wantEvents:  []event{{kind: "miss", name: "numbers"}},
		},
		{
			name:        "get failure falls through",
			store:       &fakeStore{getErr: errBackend, fetched: []int{4}},
			want:        []int{4},
			wantFetches: 1,
			wantSets:    1,
			wantEvents:  []event{{kind: "failure", name: "numbers", op: OpGet}},
		},
		{
			name:        "set failure keeps value",
			store:       &fakeStore{setErr: errBackend, fetched: []int{5}},
			want:        []int{5},
			wantFetches: 1,
			wantSets:    1,
			wantEvents: []event{
				{kind: "miss", name: "numbers"},
				{kind: "failure", name: "numbers", op: OpSet},
			},
		},
		{
			name:        "get and set both failing",
			store:       &fakeStore{getErr: errBackend, setErr: errBackend, fetched: []int{6}},
			want:        []int{6},
			wantFetches: 1,
			wantSets:    1,
			wantEvents: []event{
				{kind: "failure", name: "numbers", op: OpGet},
				{kind: "failure", name: "numbers", op: OpSet},
			},
		},
		{
			name:        "empty result not cached",
			store:       &fakeStore{fetched: []int{}},
			want:        []int{},
			wantFetches: 1,
			wantSets:    0,
			wantEvents:  []event{{kind: "miss", name: "numbers"}},
		},
		{
			name:        "fetch error propagates",
			store:       &fakeStore{fetchErr: errBackend},
			wantErr:     errBackend,
			wantFetches: 1,
			wantSets:    0,
			wantEvents:  []event{{kind: "miss", name: "numbers"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingRecorder{}

			got, err := Load(context.Background(), rec, tt.store.loader())

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.Equal(t, 1, tt.store.gets)
			assert.Equal(t, tt.wantFetches, tt.store.fetches)
			assert.Equal(t, tt.wantSets, tt.store.sets)
			if tt.wantSets > 0 {
				assert.Equal(t, tt.store.fetched, tt.store.stored)
			}
			assert.Equal(t, tt.wantEvents, rec.events)
		})
	}
}

func TestLoad_NoCache(t *testing.T) {
	fetches := 0
	got, err := Load(context.Background(), nil, Loader[string]{
		Name: "greeting",
		Fetch: func(context.Context) (string, error) {
			fetches++
			return "hello", nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 1, fetches)
}

func TestLoad_CustomEmpty(t *testing.T) {
	var sets int
	l := Loader[int64]{
		Fetch: func(context.Context) (int64, error) { return -1, nil },
		Set: func(context.Context, int64) error {
			sets++
			return nil
		},
		Empty: func(v int64) bool { return v < 0 },
	}

	got, err := Load(context.Background(), NopRecorder{}, l)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got)
	assert.Zero(t, sets)
}

func TestIsEmpty(t *testing.T) {
	type pair struct{ A, B int }

	assert.True(t, IsEmpty[[]int](nil))
	assert.True(t, IsEmpty([]int{}))
	assert.False(t, IsEmpty([]int{0}))
	assert.True(t, IsEmpty(map[string]int{}))
	assert.True(t, IsEmpty(""))
	assert.False(t, IsEmpty("x"))
	assert.True(t, IsEmpty(int64(0)))
	assert.False(t, IsEmpty(int64(7)))
	assert.True(t, IsEmpty(pair{}))
	assert.False(t, IsEmpty(pair{B: 1}))
	assert.True(t, IsEmpty[*pair](nil))
	assert.True(t, IsEmpty[any](nil))
}
