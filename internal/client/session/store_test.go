package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/folio/internal/client/models"
	"github.com/dmitrijs2005/folio/internal/common"
	"github.com/dmitrijs2005/folio/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeProfiles struct {
	mu      sync.Mutex
	byUID   map[string]*models.Profile
	err     error
	blockCh chan struct{}
}

func (f *fakeProfiles) Profile(ctx context.Context, uid string) (*models.Profile, error) {
	if f.blockCh != nil {
		select {
		case <-f.blockCh:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byUID[uid]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", uid, common.ErrorNotFound)
	}
	return p, nil
}

type fakeSigner struct {
	err   error
	calls int
}

func (f *fakeSigner) SignOut(context.Context) error {
	f.calls++
	return f.err
}

func newStore(profiles map[string]*models.Profile) (*Store, *fakeProfiles, *fakeSigner) {
	fp := &fakeProfiles{byUID: profiles}
	fs := &fakeSigner{}
	return NewStore(fp, fs, logging.Discard()), fp, fs
}

var alice = &models.Identity{ID: "u1", Email: "alice@example.com", DisplayName: "alice"}

func TestInitialSnapshotIsLoading(t *testing.T) {
	s, _, _ := newStore(nil)
	assert.Equal(t, Snapshot{Loading: true}, s.Snapshot())
}

func TestOnAuthChange(t *testing.T) {
	tests := []struct {
		name     string
		profiles map[string]*models.Profile
		identity *models.Identity
		want     Snapshot
	}{
		{
			name:     "admin profile",
			profiles: map[string]*models.Profile{"u1": {UID: "u1", Role: "admin", DisplayName: "Alice A."}},
			identity: alice,
			want:     Snapshot{Identity: &models.Identity{ID: "u1", Email: "alice@example.com", DisplayName: "Alice A."}, Role: "admin"},
		},
		{
			name:     "empty role defaults to user and keeps identity name",
			profiles: map[string]*models.Profile{"u1": {UID: "u1"}},
			identity: alice,
			want:     Snapshot{Identity: alice, Role: "user"},
		},
		{
			name:     "missing profile fails closed",
			profiles: map[string]*models.Profile{},
			identity: alice,
			want:     Snapshot{},
		},
		{
			name:     "signed out",
			identity: nil,
			want:     Snapshot{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newStore(tt.profiles)
			require.NoError(t, s.OnAuthChange(context.Background(), tt.identity))
			assert.Equal(t, tt.want, s.Snapshot())
		})
	}
}

func TestOnAuthChange_FetchErrorFailsClosed(t *testing.T) {
	s, fp, _ := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})
	require.NoError(t, s.OnAuthChange(context.Background(), alice))
	require.Equal(t, "admin", s.Snapshot().Role)

	fp.err = errors.New("network down")
	err := s.OnAuthChange(context.Background(), alice)
	assert.ErrorIs(t, err, fp.err)
	assert.Equal(t, Snapshot{}, s.Snapshot())
}

func TestOnAuthChange_CancelledKeepsState(t *testing.T) {
	s, fp, _ := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})
	require.NoError(t, s.OnAuthChange(context.Background(), alice))
	before := s.Snapshot()

	fp.blockCh = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.OnAuthChange(ctx, alice)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, s.Snapshot())
}

func TestOnAuthChange_StaleFetchIsDiscarded(t *testing.T) {
	s, fp, _ := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})
	fp.blockCh = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- s.OnAuthChange(context.Background(), alice) }()

	// Sign out while the profile fetch is still in flight. The signed-out
	// path does not fetch, so it does not block.
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.gen == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, s.OnAuthChange(context.Background(), nil))

	close(fp.blockCh)
	require.NoError(t, <-done)

	assert.Equal(t, Snapshot{}, s.Snapshot(), "late admin result must not overwrite the sign-out")
}

func TestSubscribe_OrderAndUnsubscribe(t *testing.T) {
	s, _, _ := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})

	var got []string
	unsubA := s.Subscribe(func(snap Snapshot) { got = append(got, "a:"+snap.Role) })
	s.Subscribe(func(snap Snapshot) { got = append(got, "b:"+snap.Role) })

	require.NoError(t, s.OnAuthChange(context.Background(), alice))
	unsubA()
	unsubA()
	require.NoError(t, s.OnAuthChange(context.Background(), nil))

	assert.Equal(t, []string{"a:admin", "b:admin", "b:"}, got)
}

func TestSubscribe_ListenerMayUnsubscribeItself(t *testing.T) {
	s, _, _ := newStore(nil)

	calls := 0
	var unsub func()
	unsub = s.Subscribe(func(Snapshot) {
		calls++
		unsub()
	})

	require.NoError(t, s.OnAuthChange(context.Background(), nil))
	require.NoError(t, s.OnAuthChange(context.Background(), nil))
	assert.Equal(t, 1, calls)
}

func TestLogout(t *testing.T) {
	s, _, signer := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})
	require.NoError(t, s.OnAuthChange(context.Background(), alice))

	var notified []Snapshot
	s.Subscribe(func(snap Snapshot) { notified = append(notified, snap) })

	require.NoError(t, s.Logout(context.Background()))
	assert.Equal(t, 1, signer.calls)
	assert.Equal(t, Snapshot{}, s.Snapshot())
	assert.Equal(t, []Snapshot{{}}, notified)
}

func TestLogout_FailureKeepsState(t *testing.T) {
	s, _, signer := newStore(map[string]*models.Profile{"u1": {UID: "u1", Role: "admin"}})
	require.NoError(t, s.OnAuthChange(context.Background(), alice))
	before := s.Snapshot()

	notified := 0
	s.Subscribe(func(Snapshot) { notified++ })

	signer.err = errors.New("offline")
	assert.ErrorIs(t, s.Logout(context.Background()), signer.err)
	assert.Equal(t, before, s.Snapshot())
	assert.Zero(t, notified)
}
