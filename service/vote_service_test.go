package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sevotec/voting-service/adapters/store"
	"github.com/sevotec/voting-service/adapters/warehouse"
	"github.com/sevotec/voting-service/core"
	"github.com/stretchr/testify/require"
)

type voteFixture struct {
	svc    *VoteService
	store  *store.MemoryStore
	census *fakeCensus
	queue  *fakeQueue
	now    time.Time
}

func (f *voteFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func setupVoteService(t *testing.T, tokens ...string) *voteFixture {
	t.Helper()

	f := &voteFixture{
		store:  store.NewMemoryStore(),
		census: &fakeCensus{},
		queue:  &fakeQueue{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.store.Now = func() time.Time { return f.now }

	if len(tokens) == 0 {
		tokens = []string{"tok-1"}
	}
	require.NoError(t, f.store.AddTokens(context.Background(), tokens))

	pool := NewTokenPool(f.store, &warehouse.StaticWarehouse{}, discardLogger())
	f.svc = NewVoteService(f.store, f.store, pool, f.census, f.queue, discardLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestVoteService_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := setupVoteService(t, "tok-1")

	expiresAt := f.now.Add(10 * time.Minute)
	res, err := f.svc.InitializeSession(ctx, "u1", expiresAt.Unix())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "2026-03-01T12:10:00.000Z", res.ExpiresAt)
	require.Equal(t, []string{"u1"}, f.census.started)

	session, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, core.StatusCreated, session.Status)
	require.Equal(t, "tok-1", session.VoterToken)

	f.advance(4 * time.Minute)
	cast, err := f.svc.ProcessCast(ctx, "u1", "c7", "e2")
	require.NoError(t, err)
	require.Equal(t, StatusWaitingForConfirmation, cast.Status)
	require.Equal(t, "c7", cast.CandidateID)
	require.Equal(t, "e2", cast.ElectionID)

	ttl, err := f.store.TTL(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 6*time.Minute, ttl, "cast must not extend the window")

	fin, err := f.svc.FinalizeVote(ctx, "u1", "c7", "e2")
	require.NoError(t, err)
	require.True(t, fin.Success)
	require.Equal(t, []string{"u1"}, f.census.saved)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	require.Equal(t, "vote-u1-e2", job.ID())
	require.Equal(t, "tok-1", job.Payload.VoterToken)
	require.Equal(t, "c7", job.Payload.CandidateID)
	require.Equal(t, "e2", job.Payload.ElectionID)
	require.NotEmpty(t, job.Payload.Timestamp)

	record, err := f.store.GetTracking(ctx, "tok-1")
	require.NoError(t, err)
	require.Equal(t, "u1", record.VoterID)

	_, err = f.store.Get(ctx, "u1")
	require.ErrorIs(t, err, core.ErrSessionNotFound)

	_, err = f.svc.FinalizeVote(ctx, "u1", "c7", "e2")
	require.ErrorIs(t, err, core.ErrSessionNotFound)
	require.Equal(t, core.KindUnauthorized, core.KindOf(err))
}

func TestVoteService_InitializeSession(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects past expiration", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(-time.Second).Unix())
		require.ErrorIs(t, err, core.ErrInvalidExpiration)
		require.Equal(t, core.KindBadRequest, core.KindOf(err))

		_, err = f.svc.InitializeSession(ctx, "u1", f.now.Unix())
		require.ErrorIs(t, err, core.ErrInvalidExpiration)

		size, err := f.store.PoolSize(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, size, "no token drawn on rejected input")
	})

	t.Run("rejects missing user", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.InitializeSession(ctx, "", f.now.Add(time.Minute).Unix())
		require.Equal(t, core.KindBadRequest, core.KindOf(err))
	})

	t.Run("exhausted pool is internal", func(t *testing.T) {
		f := setupVoteService(t, "only")
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.NoError(t, err)

		_, err = f.svc.InitializeSession(ctx, "u2", f.now.Add(time.Minute).Unix())
		require.ErrorIs(t, err, core.ErrPoolExhausted)
		require.Equal(t, core.KindInternal, core.KindOf(err))

		_, err = f.store.Get(ctx, "u2")
		require.ErrorIs(t, err, core.ErrSessionNotFound)
	})

	t.Run("census failure removes the session", func(t *testing.T) {
		f := setupVoteService(t, "tok-1", "tok-2")
		f.census.startErr = errors.New("census down")

		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.Equal(t, core.KindInternal, core.KindOf(err))

		_, err = f.store.Get(ctx, "u1")
		require.ErrorIs(t, err, core.ErrSessionNotFound)

		size, err := f.store.PoolSize(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 1, size, "drawn token is not returned to the pool")
	})

	t.Run("reinitialize overwrites", func(t *testing.T) {
		f := setupVoteService(t, "tok-1", "tok-2")
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.NoError(t, err)
		_, err = f.svc.ProcessCast(ctx, "u1", "c1", "e1")
		require.NoError(t, err)

		_, err = f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Hour).Unix())
		require.NoError(t, err)

		session, err := f.store.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, core.StatusCreated, session.Status)
		require.Empty(t, session.CandidateID)
	})
}

func TestVoteService_ProcessCast(t *testing.T) {
	ctx := context.Background()

	t.Run("without session", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.ProcessCast(ctx, "ghost", "c1", "e1")
		require.ErrorIs(t, err, core.ErrSessionNotFound)
		require.Equal(t, core.KindUnauthorized, core.KindOf(err))
	})

	t.Run("after the window ends", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.NoError(t, err)

		f.advance(time.Minute)
		_, err = f.svc.ProcessCast(ctx, "u1", "c1", "e1")
		require.Equal(t, core.KindUnauthorized, core.KindOf(err))
	})

	t.Run("recast replaces the choice", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.NoError(t, err)

		_, err = f.svc.ProcessCast(ctx, "u1", "c1", "e1")
		require.NoError(t, err)
		_, err = f.svc.ProcessCast(ctx, "u1", "c2", "e1")
		require.NoError(t, err)

		session, err := f.store.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, "c2", session.CandidateID)
	})

	t.Run("requires candidate and election", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(time.Minute).Unix())
		require.NoError(t, err)

		_, err = f.svc.ProcessCast(ctx, "u1", "", "e1")
		require.Equal(t, core.KindBadRequest, core.KindOf(err))
	})

	t.Run("without session and empty choice", func(t *testing.T) {
		f := setupVoteService(t)
		_, err := f.svc.ProcessCast(ctx, "ghost", "", "")
		require.ErrorIs(t, err, core.ErrSessionNotFound)
		require.Equal(t, core.KindUnauthorized, core.KindOf(err))
	})
}

func TestVoteService_FinalizeVote(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, f *voteFixture) {
		t.Helper()
		_, err := f.svc.InitializeSession(ctx, "u1", f.now.Add(10*time.Minute).Unix())
		require.NoError(t, err)
	}

	t.Run("before cast", func(t *testing.T) {
		f := setupVoteService(t)
		open(t, f)

		_, err := f.svc.FinalizeVote(ctx, "u1", "c1", "e1")
		require.ErrorIs(t, err, core.ErrInvalidState)
		require.Equal(t, core.KindBadRequest, core.KindOf(err))

		_, err = f.store.Get(ctx, "u1")
		require.NoError(t, err, "session survives an out-of-order confirm")
	})

	t.Run("mismatch destroys the session", func(t *testing.T) {
		f := setupVoteService(t)
		open(t, f)
		_, err := f.svc.ProcessCast(ctx, "u1", "c7", "e2")
		require.NoError(t, err)

		_, err = f.svc.FinalizeVote(ctx, "u1", "c8", "e2")
		require.ErrorIs(t, err, core.ErrTamperedConfirmation)
		require.Equal(t, core.KindBadRequest, core.KindOf(err))

		_, err = f.store.Get(ctx, "u1")
		require.ErrorIs(t, err, core.ErrSessionNotFound)
		require.Empty(t, f.queue.jobs)
		require.Empty(t, f.census.saved)

		_, err = f.svc.FinalizeVote(ctx, "u1", "c7", "e2")
		require.ErrorIs(t, err, core.ErrSessionNotFound)
	})

	t.Run("election mismatch destroys the session", func(t *testing.T) {
		f := setupVoteService(t)
		open(t, f)
		_, err := f.svc.ProcessCast(ctx, "u1", "c7", "e2")
		require.NoError(t, err)

		_, err = f.svc.FinalizeVote(ctx, "u1", "c7", "e3")
		require.ErrorIs(t, err, core.ErrTamperedConfirmation)
	})

	t.Run("census failure keeps the session", func(t *testing.T) {
		f := setupVoteService(t)
		open(t, f)
		_, err := f.svc.ProcessCast(ctx, "u1", "c7", "e2")
		require.NoError(t, err)

		f.census.saveErr = errors.New("census down")
		_, err = f.svc.FinalizeVote(ctx, "u1", "c7", "e2")
		require.Equal(t, core.KindInternal, core.KindOf(err))
		require.Empty(t, f.queue.jobs)

		session, err := f.store.Get(ctx, "u1")
		require.NoError(t, err)
		require.Equal(t, core.StatusPendingConfirmation, session.Status)
	})

	t.Run("enqueue failure keeps the session", func(t *testing.T) {
		f := setupVoteService(t)
		open(t, f)
		_, err := f.svc.ProcessCast(ctx, "u1", "c7", "e2")
		require.NoError(t, err)

		f.queue.err = errors.New("broker down")
		_, err = f.svc.FinalizeVote(ctx, "u1", "c7", "e2")
		require.Equal(t, core.KindInternal, core.KindOf(err))

		_, err = f.store.Get(ctx, "u1")
		require.NoError(t, err)
	})
}

func TestVoteService_ConfirmLedgerWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("confirms and removes the bridge", func(t *testing.T) {
		f := setupVoteService(t)
		require.NoError(t, f.store.SetTracking(ctx, core.TrackingRecord{VoterToken: "tok-9", VoterID: "u9"}, core.TrackingTTL))

		require.NoError(t, f.svc.ConfirmLedgerWrite(ctx, "tok-9"))
		require.Equal(t, []string{"u9"}, f.census.confirmed)

		_, err := f.store.GetTracking(ctx, "tok-9")
		require.ErrorIs(t, err, core.ErrTrackingNotFound)
	})

	t.Run("unknown token is ignored", func(t *testing.T) {
		f := setupVoteService(t)
		require.NoError(t, f.svc.ConfirmLedgerWrite(ctx, "nope"))
		require.Empty(t, f.census.confirmed)
	})

	t.Run("expired bridge is ignored", func(t *testing.T) {
		f := setupVoteService(t)
		require.NoError(t, f.store.SetTracking(ctx, core.TrackingRecord{VoterToken: "tok-9", VoterID: "u9"}, core.TrackingTTL))

		f.advance(core.TrackingTTL + time.Second)
		require.NoError(t, f.svc.ConfirmLedgerWrite(ctx, "tok-9"))
		require.Empty(t, f.census.confirmed)
	})

	t.Run("census failure keeps the bridge", func(t *testing.T) {
		f := setupVoteService(t)
		require.NoError(t, f.store.SetTracking(ctx, core.TrackingRecord{VoterToken: "tok-9", VoterID: "u9"}, core.TrackingTTL))
		f.census.confirmErr = errors.New("census down")

		err := f.svc.ConfirmLedgerWrite(ctx, "tok-9")
		require.Equal(t, core.KindInternal, core.KindOf(err))

		_, err = f.store.GetTracking(ctx, "tok-9")
		require.NoError(t, err)
	})

	t.Run("requires a token", func(t *testing.T) {
		f := setupVoteService(t)
		err := f.svc.ConfirmLedgerWrite(ctx, "")
		require.Equal(t, core.KindBadRequest, core.KindOf(err))
	})
}
