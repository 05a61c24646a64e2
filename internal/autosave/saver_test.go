package autosave

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assessor = &auth.Identity{UserID: "ass-1", Role: models.RoleAssessor, IsActive: true}

type fakeFlusher struct {
	mu      sync.Mutex
	version int64
	errs    []error
	calls   []models.AnswerSet
	actors  []*auth.Identity
}

func (f *fakeFlusher) UpdateAllAssessmentAnswers(_ context.Context, actor *auth.Identity, id string, partial models.AnswerSet, expected int64) (*models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, partial)
	f.actors = append(f.actors, actor)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if expected != f.version {
		return nil, errors.NewConcurrentModificationError("assessment", id, expected)
	}
	f.version++
	return &models.Assessment{ID: id, Version: f.version}, nil
}

func (f *fakeFlusher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFlusher) lastCall() models.AnswerSet {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func (f *fakeFlusher) lastActor() *auth.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.actors[len(f.actors)-1]
}

// idFlusher accepts any version and tracks one counter per assessment.
type idFlusher struct {
	mu       sync.Mutex
	versions map[string]int64
}

func (f *idFlusher) UpdateAllAssessmentAnswers(_ context.Context, _ *auth.Identity, id string, _ models.AnswerSet, expected int64) (*models.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versions[id] != expected {
		return nil, errors.NewConcurrentModificationError("assessment", id, expected)
	}
	f.versions[id]++
	return &models.Assessment{ID: id, Version: f.versions[id]}, nil
}

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newSaver(t *testing.T, f Flusher, rdb *redis.Client, opts Options) *Saver {
	s := NewSaver(f, rdb, opts, logger.NewTestLogger(t))
	t.Cleanup(s.Close)
	return s
}

func company(id string, score int) models.AnswerSet {
	return models.AnswerSet{Company: models.ScoredAnswers{models.QuestionID(id): {Score: score}}}
}

func TestSaver_DebouncesEditsIntoOneFlush(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 1}
	s := newSaver(t, f, setupRedis(t), Options{Idle: 50 * time.Millisecond})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 0), 1)
	require.NoError(t, err)
	_, err = s.Edit(ctx, assessor, "a-1", models.AnswerSet{Sector: models.ScoredAnswers{"s1": {Score: -1}}}, 1)
	require.NoError(t, err)
	st, err := s.Edit(ctx, assessor, "a-1", company("q1", 2), 1)
	require.NoError(t, err)
	assert.Equal(t, StatePending, st.State)

	require.Eventually(t, func() bool { return s.Status("a-1").State == StateSaved }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, f.callCount())
	sent := f.lastCall()
	assert.Equal(t, 2, sent.Company["q1"].Score)
	assert.Equal(t, -1, sent.Sector["s1"].Score)
	assert.Equal(t, int64(2), s.Status("a-1").Version)

	unsaved, err := s.HasUnsaved(ctx, "a-1")
	require.NoError(t, err)
	assert.False(t, unsaved)
}

func TestSaver_RetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 3, errs: []error{
		errors.NewDatabaseError("update assessment", stderrors.New("connection reset")),
		errors.NewDatabaseError("update assessment", stderrors.New("connection reset")),
	}}
	s := newSaver(t, f, setupRedis(t), Options{Idle: time.Hour, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 3)
	require.NoError(t, err)

	st, err := s.Flush(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, StateSaved, st.State)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, int64(4), st.Version)
	assert.Equal(t, 3, f.callCount())
}

func TestSaver_ReportsUnsavedAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	down := errors.NewDatabaseError("update assessment", stderrors.New("connection refused"))
	f := &fakeFlusher{version: 1, errs: []error{down, down, down, down, down}}
	s := newSaver(t, f, setupRedis(t), Options{Idle: time.Hour, MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 1)
	require.NoError(t, err)

	st, err := s.Flush(ctx, "a-1")
	assert.Equal(t, errors.ErrCodeDatabaseError, errors.CodeOf(err))
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, errors.ErrCodeDatabaseError, st.ErrorCode)
	assert.Equal(t, 3, f.callCount())

	unsaved, err := s.HasUnsaved(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, unsaved)
}

func TestSaver_ConflictStopsUntilRebased(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 5}
	s := newSaver(t, f, setupRedis(t), Options{Idle: time.Hour, BaseDelay: time.Millisecond})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 3)
	require.NoError(t, err)

	st, err := s.Flush(ctx, "a-1")
	assert.Equal(t, errors.ErrCodeConcurrentModification, errors.CodeOf(err))
	assert.Equal(t, StateConflict, st.State)
	assert.Equal(t, 1, f.callCount())

	unsaved, err := s.HasUnsaved(ctx, "a-1")
	require.NoError(t, err)
	assert.True(t, unsaved)

	// The caller refreshed and edits again at the current version.
	_, err = s.Edit(ctx, assessor, "a-1", company("q2", 2), 5)
	require.NoError(t, err)
	st, err = s.Flush(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, StateSaved, st.State)
	sent := f.lastCall()
	assert.Len(t, sent.Company, 2)
}

func TestSaver_BusinessErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 1, errs: []error{errors.NewAssessmentNotDraftError("a-1", "SUBMITTED")}}
	s := newSaver(t, f, setupRedis(t), Options{Idle: time.Hour, BaseDelay: time.Millisecond})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 1)
	require.NoError(t, err)
	st, err := s.Flush(ctx, "a-1")
	assert.Equal(t, errors.ErrCodeAssessmentNotDraft, errors.CodeOf(err))
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, 1, f.callCount())
}

func TestSaver_NewerEditCancelsRetry(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 1, errs: []error{
		errors.NewDatabaseError("update assessment", stderrors.New("deadlock")),
	}}
	s := newSaver(t, f, setupRedis(t), Options{Idle: 10 * time.Millisecond, BaseDelay: time.Hour, MaxDelay: time.Hour})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Status("a-1").State == StateRetrying }, 2*time.Second, 5*time.Millisecond)

	_, err = s.Edit(ctx, assessor, "a-1", company("q1", 2), 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Status("a-1").State == StateSaved }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, 2, f.lastCall().Company["q1"].Score)
}

func TestSaver_Edit_Rejects(t *testing.T) {
	ctx := context.Background()
	s := newSaver(t, &fakeFlusher{}, setupRedis(t), Options{})

	_, err := s.Edit(ctx, nil, "a-1", company("q1", 1), 1)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))

	_, err = s.Edit(ctx, assessor, "a-1", models.AnswerSet{}, 1)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	st, err := s.Flush(ctx, "never-edited")
	require.NoError(t, err)
	assert.Equal(t, StateIdle, st.State)
}

func TestSaver_BufferWriteFailure(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	keys := []string{"autosave:buffer:a-1", "autosave:meta:a-1"}
	mock.ExpectEvalSha(editScript.Hash(), keys, "86400", "ass-1", "", "ASSESSOR", "1", "COMPANY:q1", `{"score":2}`).
		SetErr(stderrors.New("connection refused"))

	s := newSaver(t, &fakeFlusher{}, rdb, Options{Idle: time.Hour})
	_, err := s.Edit(context.Background(), assessor, "a-1", company("q1", 2), 1)
	assert.Equal(t, errors.ErrCodeCacheError, errors.CodeOf(err))
	assert.Equal(t, StateIdle, s.Status("a-1").State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaver_Discard(t *testing.T) {
	ctx := context.Background()
	f := &fakeFlusher{version: 1}
	s := newSaver(t, f, setupRedis(t), Options{Idle: time.Hour})

	_, err := s.Edit(ctx, assessor, "a-1", company("q1", 1), 1)
	require.NoError(t, err)
	require.NoError(t, s.Discard(ctx, "a-1"))

	unsaved, err := s.HasUnsaved(ctx, "a-1")
	require.NoError(t, err)
	assert.False(t, unsaved)
	assert.Equal(t, StateIdle, s.Status("a-1").State)
	assert.Zero(t, f.callCount())
}

func TestBackoff_Capped(t *testing.T) {
	s := NewSaver(nil, nil, Options{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}, logger.NewNoOpLogger())
	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		assert.Equal(t, w*time.Millisecond, s.backoff(i+1), "attempt %d", i+1)
	}
}

func TestSaver_FlushFromAnotherReplica(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	f := &fakeFlusher{version: 1}
	a := newSaver(t, f, rdb, Options{Idle: time.Hour})
	b := newSaver(t, f, rdb, Options{Idle: time.Hour})

	_, err := a.Edit(ctx, assessor, "a-1", company("q1", 2), 1)
	require.NoError(t, err)

	st, err := b.Flush(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, StateSaved, st.State)
	assert.Equal(t, int64(2), st.Version)
	require.Equal(t, 1, f.callCount())
	assert.Equal(t, 2, f.lastCall().Company["q1"].Score)
	assert.Equal(t, assessor.UserID, f.lastActor().UserID)
	assert.Equal(t, assessor.Role, f.lastActor().Role)

	unsaved, err := a.HasUnsaved(ctx, "a-1")
	require.NoError(t, err)
	assert.False(t, unsaved)

	// A still believes version 1; the version B saved at wins.
	_, err = a.Edit(ctx, assessor, "a-1", company("q2", 1), 1)
	require.NoError(t, err)
	st, err = a.Flush(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, StateSaved, st.State)
	assert.Equal(t, int64(3), st.Version)
	assert.Equal(t, 2, f.callCount())
}

func TestSaver_EditAfterCloseIsLeftForAnotherReplica(t *testing.T) {
	ctx := context.Background()
	rdb := setupRedis(t)
	f := &fakeFlusher{version: 1}
	closing := NewSaver(f, rdb, Options{Idle: 5 * time.Millisecond}, logger.NewTestLogger(t))
	closing.Close()

	st, err := closing.Edit(ctx, assessor, "a-1", company("q1", 1), 1)
	require.NoError(t, err)
	assert.Equal(t, StatePending, st.State)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.callCount())
	closing.Close()

	other := newSaver(t, f, rdb, Options{Idle: time.Hour})
	st, err = other.Flush(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, StateSaved, st.State)
	assert.Equal(t, 1, f.callCount())
}

func TestSaver_ConcurrentAssessments(t *testing.T) {
	ctx := context.Background()
	f := &idFlusher{versions: map[string]int64{}}
	s := newSaver(t, f, setupRedis(t), Options{Idle: 5 * time.Millisecond})

	ids := []string{"a-1", "a-2", "a-3", "a-4", "a-5", "a-6", "a-7", "a-8"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for score := 0; score <= 2; score++ {
				_, err := s.Edit(ctx, assessor, id, company("q1", score), 0)
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		require.Eventually(t, func() bool { return s.Status(id).State == StateSaved }, 2*time.Second, 5*time.Millisecond, id)
		unsaved, err := s.HasUnsaved(ctx, id)
		require.NoError(t, err)
		assert.False(t, unsaved, id)
	}
}
