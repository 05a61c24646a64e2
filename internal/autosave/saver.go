// Package autosave buffers assessment answer edits in Redis and flushes them
// through the locked answer path after the editor goes idle.
//
// The buffer and the editor's identity and expected version live in Redis,
// so any worker replica can flush an assessment edited on another one.
// Timers are per process.
//
// A flush that fails with a retryable error is retried with exponential
// backoff up to a cap, then reported as unsaved. A version conflict stops
// retrying and leaves the buffer for the caller to rebase. Any newer edit
// cancels an in-flight flush or retry and restarts the idle timer.
package autosave

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"ipo-readiness/internal/common/auth"
	"ipo-readiness/internal/common/config"
	"ipo-readiness/internal/common/errors"
	"ipo-readiness/internal/common/logger"
	"ipo-readiness/internal/common/metrics"
	"ipo-readiness/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	bufferPrefix = "autosave:buffer:"
	metaPrefix   = "autosave:meta:"
)

// editScript writes answer fields and the editor metadata in one step, so a
// flush on another replica sees the buffer and its generation together.
// KEYS: buffer, meta. ARGV: ttl, userId, email, role, version, field, value...
// Returns {generation, version}.
var editScript = redis.NewScript(`
local ttl = tonumber(ARGV[1])
for i = 6, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('EXPIRE', KEYS[1], ttl)
local version = tonumber(ARGV[5])
local stored = tonumber(redis.call('HGET', KEYS[2], 'version') or '0')
if stored > version then
  version = stored
end
redis.call('HSET', KEYS[2], 'userId', ARGV[2], 'email', ARGV[3], 'role', ARGV[4], 'version', tostring(version))
local gen = redis.call('HINCRBY', KEYS[2], 'generation', 1)
redis.call('EXPIRE', KEYS[2], ttl)
return {gen, version}
`)

// clearScript records the saved version and drops the buffer unless an edit
// arrived after it was read. KEYS: buffer, meta. ARGV: generation, version.
// Returns 1 when the buffer was cleared.
var clearScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
  return 0
end
local stored = tonumber(redis.call('HGET', KEYS[2], 'version') or '0')
if tonumber(ARGV[2]) > stored then
  redis.call('HSET', KEYS[2], 'version', ARGV[2])
end
if redis.call('HGET', KEYS[2], 'generation') == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

type State string

const (
	StateIdle     State = "IDLE"
	StatePending  State = "PENDING"
	StateSaving   State = "SAVING"
	StateRetrying State = "RETRYING"
	StateSaved    State = "SAVED"
	StateConflict State = "CONFLICT"
	StateFailed   State = "FAILED"
)

type Status struct {
	AssessmentID string           `json:"assessmentId"`
	State        State            `json:"state"`
	Version      int64            `json:"version"`
	Attempts     int              `json:"attempts"`
	ErrorCode    errors.ErrorCode `json:"errorCode,omitempty"`
	LastError    string           `json:"lastError,omitempty"`
}

// Flusher persists merged answers. *assessment.Service satisfies it.
type Flusher interface {
	UpdateAllAssessmentAnswers(ctx context.Context, actor *auth.Identity, id string, partial models.AnswerSet, expectedVersion int64) (*models.Assessment, error)
}

type Options struct {
	Idle        time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	BufferTTL   time.Duration
}

func OptionsFromConfig(cfg config.AutosaveConfig) Options {
	return Options{
		Idle:        time.Duration(cfg.IdleMs) * time.Millisecond,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		BufferTTL:   time.Duration(cfg.BufferTTL) * time.Second,
	}
}

// session is this process's view of one assessment's buffer. mu serialises
// edits to the same assessment; edits to different assessments never wait
// on each other.
type session struct {
	mu sync.Mutex
	// version is the newest assessment version this process has seen.
	version int64
	// generation is the Redis edit counter of the latest edit this process
	// knows about; status updates from an older flush are dropped.
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	status     Status
}

// meta is the editor record stored next to the buffer.
type meta struct {
	actor      *auth.Identity
	version    int64
	generation uint64
}

type Saver struct {
	flusher Flusher
	rdb     *redis.Client
	opts    Options
	logger  logger.Logger

	// mu guards sessions and closed only; no Redis call runs under it.
	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

func NewSaver(flusher Flusher, rdb *redis.Client, opts Options, log logger.Logger) *Saver {
	if opts.Idle <= 0 {
		opts.Idle = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}
	if opts.BufferTTL < time.Second {
		opts.BufferTTL = 24 * time.Hour
	}
	return &Saver{
		flusher:  flusher,
		rdb:      rdb,
		opts:     opts,
		logger:   log.WithFields(map[string]interface{}{"component": "autosave"}),
		sessions: make(map[string]*session),
	}
}

// Edit buffers partial and (re)starts the idle timer. version is the
// assessment version the caller last saw; the saver keeps the newer of it
// and the version recorded by earlier flushes on any replica.
//
// After Close the edit is still buffered but no timer is armed; another
// replica's Flush picks it up.
func (s *Saver) Edit(ctx context.Context, actor *auth.Identity, id string, partial models.AnswerSet, version int64) (Status, error) {
	if err := auth.Authorize(actor, "auto-save answers", models.RoleAssessor, models.RoleReviewer); err != nil {
		return Status{}, err
	}
	fields, err := encode(partial)
	if err != nil {
		return Status{}, err
	}

	sess, closed := s.session(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.version > version {
		version = sess.version
	}
	args := append([]interface{}{
		strconv.FormatInt(int64(s.opts.BufferTTL/time.Second), 10),
		actor.UserID,
		actor.Email,
		string(actor.Role),
		strconv.FormatInt(version, 10),
	}, fields...)
	res, err := editScript.Run(ctx, s.rdb, s.keys(id), args...).Int64Slice()
	if err != nil {
		return Status{}, errors.NewCacheError("buffer answers", err)
	}
	if len(res) != 2 {
		return Status{}, errors.NewCacheError("buffer answers", fmt.Errorf("unexpected reply %v", res))
	}

	sess.generation = uint64(res[0])
	if res[1] > sess.version {
		sess.version = res[1]
	}
	sess.stop()
	sess.status = Status{AssessmentID: id, State: StatePending, Version: sess.version}
	if !closed {
		gen := sess.generation
		sess.timer = time.AfterFunc(s.opts.Idle, func() { s.flushAsync(sess, id, gen) })
	}
	return sess.status, nil
}

// Flush saves the buffer now, cancelling any timer or retry in flight. A
// buffer written by another replica is flushed with the editor recorded
// alongside it.
func (s *Saver) Flush(ctx context.Context, id string) (Status, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()

	if !ok {
		m, found, err := s.loadMeta(ctx, id)
		if err != nil {
			return Status{AssessmentID: id, State: StateIdle}, err
		}
		if !found {
			return Status{AssessmentID: id, State: StateIdle}, nil
		}
		sess, _ = s.session(id)
		sess.mu.Lock()
		if m.generation > sess.generation {
			sess.generation = m.generation
		}
		if m.version > sess.version {
			sess.version = m.version
		}
		sess.mu.Unlock()
	}

	sess.mu.Lock()
	sess.stop()
	runCtx, cancel := context.WithCancel(ctx)
	sess.cancel = cancel
	gen := sess.generation
	sess.mu.Unlock()

	err := s.run(runCtx, sess, id, gen)
	cancel()
	return s.Status(id), err
}

func (s *Saver) flushAsync(sess *session, id string, gen uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	sess.mu.Lock()
	if sess.generation != gen || sess.timer == nil {
		// Fired just as a newer edit re-armed the timer or a Flush took over.
		sess.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	sess.mu.Unlock()

	defer cancel()
	if err := s.run(ctx, sess, id, gen); err != nil && ctx.Err() == nil {
		s.logger.Warn("auto-save gave up", map[string]interface{}{
			"assessmentId": id,
			"error":        err.Error(),
		})
	}
}

func (s *Saver) run(ctx context.Context, sess *session, id string, gen uint64) error {
	for attempt := 1; ; attempt++ {
		s.update(sess, gen, func(st *Status) {
			st.State = StateSaving
			st.Attempts = attempt
		})

		err := s.flushOnce(ctx, sess, id, gen)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			// Superseded by a newer edit, which owns the status now.
			return ctx.Err()
		}

		code := errors.CodeOf(err)
		switch {
		case code == errors.ErrCodeConcurrentModification:
			metrics.AutosaveFlushes.WithLabelValues("conflict").Inc()
			s.update(sess, gen, func(st *Status) { fail(st, StateConflict, code, err) })
			return err
		case !retryable(err) || attempt >= s.opts.MaxAttempts:
			metrics.AutosaveFlushes.WithLabelValues("failed").Inc()
			s.update(sess, gen, func(st *Status) { fail(st, StateFailed, code, err) })
			return err
		}

		metrics.AutosaveFlushes.WithLabelValues("retry").Inc()
		s.update(sess, gen, func(st *Status) { fail(st, StateRetrying, code, err) })
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff(attempt)):
		}
	}
}

func (s *Saver) flushOnce(ctx context.Context, sess *session, id string, gen uint64) error {
	keys := s.keys(id)
	var buf, rawMeta *redis.MapStringStringCmd
	if _, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		buf = pipe.HGetAll(ctx, keys[0])
		rawMeta = pipe.HGetAll(ctx, keys[1])
		return nil
	}); err != nil {
		return errors.NewCacheError("read answer buffer", err)
	}

	m, found, err := parseMeta(rawMeta.Val())
	if err != nil {
		return err
	}
	if !found {
		// Discarded or expired.
		s.update(sess, gen, func(st *Status) { st.State = StateIdle })
		return nil
	}

	version := m.version
	if raw := buf.Val(); len(raw) > 0 {
		partial, err := decode(raw)
		if err != nil {
			return err
		}
		a, err := s.flusher.UpdateAllAssessmentAnswers(ctx, m.actor, id, partial, m.version)
		if err != nil {
			return err
		}
		version = a.Version
	}

	// The store already holds version, so record it even if a newer edit
	// cancelled ctx meanwhile.
	cleared, err := clearScript.Run(context.WithoutCancel(ctx), s.rdb, keys,
		strconv.FormatUint(m.generation, 10), strconv.FormatInt(version, 10)).Int()
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if version > sess.version {
		sess.version = version
	}
	if err != nil {
		return errors.NewCacheError("clear answer buffer", err)
	}
	if sess.generation != gen {
		// A newer local edit is buffered; its own flush resends everything.
		return nil
	}
	if cleared == 0 {
		// Another replica buffered a newer edit and owns the next flush.
		sess.status = Status{AssessmentID: id, State: StatePending, Version: sess.version, Attempts: sess.status.Attempts}
		return nil
	}
	metrics.AutosaveFlushes.WithLabelValues("saved").Inc()
	sess.status = Status{AssessmentID: id, State: StateSaved, Version: sess.version, Attempts: sess.status.Attempts}
	return nil
}

func (s *Saver) session(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{status: Status{AssessmentID: id, State: StateIdle}}
		s.sessions[id] = sess
	}
	return sess, s.closed
}

func (s *Saver) keys(id string) []string {
	return []string{bufferPrefix + id, metaPrefix + id}
}

func (s *Saver) loadMeta(ctx context.Context, id string) (meta, bool, error) {
	raw, err := s.rdb.HGetAll(ctx, metaPrefix+id).Result()
	if err != nil {
		return meta{}, false, errors.NewCacheError("read answer buffer", err)
	}
	return parseMeta(raw)
}

func parseMeta(raw map[string]string) (meta, bool, error) {
	if len(raw) == 0 {
		return meta{}, false, nil
	}
	version, err := strconv.ParseInt(raw["version"], 10, 64)
	if err != nil {
		return meta{}, false, errors.NewCacheError("decode buffer metadata", err)
	}
	gen, err := strconv.ParseUint(raw["generation"], 10, 64)
	if err != nil {
		return meta{}, false, errors.NewCacheError("decode buffer metadata", err)
	}
	return meta{
		actor: &auth.Identity{
			UserID:   raw["userId"],
			Email:    raw["email"],
			Role:     models.Role(raw["role"]),
			IsActive: true,
		},
		version:    version,
		generation: gen,
	}, true, nil
}

func (s *Saver) update(sess *session, gen uint64, fn func(*Status)) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.generation != gen {
		return
	}
	fn(&sess.status)
	sess.status.Version = sess.version
}

func fail(st *Status, state State, code errors.ErrorCode, err error) {
	st.State = state
	st.ErrorCode = code
	st.LastError = err.Error()
}

func (s *Saver) backoff(attempt int) time.Duration {
	d := s.opts.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.opts.MaxDelay {
			return s.opts.MaxDelay
		}
	}
	return d
}

func retryable(err error) bool {
	std, ok := errors.AsStandard(err)
	if !ok {
		return true
	}
	return std.Retryable
}

func (s *Saver) Status(id string) Status {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return Status{AssessmentID: id, State: StateIdle}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.status
}

// HasUnsaved reports whether edits are still buffered. It reads Redis, so it
// also answers for buffers left behind by another process.
func (s *Saver) HasUnsaved(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.HLen(ctx, bufferPrefix+id).Result()
	if err != nil {
		return false, errors.NewCacheError("inspect answer buffer", err)
	}
	return n > 0, nil
}

// Discard drops buffered edits and forgets the session.
func (s *Saver) Discard(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.stop()
		sess.mu.Unlock()
	}
	if err := s.rdb.Del(ctx, s.keys(id)...).Err(); err != nil {
		return errors.NewCacheError("discard answer buffer", err)
	}
	return nil
}

// Close stops every timer and waits for running flushes. Buffers stay in
// Redis until their TTL.
func (s *Saver) Close() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.mu.Lock()
		sess.stop()
		sess.mu.Unlock()
	}
	s.wg.Wait()
}

// stop must be called with sess.mu held.
func (sess *session) stop() {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	if sess.cancel != nil {
		sess.cancel()
		sess.cancel = nil
	}
}

// encode flattens an answer set into HSET field/value pairs keyed
// "<category>:<questionId>".
func encode(set models.AnswerSet) ([]interface{}, error) {
	var fields []interface{}
	for _, c := range models.ScoredCategories {
		for id, ans := range set.ForCategory(c) {
			data, err := json.Marshal(ans)
			if err != nil {
				return nil, errors.NewInvalidInputError(fmt.Sprintf("encode answer %s: %v", id, err))
			}
			fields = append(fields, string(c)+":"+string(id), string(data))
		}
	}
	if len(fields) == 0 {
		return nil, errors.NewInvalidInputError("no answers to save")
	}
	return fields, nil
}

func decode(raw map[string]string) (models.AnswerSet, error) {
	var set models.AnswerSet
	for field, value := range raw {
		cat, id, ok := strings.Cut(field, ":")
		if !ok {
			return set, errors.NewCacheError("decode answer buffer", fmt.Errorf("malformed field %q", field))
		}
		var ans models.ScoredAnswer
		if err := json.Unmarshal([]byte(value), &ans); err != nil {
			return set, errors.NewCacheError("decode answer buffer", err)
		}
		qid := models.QuestionID(id)
		switch models.Category(cat) {
		case models.CategoryCompany:
			if set.Company == nil {
				set.Company = models.ScoredAnswers{}
			}
			set.Company[qid] = ans
		case models.CategoryFinancial:
			if set.Financial == nil {
				set.Financial = models.ScoredAnswers{}
			}
			set.Financial[qid] = ans
		case models.CategorySector:
			if set.Sector == nil {
				set.Sector = models.ScoredAnswers{}
			}
			set.Sector[qid] = ans
		default:
			return set, errors.NewCacheError("decode answer buffer", fmt.Errorf("unknown category %q", cat))
		}
	}
	return set, nil
}
