package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// Result is the outcome of one submitted edit.
type Result struct {
	// KeyMap is the key map after the edit, or as it was if the edit was
	// rejected or changed nothing.
	KeyMap store.KeyMap

	// Changed reports whether a new revision was committed.
	Changed bool

	// Err is a *compose.RejectedError for rule violations and an
	// *EditorError for everything else.
	Err error
}

// Change is sent to subscribers after every committed edit.
type Change struct {
	KeyMapID string
	Name     string
	Revision int64
	Edit     compose.Edit
	Session  string
	Before   trigger.Trigger
	After    trigger.Trigger
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the editor's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = l
	}
}

// WithSessionGenerator sets the source of the editor's session token.
// Defaults to UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Editor) {
		e.sessions = g
	}
}

// WithClock sets the revision clock. By default the clock resumes from the
// highest revision in the library.
func WithClock(c *Clock) Option {
	return func(e *Editor) {
		e.clock = c
	}
}

// WithQueueHint sizes the pending edit queue up front. The queue still
// grows past the hint.
func WithQueueHint(n int) Option {
	return func(e *Editor) {
		e.queueHint = n
	}
}

// Editor is the single writer for key maps in a library.
//
// Edits are queued by Submit or Apply from any goroutine and applied one at
// a time by Run: the key map is loaded, the edit is run through the
// composition rules against the other key maps in the library, and the
// result is stamped with the next revision, committed together with the
// edit record, and published. Current never observes a half-applied edit.
type Editor struct {
	store    *store.Store
	clock    *Clock
	queue    *editQueue
	logger   *slog.Logger
	sessions SessionGenerator
	session  string

	queueHint int

	pubMu     sync.Mutex
	published atomic.Pointer[map[string]store.KeyMap]

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
	done    bool
}

// New creates an editor over s. It does not start processing; call Run.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Editor, error) {
	e := &Editor{
		store:    s,
		logger:   slog.Default(),
		sessions: UUIDv7Generator{},
		subs:     make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queue = newEditQueue(e.queueHint)

	if e.clock == nil {
		last, err := s.LastRevision(ctx)
		if err != nil {
			return nil, fmt.Errorf("new editor: %w", err)
		}
		e.clock = NewClockAt(last)
	}
	e.session = e.sessions.Generate()

	empty := map[string]store.KeyMap{}
	e.published.Store(&empty)
	return e, nil
}

// Session returns the token recorded with this editor's edits.
func (e *Editor) Session() string {
	return e.session
}

// Submit queues an edit of the key map with the given id. The returned
// channel receives exactly one Result.
func (e *Editor) Submit(keyMapID string, edit compose.Edit) (<-chan Result, error) {
	r := &request{keyMapID: keyMapID, edit: edit, reply: make(chan Result, 1)}
	if !e.queue.Enqueue(r) {
		return nil, errStopped()
	}
	return r.reply, nil
}

// Apply submits an edit and waits for its result.
func (e *Editor) Apply(ctx context.Context, keyMapID string, edit compose.Edit) (store.KeyMap, error) {
	reply, err := e.Submit(keyMapID, edit)
	if err != nil {
		return store.KeyMap{}, err
	}
	return wait(ctx, reply)
}

// Create adds a key map holding t to the library. The id is a new UUIDv7.
func (e *Editor) Create(ctx context.Context, name string, t trigger.Trigger) (store.KeyMap, error) {
	km := &store.KeyMap{ID: uuid.Must(uuid.NewV7()).String(), Name: name, Trigger: t}
	r := &request{keyMapID: km.ID, create: km, reply: make(chan Result, 1)}
	if !e.queue.Enqueue(r) {
		return store.KeyMap{}, errStopped()
	}
	return wait(ctx, r.reply)
}

func wait(ctx context.Context, reply <-chan Result) (store.KeyMap, error) {
	select {
	case <-ctx.Done():
		return store.KeyMap{}, ctx.Err()
	case res := <-reply:
		return res.KeyMap, res.Err
	}
}

// Current returns the last published state of a key map. Key maps appear
// once they have been created, loaded or edited through this editor.
func (e *Editor) Current(keyMapID string) (store.KeyMap, bool) {
	km, ok := (*e.published.Load())[keyMapID]
	return km, ok
}

// Load reads a key map from the library and publishes it. The read is
// queued behind pending edits, so it never publishes a revision older than
// one already committed by Run.
func (e *Editor) Load(ctx context.Context, keyMapID string) (store.KeyMap, error) {
	r := &request{keyMapID: keyMapID, reload: true, reply: make(chan Result, 1)}
	if !e.queue.Enqueue(r) {
		return store.KeyMap{}, errStopped()
	}
	return wait(ctx, r.reply)
}

// Subscribe registers for change notifications. Changes are dropped for a
// subscriber whose buffer is full. The channel is closed by cancel or when
// Run returns.
func (e *Editor) Subscribe(buffer int) (<-chan Change, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	ch := make(chan Change, buffer)
	if e.done {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	cancel := func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Run processes queued edits until ctx is cancelled or Stop is called.
// It must be called from exactly one goroutine. After Stop, edits already
// queued are still applied; after cancellation they fail with
// EDITOR_STOPPED.
func (e *Editor) Run(ctx context.Context) error {
	e.logger.Info("editor starting", "session", e.session, "revision", e.clock.Current())
	defer e.shutdown()

	for {
		if r, ok := e.queue.TryDequeue(); ok {
			r.reply <- e.process(ctx, r)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("editor stopping", "reason", "context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Len() == 0 && e.queue.Closed() {
				e.logger.Info("editor stopping", "reason", "stopped")
				return nil
			}
		}
	}
}

// Stop stops accepting edits. Run returns once the queue is empty.
func (e *Editor) Stop() {
	e.queue.Close()
}

func (e *Editor) shutdown() {
	for _, r := range e.queue.drain() {
		r.reply <- Result{Err: errStopped()}
	}

	e.subMu.Lock()
	defer e.subMu.Unlock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.done = true
}

// process applies one request. Called only from Run.
func (e *Editor) process(ctx context.Context, r *request) Result {
	if r.create != nil {
		return e.processCreate(ctx, *r.create)
	}
	if r.reload {
		km, err := e.load(ctx, r.keyMapID)
		if err != nil {
			return Result{Err: err}
		}
		e.publish(km)
		return Result{KeyMap: km}
	}

	km, err := e.load(ctx, r.keyMapID)
	if err != nil {
		return Result{Err: err}
	}

	siblings, err := e.store.Siblings(ctx, km.ID)
	if err != nil {
		return Result{KeyMap: km, Err: &EditorError{
			Code:     ErrCodeLoadFailed,
			Message:  "cannot read sibling key maps",
			KeyMapID: km.ID,
			Err:      err,
		}}
	}

	next, err := compose.Apply(km.Trigger, r.edit, siblings)
	if err != nil {
		e.logger.Info("edit rejected", "keymap", km.ID, "edit", r.edit.String(), "error", err)
		return Result{KeyMap: km, Err: err}
	}

	hash, err := trigger.Hash(next)
	if err != nil {
		return Result{KeyMap: km, Err: e.persistError(km.ID, err)}
	}
	if hash == km.Hash {
		e.logger.Debug("edit unchanged", "keymap", km.ID, "edit", r.edit.String())
		return Result{KeyMap: km}
	}

	updated := km
	updated.Trigger = next
	updated.Hash = hash
	updated.Revision = e.clock.Next()

	rec := store.EditRecord{
		KeyMapID: km.ID,
		Revision: updated.Revision,
		Edit:     r.edit,
		Hash:     hash,
		Session:  e.session,
	}
	if err := e.store.Commit(ctx, updated, rec); err != nil {
		return Result{KeyMap: km, Err: e.persistError(km.ID, err)}
	}

	e.publish(updated)
	e.notify(Change{
		KeyMapID: updated.ID,
		Name:     updated.Name,
		Revision: updated.Revision,
		Edit:     r.edit,
		Session:  e.session,
		Before:   km.Trigger,
		After:    next,
	})

	e.logger.Info("edit applied",
		"keymap", updated.ID,
		"edit", r.edit.String(),
		"revision", updated.Revision,
		"hash", hash,
	)
	return Result{KeyMap: updated, Changed: true}
}

func (e *Editor) processCreate(ctx context.Context, km store.KeyMap) Result {
	if _, err := e.store.Put(ctx, km); err != nil {
		return Result{Err: e.persistError(km.ID, err)}
	}
	created, err := e.load(ctx, km.ID)
	if err != nil {
		return Result{Err: err}
	}
	e.publish(created)
	e.logger.Info("key map created", "keymap", created.ID, "name", created.Name)
	return Result{KeyMap: created, Changed: true}
}

func (e *Editor) load(ctx context.Context, id string) (store.KeyMap, error) {
	km, err := e.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		e.unpublish(id)
		return store.KeyMap{}, &EditorError{
			Code:     ErrCodeKeyMapNotFound,
			Message:  "no such key map",
			KeyMapID: id,
			Err:      err,
		}
	}
	if err != nil {
		return store.KeyMap{}, &EditorError{
			Code:     ErrCodeLoadFailed,
			Message:  "cannot read key map",
			KeyMapID: id,
			Err:      err,
		}
	}
	return km, nil
}

func (e *Editor) persistError(id string, err error) *EditorError {
	e.logger.Error("persist failed", "keymap", id, "error", err)
	return &EditorError{
		Code:     ErrCodePersistFailed,
		Message:  "cannot store key map",
		KeyMapID: id,
		Err:      err,
	}
}

// publish replaces the published map with a copy holding km.
func (e *Editor) publish(km store.KeyMap) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	old := *e.published.Load()
	next := make(map[string]store.KeyMap, len(old)+1)
	for id, v := range old {
		next[id] = v
	}
	next[km.ID] = km
	e.published.Store(&next)
}

func (e *Editor) unpublish(id string) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	old := *e.published.Load()
	if _, ok := old[id]; !ok {
		return
	}
	next := make(map[string]store.KeyMap, len(old))
	for k, v := range old {
		if k != id {
			next[k] = v
		}
	}
	e.published.Store(&next)
}

func (e *Editor) notify(c Change) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for id, ch := range e.subs {
		select {
		case ch <- c:
		default:
			e.logger.Warn("subscriber lagging, change dropped", "subscriber", id, "keymap", c.KeyMapID, "revision", c.Revision)
		}
	}
}
