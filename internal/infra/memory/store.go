// Package memory holds in-process implementations of the repositories. They
// honor the same contracts as the Postgres ones, including transactions, and
// back the service tests.
package memory

import (
	"context"
	"sync"

	"placement_workflow/internal/domain/audit"
	"placement_workflow/internal/domain/notification"
	"placement_workflow/internal/domain/subject"
	"placement_workflow/internal/domain/telegram"

	"github.com/google/uuid"
)

// Operation names accepted by FailOn.
const (
	OpSubjectCreate      = "subjects.create"
	OpSubjectGet         = "subjects.get"
	OpSubjectUpdate      = "subjects.update"
	OpSubjectList        = "subjects.list"
	OpTransitionAppend   = "transitions.append"
	OpTransitionList     = "transitions.list"
	OpNotificationCreate = "notifications.create"
	OpNotificationExists = "notifications.exists"
	OpNotificationList   = "notifications.list"
	OpNotificationMark   = "notifications.mark"
	OpLinkGet            = "links.get"
)

type txKey struct{}

type state struct {
	subjects      map[uuid.UUID]subject.Subject
	subjectOrder  []uuid.UUID
	transitions   []audit.Transition
	seq           int64
	notifications map[uuid.UUID]notification.Notification
	notifOrder    []uuid.UUID
	links         map[string]telegram.Link
}

func (st *state) clone() state {
	c := state{
		subjects:      make(map[uuid.UUID]subject.Subject, len(st.subjects)),
		subjectOrder:  append([]uuid.UUID(nil), st.subjectOrder...),
		transitions:   append([]audit.Transition(nil), st.transitions...),
		seq:           st.seq,
		notifications: make(map[uuid.UUID]notification.Notification, len(st.notifications)),
		notifOrder:    append([]uuid.UUID(nil), st.notifOrder...),
		links:         make(map[string]telegram.Link, len(st.links)),
	}
	for k, v := range st.subjects {
		c.subjects[k] = v
	}
	for k, v := range st.notifications {
		c.notifications[k] = v
	}
	for k, v := range st.links {
		c.links[k] = v
	}
	return c
}

// Store is a mutex-guarded database shared by all memory repositories.
type Store struct {
	mu       sync.Mutex
	data     state
	failures map[string]error

	// BeforeGetSubject, when set, runs before every subject read outside a
	// transaction. Tests use it to line up concurrent requests.
	BeforeGetSubject func()
}

func NewStore() *Store {
	return &Store{
		data: state{
			subjects:      make(map[uuid.UUID]subject.Subject),
			notifications: make(map[uuid.UUID]notification.Notification),
			links:         make(map[string]telegram.Link),
		},
		failures: make(map[string]error),
	}
}

// FailOn makes every later call of op return err. A nil err clears it.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// lock takes the store mutex unless ctx already runs inside one of this
// store's transactions, which holds it.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(op string) error {
	return s.failures[op]
}

// WithinTransaction runs fn under the store lock and restores the previous
// state if fn fails.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) Subjects() *SubjectRepository {
	return &SubjectRepository{store: s}
}

func (s *Store) Transitions() *TransitionRepository {
	return &TransitionRepository{store: s}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{store: s}
}

func (s *Store) Links() *LinkRepository {
	return &LinkRepository{store: s}
}
