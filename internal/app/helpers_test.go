package app

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"placement_workflow/internal/domain/subject"
	"placement_workflow/internal/infra/memory"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"
)

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type sentMessage struct {
	chatID  int64
	text    string
	options *telebot.SendOptions
}

type fakeTelegramClient struct {
	mu        sync.Mutex
	sent      []sentMessage
	err       error
	failChats map[int64]error
}

func (c *fakeTelegramClient) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if err := c.failChats[chatID]; err != nil {
		return err
	}
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text, options: options})
	return nil
}

func (c *fakeTelegramClient) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

type testEnv struct {
	store    *memory.Store
	telegram *fakeTelegramClient
	notifs   *NotificationService
	fanout   *NotificationFanout
	audit    *AuditTrail
	machine  *StatusMachine
	query    *SubjectQueryService
	admin    *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	tg := &fakeTelegramClient{}
	logger := discardLogger()
	clock := func() time.Time { return testNow }

	notifs := NewNotificationService(store.Notifications(), store.Links(), tg, logger)
	notifs.now = clock
	fanout := NewNotificationFanout(store.Notifications(), notifs, DefaultNotificationTTL, logger)
	fanout.now = clock
	auditTrail := NewAuditTrail(store.Transitions(), store.Subjects())
	machine := NewStatusMachine(store.Subjects(), auditTrail, fanout, store, logger)
	machine.now = clock
	admin := NewAdminService(store.Subjects(), store.Links(), 4242)
	admin.now = clock

	return &testEnv{
		store:    store,
		telegram: tg,
		notifs:   notifs,
		fanout:   fanout,
		audit:    auditTrail,
		machine:  machine,
		query:    NewSubjectQueryService(store.Subjects()),
		admin:    admin,
	}
}

func (e *testEnv) register(t *testing.T, kind subject.Kind, owner, name, email, institution string) *subject.Subject {
	t.Helper()
	s, err := e.admin.RegisterSubject(context.Background(), kind, owner, subject.Metadata{
		Name:        name,
		Email:       email,
		Institution: institution,
	})
	require.NoError(t, err)
	return s
}

func (e *testEnv) currentStatus(t *testing.T, s *subject.Subject) subject.Status {
	t.Helper()
	got, err := e.query.GetSubject(context.Background(), s.ID)
	require.NoError(t, err)
	return got.Status
}
