package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "offline-worker/internal/common/errors"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/models"
	"offline-worker/internal/notification"
	"offline-worker/internal/store"
)

type fakeReconciler struct {
	calls int
	err   error
}

func (f *fakeReconciler) ScheduleSync(ctx context.Context) error {
	f.calls++
	return f.err
}

type handlerFixture struct {
	handler       *Handler
	notifications *notification.NotificationStore
	notifier      *LogNotifier
	windows       *LogWindowClient
	reconciler    *fakeReconciler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	ns := notification.NewStore(store.NewMemory(), log)
	notifier := NewLogNotifier(log)
	windows := NewLogWindowClient(log)
	reconciler := &fakeReconciler{}

	h, err := NewHandler(ns, notifier, windows, reconciler, log)
	require.NoError(t, err)
	return &handlerFixture{
		handler:       h,
		notifications: ns,
		notifier:      notifier,
		windows:       windows,
		reconciler:    reconciler,
	}
}

func TestHandlePush_PersistsBeforeDisplay(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	payload := `{"id":"n1","title":"Nuovo messaggio","body":"Hai un nuovo messaggio","userId":42,"url":"/messages"}`
	require.NoError(t, f.handler.HandlePush(ctx, []byte(payload)))

	stored, err := f.notifications.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Nuovo messaggio", stored.Title)
	assert.False(t, stored.Read)

	displayed := f.notifier.Displayed()
	require.Len(t, displayed, 1)
	assert.Equal(t, "/messages", displayed[0].URL)
	assert.Equal(t, []string{models.ActionOpen, models.ActionClose}, displayed[0].Actions)
}

func TestHandlePush_AppliesDefaults(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handler.HandlePush(ctx, []byte(`{"id":"n2","title":"Promemoria","body":""}`)))

	stored, err := f.notifications.Get(ctx, "n2")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultIcon, stored.Icon)
	assert.Equal(t, models.DefaultURL, stored.URL)
	assert.WithinDuration(t, time.Now().UTC(), stored.Timestamp, 5*time.Second)

	displayed := f.notifier.Displayed()
	require.Len(t, displayed, 1)
	assert.Equal(t, "n2", displayed[0].Tag)
}

func TestHandlePush_MalformedPayloadDropped(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	cases := []string{
		`not json at all`,
		`{"title":"missing id","body":"x"}`,
		`{"id":"","title":"empty id","body":"x"}`,
		`{"id":"n3","title":"bad userId","body":"x","userId":"forty-two"}`,
	}
	for _, raw := range cases {
		err := f.handler.HandlePush(ctx, []byte(raw))
		require.Error(t, err, raw)
		assert.Equal(t, apperrors.ErrCodeMalformedPushPayload, apperrors.CodeOf(err), raw)
	}

	all, err := f.notifications.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.notifier.Displayed())
}

func TestHandleClick_CloseDoesNothing(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handler.HandlePush(ctx, []byte(`{"id":"n1","title":"T","body":"B"}`)))
	require.NoError(t, f.handler.HandleClick(ctx, "n1", models.ActionClose))

	stored, err := f.notifications.Get(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, stored.Read)
	assert.Zero(t, f.reconciler.calls)
}

func TestHandleClick_MarksReadAndReconciles(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	payload := `{"id":"n1","title":"Turno","body":"B","url":"/schedule"}`
	require.NoError(t, f.handler.HandlePush(ctx, []byte(payload)))
	require.NoError(t, f.handler.HandleClick(ctx, "n1", models.ActionOpen))

	stored, err := f.notifications.Get(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, stored.Read)

	pending, err := f.notifications.PendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "n1", pending[0].NotificationID)
	assert.Equal(t, 1, f.reconciler.calls)

	// No window matched, so a new one opens at the exact URL.
	assert.Equal(t, []string{"/schedule"}, f.windows.Opened())
}

func TestHandleClick_FocusesExactURLMatch(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handler.HandlePush(ctx, []byte(`{"id":"n1","title":"T","body":"B","url":"/schedule"}`)))
	f.windows.SetOpen("/", "/schedule")

	require.NoError(t, f.handler.HandleClick(ctx, "n1", ""))

	assert.Equal(t, []string{"/schedule"}, f.windows.Focused())
	assert.Equal(t, []string{"/", "/schedule"}, f.windows.Opened())
}

func TestHandleClick_ReconcileFailureKeepsReceipt(t *testing.T) {
	f := newHandlerFixture(t)
	f.reconciler.err = apperrors.NewReconcileFailedError(assert.AnError)
	ctx := context.Background()

	require.NoError(t, f.handler.HandlePush(ctx, []byte(`{"id":"n1","title":"T","body":"B"}`)))
	require.NoError(t, f.handler.HandleClick(ctx, "n1", models.ActionOpen))

	pending, err := f.notifications.PendingReceipts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
