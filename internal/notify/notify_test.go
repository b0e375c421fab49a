package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
)

type recordingNotifier struct {
	events []Event
	err    error
}

func (r *recordingNotifier) Notify(ctx context.Context, event Event) error {
	r.events = append(r.events, event)
	return r.err
}

func completedRecord(t *testing.T) *models.RequestRecord {
	t.Helper()
	user := "user-1"
	rec := models.NewRequestRecord("summarization", "gemini-2.5-flash", "", "text", &user, nil)
	now := time.Now().UTC()
	require.NoError(t, rec.MarkProcessing(now))
	require.NoError(t, rec.MarkCompleted("gemini-2.5-flash", "summary", 100, 20, 3, 850, now))
	return rec
}

func TestNewEvent(t *testing.T) {
	rec := completedRecord(t)
	event := NewEvent(rec)

	assert.Equal(t, rec.ID, event.RequestID)
	assert.Equal(t, models.StatusCompleted, event.Status)
	assert.Equal(t, int64(3), event.CostCents)
	assert.Equal(t, int64(850), event.LatencyMS)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, 1, event.Attempts)
	assert.Empty(t, event.ErrorMessage)
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("subscriber gone")}
	last := &recordingNotifier{}

	err := Multi{ok, broken, last}.Notify(context.Background(), NewEvent(completedRecord(t)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscriber gone")
	assert.Len(t, ok.events, 1)
	assert.Len(t, broken.events, 1)
	assert.Len(t, last.events, 1)
}

func TestLogAndNoop(t *testing.T) {
	event := NewEvent(completedRecord(t))
	assert.NoError(t, NewLogNotifier().Notify(context.Background(), event))
	assert.NoError(t, Noop{}.Notify(context.Background(), event))
	assert.NoError(t, Multi{}.Notify(context.Background(), event))
}
