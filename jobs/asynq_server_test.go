package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDailyCloseTask(t *testing.T) {
	task, err := NewDailyCloseTask(DailyClosePayload{Date: "2024-06-01"})
	require.NoError(t, err)
	assert.Equal(t, TaskDailyClose, task.Type())
	assert.JSONEq(t, `{"date":"2024-06-01"}`, string(task.Payload()))

	task, err = NewDailyCloseTask(DailyClosePayload{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(task.Payload()))

	_, err = NewDailyCloseTask(DailyClosePayload{Date: "01/06/2024"})
	assert.Error(t, err)
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	mr := miniredis.RunT(t)
	task, err := NewDailyCloseTask(DailyClosePayload{})
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Cron:      []CronRegistration{{Spec: "every day at noon", Task: task}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TaskDailyClose)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Handlers:  []TaskHandler{{Type: TaskDailyClose, Handler: func(context.Context, *asynq.Task) error { return nil }}},
		Cron:      []CronRegistration{{Spec: "5 0 * * *", Task: task}},
	})
	require.NoError(t, err)
	assert.NotNil(t, w.scheduler)
}

func TestNilWorkerRun(t *testing.T) {
	var w *Worker
	assert.Error(t, w.Run(context.Background()))
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func serveHealth(t *testing.T, h *Handler) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rec
}

func TestJobsHealth(t *testing.T) {
	rec := serveHealth(t, NewHandler(fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Retry: 1}}, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body QueueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueHealth{Queue: QueueDefault, Pending: 4, Retry: 1, Connected: true}, body)

	rec = serveHealth(t, NewHandler(fakeInspector{err: errors.New("dial tcp: refused")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveHealth(t, NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Connected)
}
