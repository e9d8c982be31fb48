package monitor

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/triviaserver/room"
	"github.com/wfunc/triviaserver/state"
)

var (
	_ room.Metrics   = (*Monitor)(nil)
	_ room.RoomGauge = (*Monitor)(nil)
)

func TestMetrics_RegisterOnPrivateRegistry(t *testing.T) {
	// Two sets on separate registries never collide.
	m1 := NewMetrics("trivia", prometheus.NewRegistry())
	m2 := NewMetrics("trivia", prometheus.NewRegistry())
	assert.NotSame(t, m1.AnswersSubmitted, m2.AnswersSubmitted)
}

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor("trivia")

	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncSessions()
	m.IncAnswers()
	m.IncAnswers()
	m.IncMessagesReceived("ok")
	m.IncMessagesReceived("limited")
	m.ObserveTransition(state.PhaseAsking, state.PhaseAnswersLocked)
	m.ObserveTransition(state.PhaseAsking, state.PhaseAnswersLocked)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.OnlinePlayers))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.ActiveRooms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.ActiveSessions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.AnswersSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.MessagesReceived.WithLabelValues("limited")))
	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.metrics.PhaseTransitions.WithLabelValues(string(state.PhaseAsking), string(state.PhaseAnswersLocked))))
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor("trivia")
	m.IncAnswers()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "trivia_answers_submitted_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
