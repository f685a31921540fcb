package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/readaid/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL + "/", Timeout: time.Second}, zerolog.Nop())
}

func TestAnalyzePostsRequest(t *testing.T) {
	var got model.AnalysisRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"difficulty_score":0.7,"confusion_probability":0.82,"needs_assistance":true,"explanation":"Dense clause.","simplified_text":"Pay first."}`))
	})

	req := model.AnalysisRequest{
		Text:               "The lessee shall remit payment forthwith.",
		ReadingTimeSeconds: 1.2,
		GazeMetrics:        &model.FixationMetrics{AvgFixationDurationMs: 250, Dispersion: 50},
	}
	res, err := client.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.NeedsAssistance)
	assert.InDelta(t, 0.82, res.ConfusionProbability, 1e-9)
	assert.Equal(t, "Pay first.", res.SimplifiedText)
	assert.Equal(t, req.Text, got.Text)
	assert.InDelta(t, 1.2, got.ReadingTimeSeconds, 1e-9)
	require.NotNil(t, got.GazeMetrics)
	assert.Nil(t, got.FaceFrames)
}

func TestAnalyzeRejectsNon2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})
	_, err := client.Analyze(context.Background(), model.AnalysisRequest{Text: "hello world"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestAnalyzeRejectsMalformedBodies(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>"},
		{name: "difficulty above one", body: `{"difficulty_score":1.5,"confusion_probability":0.2}`},
		{name: "negative confusion", body: `{"difficulty_score":0.5,"confusion_probability":-0.1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.Analyze(context.Background(), model.AnalysisRequest{Text: "hello world"})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond}, zerolog.Nop())
	_, err := client.Analyze(context.Background(), model.AnalysisRequest{Text: "hello world"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestCannedEstimate(t *testing.T) {
	easy := Canned(model.AnalysisRequest{Text: "The cat sat on the mat.", ReadingTimeSeconds: 1})
	assert.False(t, easy.NeedsAssistance)
	assert.NoError(t, Validate(easy))

	hard := Canned(model.AnalysisRequest{
		Text:               "Notwithstanding aforementioned indemnification, subrogation obligations persist.",
		ReadingTimeSeconds: 20,
		GazeMetrics:        &model.FixationMetrics{RegressionCount: 6},
	})
	assert.True(t, hard.NeedsAssistance)
	assert.Greater(t, hard.ConfusionProbability, easy.ConfusionProbability)
	assert.Contains(t, hard.Explanation, "6 regressions")
	assert.NoError(t, Validate(hard))

	empty := Canned(model.AnalysisRequest{})
	assert.Zero(t, empty.ConfusionProbability)
}
