package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/readaid/internal/model"
	"github.com/verte-zerg/readaid/internal/session"
	"github.com/verte-zerg/readaid/internal/source"
)

type staticAnalyzer struct {
	result model.AnalysisResult
}

func (a staticAnalyzer) Analyze(context.Context, model.AnalysisRequest) (model.AnalysisResult, error) {
	return a.result, nil
}

var paragraph = model.TextRegion{ID: "p1", Text: "Heretofore the party of the first part.", Width: 200, Height: 20}

func newTestServer(t *testing.T, origins []string) (*Server, *httptest.Server) {
	t.Helper()
	base := session.Options{
		Analyzer: staticAnalyzer{result: model.AnalysisResult{
			ConfusionProbability: 0.9,
			NeedsAssistance:      true,
			Explanation:          "Archaic phrasing.",
		}},
		Logger: zerolog.Nop(),
	}
	srv := New(Config{Origins: origins}, base, zerolog.Nop())
	srv.SetRegions(model.RegionSnapshot{
		Regions: []model.TextRegion{paragraph},
		Page:    model.PageGeometry{PageWidth: 400, PageHeight: 400, RenderedWidth: 400, RenderedHeight: 400},
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.cancel()
		ts.Close()
	})
	return srv, ts
}

func dialSession(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func sendGaze(t *testing.T, conn *websocket.Conn, p model.Point, tsMs int64) {
	t.Helper()
	data, err := source.Encode(source.Event{Kind: source.KindGaze, Gaze: model.GazeSample{X: p.X, Y: p.Y, TimestampMs: tsMs}})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// readUntil reads assistance messages until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(AssistanceMessage) bool) AssistanceMessage {
	t.Helper()
	for {
		var msg AssistanceMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "readaid_active_sessions")
}

func TestWebSocketSessionPushesAssistance(t *testing.T) {
	_, ts := newTestServer(t, nil)
	conn := dialSession(t, ts)

	for _, tsMs := range []int64{0, 500, 1000} {
		sendGaze(t, conn, paragraph.Centroid(), tsMs)
	}

	for {
		var msg AssistanceMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "assistance", msg.Type)
		assert.NotEmpty(t, msg.SessionID)
		if msg.State != "suggesting" {
			continue
		}
		assert.Equal(t, "Archaic phrasing.", msg.Explanation)
		assert.Equal(t, "p1", msg.RegionID)
		assert.Equal(t, "confused", msg.Emotion)
		require.NotNil(t, msg.Overlay)
		assert.Equal(t, 200.0, msg.Overlay.Width)
		break
	}

	dismiss, err := source.Encode(source.Event{Kind: source.KindDismiss})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, dismiss))
	var msg AssistanceMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "dismissed", msg.State)
	assert.Nil(t, msg.Overlay)
}

func TestWebSocketRejectsUnknownOrigin(t *testing.T) {
	_, ts := newTestServer(t, []string{"http://reader.local"})
	header := http.Header{"Origin": []string{"http://evil.local"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSetRegionsReachesLiveSession(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	conn := dialSession(t, ts)

	sendGaze(t, conn, paragraph.Centroid(), 0)
	readUntil(t, conn, func(m AssistanceMessage) bool { return m.RegionID == "p1" })

	moved := model.TextRegion{ID: "p2", Text: "The lessee shall remit forthwith.", X: 1000, Y: 1000, Width: 200, Height: 20}
	srv.SetRegions(model.RegionSnapshot{
		Regions: []model.TextRegion{moved},
		Page:    model.PageGeometry{PageWidth: 1600, PageHeight: 1600, RenderedWidth: 1600, RenderedHeight: 1600},
	})
	// p1 is gone, so the dwell resets.
	msg := readUntil(t, conn, func(m AssistanceMessage) bool { return m.RegionID == "" })
	assert.Equal(t, "idle", msg.State)

	sendGaze(t, conn, moved.Centroid(), 100)
	msg = readUntil(t, conn, func(m AssistanceMessage) bool { return m.RegionID != "" })
	assert.Equal(t, "p2", msg.RegionID)
}

func TestClosedSessionIsUnregistered(t *testing.T) {
	srv, ts := newTestServer(t, nil)
	conn := dialSession(t, ts)
	sendGaze(t, conn, paragraph.Centroid(), 0)
	readUntil(t, conn, func(m AssistanceMessage) bool { return m.RegionID == "p1" })

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.sessions) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
