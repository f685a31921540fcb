package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/readaid/internal/model"
)

func TestDecodeEnvelopes(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"gaze","x":10,"y":20,"timestamp_ms":400,"confidence":0.9}`))
	require.NoError(t, err)
	assert.Equal(t, KindGaze, ev.Kind)
	assert.Equal(t, model.GazeSample{X: 10, Y: 20, TimestampMs: 400, Confidence: 0.9}, ev.Gaze)

	ev, err = Decode([]byte(`{"type":"regions","regions":[{"id":"s1","text":"Hello there.","x":0,"y":0,"width":100,"height":20}],"page":{"page_width":600,"page_height":800}}`))
	require.NoError(t, err)
	require.Len(t, ev.Regions.Regions, 1)
	assert.Equal(t, "s1", ev.Regions.Regions[0].ID)
	assert.Equal(t, 600.0, ev.Regions.Page.PageWidth)

	ev, err = Decode([]byte(`{"type":"dismiss"}`))
	require.NoError(t, err)
	assert.Equal(t, KindDismiss, ev.Kind)

	_, err = Decode([]byte(`{"type":"wink"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeIsFlat(t *testing.T) {
	data, err := Encode(Event{Kind: KindFace, Face: model.FaceSignal{Probability: 0.4, TimestampMs: 10}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"face","probability":0.4,"timestamp_ms":10}`, string(data))

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 0.4, ev.Face.Probability)
}

func collect(t *testing.T, stream Stream) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out reading stream")
		}
	}
}

func TestReplayReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	data := strings.Join([]string{
		`# recorded session`,
		`{"type":"regions","regions":[],"page":{}}`,
		``,
		`{"type":"gaze","x":1,"y":1,"timestamp_ms":0}`,
		`{"type":"gaze","x":2,"y":1,"timestamp_ms":400}`,
		`{"type":"dismiss"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	stream, err := NewReplay(path, 0).Open(context.Background())
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	events := collect(t, stream)
	require.Len(t, events, 4)
	assert.Equal(t, KindRegions, events[0].Kind)
	assert.Equal(t, int64(400), events[2].Gaze.TimestampMs)
	assert.Equal(t, KindDismiss, events[3].Kind)
	assert.NoError(t, stream.Err())
}

func TestReplayReportsBadLine(t *testing.T) {
	stream := NewReaderStream(context.Background(), strings.NewReader("{\"type\":\"gaze\",\"timestamp_ms\":0}\n{\"type\":\"blink\"}\n"), 0)
	events := collect(t, stream)
	assert.Len(t, events, 1)
	require.Error(t, stream.Err())
	assert.Contains(t, stream.Err().Error(), "line 2")
	assert.ErrorIs(t, stream.Err(), ErrUnknownKind)
}

func TestReplayMissingFile(t *testing.T) {
	_, err := NewReplay(filepath.Join(t.TempDir(), "nope.jsonl"), 0).Open(context.Background())
	assert.Error(t, err)
}

func TestReplayPacesGaze(t *testing.T) {
	input := "{\"type\":\"gaze\",\"timestamp_ms\":0}\n{\"type\":\"gaze\",\"timestamp_ms\":100}\n"
	start := time.Now()
	stream := NewReaderStream(context.Background(), strings.NewReader(input), 2)
	events := collect(t, stream)
	require.Len(t, events, 2)
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestRegionWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "regions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"regions":[],"page":{}}`), 0o644))

	snap, err := LoadRegions(path)
	require.NoError(t, err)
	assert.Empty(t, snap.Regions)

	rw, err := NewRegionWatcher(path, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = rw.Close() }()

	updated := `{"regions":[{"id":"p1","text":"A new paragraph.","x":0,"y":0,"width":50,"height":10}],"page":{"page_width":100,"page_height":100}}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case snap := <-rw.Snapshots():
		require.Len(t, snap.Regions, 1)
		assert.Equal(t, "p1", snap.Regions[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
	}
}

func TestConnStreamRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	streams := make(chan *ConnStream, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		streams <- NewConnStream(conn, zerolog.Nop())
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	stream := <-streams
	defer func() { _ = stream.Close() }()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"gaze","x":5,"y":6,"timestamp_ms":7}`)))

	select {
	case ev := <-stream.Events():
		assert.Equal(t, KindGaze, ev.Kind)
		assert.Equal(t, int64(7), ev.Gaze.TimestampMs)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
	}

	require.NoError(t, stream.Send(map[string]string{"type": "assistance"}))
	var got map[string]string
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "assistance", got["type"])

	require.NoError(t, client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	for range stream.Events() {
	}
	assert.NoError(t, stream.Err())
}
