package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub, conn := dial(t)

	require.NoError(t, conn.WriteJSON(ControlMessage{Type: MsgIdentify, ClientID: "dashboard-1"}))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Notify("job.completed", map[string]interface{}{"id": 3, "status": "completed"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type string `json:"type"`
		Data struct {
			ID     int    `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "job.completed", got.Type)
	assert.Equal(t, 3, got.Data.ID)
	assert.Equal(t, "completed", got.Data.Status)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriptionFiltersEvents(t *testing.T) {
	hub, conn := dial(t)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(ControlMessage{Type: MsgSubscribe, Topics: []string{"recommendation"}}))
	ack := readEvent(t, conn)
	assert.Equal(t, "subscribed", ack.Type)

	hub.Notify("job.completed", 1)
	hub.Notify("recommendation.approved", 2)

	ev := readEvent(t, conn)
	assert.Equal(t, "recommendation.approved", ev.Type)
	assert.EqualValues(t, 2, ev.Data)
}

func TestClientWants(t *testing.T) {
	c := &Client{}
	assert.True(t, c.wants("job.failed"))

	c.topics = []string{"job"}
	assert.True(t, c.wants("job.failed"))
	assert.True(t, c.wants("job"))
	assert.False(t, c.wants("jobs.x"))
	assert.False(t, c.wants("recommendation.created"))
}

func TestNotifyWithoutListenersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Notify("recommendation.approved", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked")
	}
}
