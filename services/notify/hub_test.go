package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHubServer(hub *Hub) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseUint(r.URL.Query().Get("uid"), 10, 32)
		hub.HandleWebSocket(w, r, uint(userID))
	}))
}

func dialHub(t *testing.T, server *httptest.Server, userID uint) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?uid=" + strconv.FormatUint(uint64(userID), 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHubRoutesAlertToOwningUserOnly(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	server := newHubServer(hub)
	defer server.Close()

	conn1 := dialHub(t, server, 1)
	defer conn1.Close()
	conn2 := dialHub(t, server, 2)
	defer conn2.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.PushAlert(AlertEvent{
		EventID:      NewEventID(),
		AlertID:      7,
		UserID:       1,
		StockSymbol:  "AAPL",
		CurrentPrice: decimal.NewFromInt(101),
		Direction:    "above",
		TriggeredAt:  time.Now(),
	})

	conn1.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn1.ReadMessage()
	require.NoError(t, err)

	var message WebSocketMessage
	require.NoError(t, json.Unmarshal(payload, &message))
	assert.Equal(t, "alert", message.Type)

	// The other user's session must stay silent
	conn2.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, _, err = conn2.ReadMessage()
	require.Error(t, err)
}

func TestHubDeliversOrderUpdates(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	server := newHubServer(hub)
	defer server.Close()

	conn := dialHub(t, server, 3)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.PushOrderUpdate(OrderEvent{
		EventID:     NewEventID(),
		OrderID:     11,
		UserID:      3,
		StockSymbol: "MSFT",
		Status:      "completed",
		Message:     "Order executed",
		OccurredAt:  time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var message WebSocketMessage
	require.NoError(t, json.Unmarshal(payload, &message))
	assert.Equal(t, "order_update", message.Type)
}

func TestHubShutdownReleasesClientReaders(t *testing.T) {
	baseline := runtime.NumGoroutine()

	hub := NewHub()
	server := newHubServer(hub)

	conns := make([]*websocket.Conn, 0, 3)
	for i := uint(1); i <= 3; i++ {
		conns = append(conns, dialHub(t, server, i))
	}
	require.Eventually(t, func() bool { return hub.ClientCount() == 3 }, time.Second, 10*time.Millisecond)

	hub.Shutdown()
	assert.Equal(t, 0, hub.ClientCount())

	for _, conn := range conns {
		conn.Close()
	}
	server.Close()

	// Every reader and writer pump must exit once the hub is gone
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+2
	}, 2*time.Second, 20*time.Millisecond, "hub goroutines still alive after shutdown")
}
