package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campuscircle/campuscircle-go/shared/protocol"
)

func TestZZDebugReconnectFrames(t *testing.T) {
	broker, url := startBroker(t, map[string]string{"tok": "alice"})
	c := newTestClient(t, url, "tok")

	require.NoError(t, c.Connect(context.Background(), "alice"))
	broker.dropConnections()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if broker.connCount() == 2 && c.IsConnected() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	c.SendMessage(context.Background(), "bob", "post-reconnect", "")
	time.Sleep(1 * time.Second)

	broker.mu.Lock()
	for i, env := range broker.frames {
		t.Logf("frame %d: type=%s topic=%s", i, env.Type, env.Topic)
	}
	broker.mu.Unlock()
	t.Logf("connCount=%d subscribes=%d", broker.connCount(), len(broker.framesOfType(protocol.TypeSubscribe)))
}
