package wsauthority

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/missionctl/internal/config"
	"github.com/codeready-toolchain/missionctl/internal/eventbus"
	"github.com/codeready-toolchain/missionctl/internal/storage"
)

type fakeStarter struct {
	mission *storage.Mission
	err     error
}

func (f *fakeStarter) StartMission(_ context.Context, _, _ string, _ map[string]any, _ bool, _ *string) (*storage.Mission, error) {
	return f.mission, f.err
}

func TestChatHandler_DefaultIntentFallsBackImmediately(t *testing.T) {
	codec := NewTokenCodec()
	token := codec.Encode(Claims{Subject: "user-1", Role: "customer"})
	bus := eventbus.New(16)
	starter := &fakeStarter{mission: &storage.Mission{ID: "m-1", Status: storage.MissionPending}}

	handler := NewChatHandler(Policy{RouteID: "customer-chat"}, codec, config.WSAuthConfig{Environment: "development"}, starter, bus, false)

	srv := httptest.NewServer(http.HandlerFunc(handler.Serve))
	defer srv.Close()

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"question":"hi there"}`)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"assistant_fallback"`)
}

func TestChatHandler_MissionClassIntentRelaysUntilTerminal(t *testing.T) {
	codec := NewTokenCodec()
	token := codec.Encode(Claims{Subject: "user-1", Role: "customer"})
	bus := eventbus.New(16)
	starter := &fakeStarter{mission: &storage.Mission{ID: "m-2", Status: storage.MissionPending}}

	handler := NewChatHandler(Policy{RouteID: "customer-chat"}, codec, config.WSAuthConfig{Environment: "development"}, starter, bus, false)

	srv := httptest.NewServer(http.HandlerFunc(handler.Serve))
	defer srv.Close()

	ctx := context.Background()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"question":"find the bug","mission_type":"deep_analysis"}`)))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"status"`)

	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.Publish("mission.m-2", eventbus.Envelope{
			Topic:   "mission.m-2",
			Type:    "mission_completed",
			Payload: []byte(`{"mission_id":"m-2","sequence":1,"event_type":"mission_completed","payload":{"outcome":"success"}}`),
		})
	}()

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"mission_event"`)

	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, string(data), `"complete"`)
}
