package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
)

// notifyCmd is a LISTEN/UNLISTEN command executed by the bridge's single
// receive-loop goroutine, which is the sole user of the pgx connection —
// adapted from the teacher's pkg/events.listenCmd/NotifyListener.
type notifyCmd struct {
	sql     string
	channel string
	result  chan error
}

// Bridge relays Postgres notifications into the local Bus: it LISTENs on
// every channel registered through Subscribe and republishes each
// notification whose JSON payload carries `topic` and `type` fields to
// that topic. Nothing in this repository issues NOTIFY — the outbox
// worker publishes only to its own node's Bus — and cmd/controlplane
// registers no channel, so as wired the Bridge relays no events between
// nodes; in-process consumers read directly from the Bus.
type Bridge struct {
	connString string
	bus        *Bus
	conn       *pgx.Conn
	connMu     sync.Mutex

	cmdCh   chan notifyCmd
	running atomic.Bool

	cancelLoop context.CancelFunc
	loopDone   chan struct{}

	listenTimeout time.Duration
	log           *slog.Logger
}

// NewBridge constructs a Bridge over the given Postgres connection string
// and local Bus.
func NewBridge(connString string, bus *Bus, listenTimeout time.Duration) *Bridge {
	return &Bridge{
		connString:    connString,
		bus:           bus,
		cmdCh:         make(chan notifyCmd, 16),
		listenTimeout: listenTimeout,
		log:           slog.With("component", "eventbus.bridge"),
	}
}

// Start establishes a dedicated LISTEN connection and begins relaying
// notifications into the local bus.
func (br *Bridge) Start(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, br.connString)
	if err != nil {
		return fmt.Errorf("connecting for LISTEN: %w", err)
	}

	br.connMu.Lock()
	br.conn = conn
	br.connMu.Unlock()
	br.running.Store(true)

	loopCtx, cancel := context.WithCancel(ctx)
	br.cancelLoop = cancel
	br.loopDone = make(chan struct{})
	go func() {
		defer close(br.loopDone)
		br.receiveLoop(loopCtx)
	}()

	br.log.Info("bridge started")
	return nil
}

// Subscribe issues LISTEN for channel, so this node's notifications start
// flowing into the local bus under the same topic name.
func (br *Bridge) Subscribe(ctx context.Context, channel string) error {
	if !br.running.Load() {
		return fmt.Errorf("bridge not started")
	}

	sanitized := pgx.Identifier{channel}.Sanitize()
	cmd := notifyCmd{sql: "LISTEN " + sanitized, channel: channel, result: make(chan error, 1)}

	select {
	case br.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (br *Bridge) receiveLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		br.processPendingCmds(ctx)

		br.connMu.Lock()
		conn := br.conn
		br.connMu.Unlock()

		if conn == nil {
			br.reconnect(ctx)
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		notification, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if waitCtx.Err() != nil {
				continue
			}
			br.log.Error("NOTIFY receive error", "error", err)
			br.reconnect(ctx)
			continue
		}

		var msg struct {
			Topic string `json:"topic"`
			Type  string `json:"type"`
		}
		if err := json.Unmarshal([]byte(notification.Payload), &msg); err != nil {
			br.log.Warn("dropping malformed NOTIFY payload", "channel", notification.Channel, "error", err)
			continue
		}

		br.bus.Publish(msg.Topic, Envelope{
			Topic:   msg.Topic,
			Type:    msg.Type,
			Payload: []byte(notification.Payload),
		})
	}
}

func (br *Bridge) processPendingCmds(ctx context.Context) {
	for {
		select {
		case cmd := <-br.cmdCh:
			br.connMu.Lock()
			conn := br.conn
			br.connMu.Unlock()

			if conn == nil {
				cmd.result <- fmt.Errorf("LISTEN connection not established")
				continue
			}
			_, err := conn.Exec(ctx, cmd.sql)
			cmd.result <- err
		default:
			return
		}
	}
}

func (br *Bridge) reconnect(ctx context.Context) {
	br.connMu.Lock()
	defer br.connMu.Unlock()

	if br.conn != nil {
		_ = br.conn.Close(ctx)
		br.conn = nil
	}

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := pgx.Connect(ctx, br.connString)
		if err != nil {
			br.log.Error("bridge reconnect failed", "error", err, "backoff", backoff)
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		br.conn = conn
		br.log.Info("bridge reconnected")
		return
	}
}

// Stop signals the receive loop to exit and closes the LISTEN connection.
func (br *Bridge) Stop(ctx context.Context) {
	br.running.Store(false)
	if br.cancelLoop != nil {
		br.cancelLoop()
	}
	if br.loopDone != nil {
		<-br.loopDone
	}

	br.connMu.Lock()
	defer br.connMu.Unlock()
	if br.conn != nil {
		_ = br.conn.Close(ctx)
		br.conn = nil
	}
}
