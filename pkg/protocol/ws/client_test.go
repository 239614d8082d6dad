package ws

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"troczen.dev/pkg/crypto/p256k"
	"troczen.dev/pkg/encoders/envelopes"
	"troczen.dev/pkg/encoders/envelopes/eoseenvelope"
	"troczen.dev/pkg/encoders/envelopes/eventenvelope"
	"troczen.dev/pkg/encoders/envelopes/okenvelope"
	"troczen.dev/pkg/encoders/envelopes/reqenvelope"
	"troczen.dev/pkg/encoders/event"
	"troczen.dev/pkg/encoders/eventid"
	"troczen.dev/pkg/encoders/filter"
	"troczen.dev/pkg/encoders/filters"
	"troczen.dev/pkg/encoders/kind"
	"troczen.dev/pkg/encoders/kinds"
	"troczen.dev/pkg/encoders/tags"
	"troczen.dev/pkg/encoders/timestamp"
	"troczen.dev/pkg/utils/chk"
	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/normalize"
	"troczen.dev/pkg/utils/values"

	"golang.org/x/net/websocket"
)

func signedNote(t *testing.T, content string) (*event.E, *p256k.Signer) {
	t.Helper()
	signer := &p256k.Signer{}
	if err := signer.Generate(); chk.E(err) {
		t.Fatal(err)
	}
	ev := &event.E{
		Kind:      kind.TextNote,
		Tags:      tags.New(),
		Content:   []byte(content),
		CreatedAt: timestamp.FromUnix(1672068534),
		Pubkey:    signer.Pub(),
	}
	if err := ev.Sign(signer); chk.E(err) {
		t.Fatalf("Sign: %v", err)
	}
	return ev, signer
}

func TestPublish(t *testing.T) {
	textNote, _ := signedNote(t, "hello")
	// fake relay server
	var mu sync.Mutex
	var published bool
	ws := newWebsocketServer(
		func(conn *websocket.Conn) {
			var raw string
			if err := websocket.Message.Receive(conn, &raw); chk.T(err) {
				t.Errorf("websocket.Message.Receive: %v", err)
				return
			}
			label, rem, err := envelopes.Identify([]byte(raw))
			if err != nil || label != eventenvelope.L {
				t.Errorf("expected EVENT message, got %q", raw)
				return
			}
			sub, _, err := eventenvelope.ParseSubmission(rem)
			if chk.T(err) {
				t.Errorf("ParseSubmission: %v", err)
				return
			}
			mu.Lock()
			published = true
			mu.Unlock()
			if !bytes.Equal(sub.Event.ID, textNote.ID) {
				t.Errorf(
					"event ID mismatch: got %x, want %x",
					sub.Event.ID, textNote.ID,
				)
			}
			res := okenvelope.NewFrom(
				eventid.NewWith(textNote.ID), true,
			).Marshal(nil)
			if err := websocket.Message.Send(conn, string(res)); chk.T(err) {
				t.Errorf("websocket.Message.Send: %v", err)
			}
		},
	)
	defer ws.Close()
	// connect a client and send the text note
	rl := mustRelayConnect(ws.URL)
	defer rl.Close()
	if err := rl.Publish(context.Bg(), textNote); err != nil {
		t.Errorf("publish should have succeeded: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if !published {
		t.Errorf("fake relay server saw no event")
	}
}

func TestPublishRejected(t *testing.T) {
	textNote, _ := signedNote(t, "hello")
	// fake relay answers every submission with a not-ok result
	ws := newWebsocketServer(
		func(conn *websocket.Conn) {
			var raw string
			if err := websocket.Message.Receive(conn, &raw); chk.T(err) {
				t.Errorf("websocket.Message.Receive: %v", err)
				return
			}
			res := okenvelope.NewFrom(
				eventid.NewWith(textNote.ID), false,
				normalize.Blocked.F("no reason"),
			).Marshal(nil)
			if err := websocket.Message.Send(conn, string(res)); chk.T(err) {
				t.Errorf("websocket.Message.Send: %v", err)
			}
		},
	)
	defer ws.Close()
	rl := mustRelayConnect(ws.URL)
	defer rl.Close()
	if err := rl.Publish(context.Bg(), textNote); err == nil {
		t.Errorf("should have failed to publish")
	}
}

func TestPublishWriteFailed(t *testing.T) {
	textNote, _ := signedNote(t, "hello")
	// fake relay server
	ws := newWebsocketServer(
		func(conn *websocket.Conn) {
			// reject receive - force send error
			conn.Close()
		},
	)
	defer ws.Close()

	// connect a client and send a text note
	rl := mustRelayConnect(ws.URL)
	// Force brief period of time so that publish always fails on closed socket.
	time.Sleep(1 * time.Millisecond)
	if err := rl.Publish(context.Bg(), textNote); err == nil {
		t.Errorf("should have failed to publish")
	}
}

func TestSubscribeReceivesStoredEvents(t *testing.T) {
	textNote, _ := signedNote(t, "stored")
	// fake relay: answer the REQ with one matching event then EOSE
	ws := newWebsocketServer(
		func(conn *websocket.Conn) {
			var raw string
			if err := websocket.Message.Receive(conn, &raw); chk.T(err) {
				t.Errorf("websocket.Message.Receive: %v", err)
				return
			}
			label, rem, err := envelopes.Identify([]byte(raw))
			if err != nil || label != reqenvelope.L {
				t.Errorf("expected REQ message, got %q", raw)
				return
			}
			req, _, err := reqenvelope.Parse(rem)
			if chk.T(err) {
				t.Errorf("reqenvelope.Parse: %v", err)
				return
			}
			res, err := eventenvelope.NewResultWith(
				req.Subscription.String(), textNote,
			)
			if chk.T(err) {
				t.Errorf("NewResultWith: %v", err)
				return
			}
			if err = websocket.Message.Send(
				conn, string(res.Marshal(nil)),
			); chk.T(err) {
				t.Errorf("websocket.Message.Send: %v", err)
				return
			}
			eose := eoseenvelope.NewFrom(req.Subscription).Marshal(nil)
			if err = websocket.Message.Send(conn, string(eose)); chk.T(err) {
				t.Errorf("websocket.Message.Send: %v", err)
				return
			}
			io.ReadAll(conn) // hold the connection open
		},
	)
	defer ws.Close()
	rl := mustRelayConnect(ws.URL)
	defer rl.Close()
	c, cancel := context.Timeout(context.Bg(), 3*time.Second)
	defer cancel()
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	f.Limit = values.ToUintPointer(1)
	sub, err := rl.Subscribe(c, filters.New(f))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsub()
	select {
	case ev := <-sub.Events:
		if !bytes.Equal(ev.ID, textNote.ID) {
			t.Errorf("event ID mismatch: got %x, want %x", ev.ID, textNote.ID)
		}
	case <-c.Done():
		t.Fatal("no event before timeout")
	}
	select {
	case <-sub.EndOfStoredEvents:
	case <-c.Done():
		t.Fatal("no EOSE before timeout")
	}
}

func TestQuerySyncRequiresLimit(t *testing.T) {
	ws := newWebsocketServer(discardingHandler)
	defer ws.Close()
	rl := mustRelayConnect(ws.URL)
	defer rl.Close()
	f := filter.New()
	f.Kinds = kinds.New(kind.TextNote)
	if _, err := rl.QuerySync(context.Bg(), f); err == nil {
		t.Errorf("QuerySync should refuse a filter with no limit")
	}
}

func TestConnectContext(t *testing.T) {
	// fake relay server
	var mu sync.Mutex // guards connected to satisfy go test -race
	var connected bool
	ws := newWebsocketServer(
		func(conn *websocket.Conn) {
			mu.Lock()
			connected = true
			mu.Unlock()
			io.ReadAll(conn) // discard all input
		},
	)
	defer ws.Close()

	// relay client
	ctx, cancel := context.Timeout(context.Bg(), 3*time.Second)
	defer cancel()
	r, err := RelayConnect(ctx, ws.URL)
	if err != nil {
		t.Fatalf("RelayConnectContext: %v", err)
	}
	defer r.Close()

	mu.Lock()
	defer mu.Unlock()
	if !connected {
		t.Error("fake relay server saw no client connect")
	}
}

func TestConnectContextCanceled(t *testing.T) {
	// fake relay server
	ws := newWebsocketServer(discardingHandler)
	defer ws.Close()

	// relay client
	ctx, cancel := context.Cancel(context.Bg())
	cancel() // make ctx expired
	_, err := RelayConnect(ctx, ws.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf(
			"RelayConnectContext returned %v error; want context.Canceled", err,
		)
	}
}

func TestConnectWithOrigin(t *testing.T) {
	// fake relay server
	// default handler requires origin golang.org/x/net/websocket
	ws := httptest.NewServer(websocket.Handler(discardingHandler))
	defer ws.Close()

	// relay client
	r := NewRelay(context.Bg(), string(normalize.URL(ws.URL)))
	r.requestHeader = http.Header{"origin": {"https://example.com"}}
	ctx, cancel := context.Timeout(context.Bg(), 3*time.Second)
	defer cancel()
	if err := r.Connect(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func discardingHandler(conn *websocket.Conn) {
	io.ReadAll(conn) // discard all input
}

func newWebsocketServer(handler func(*websocket.Conn)) (server *httptest.Server) {
	return httptest.NewServer(
		&websocket.Server{
			Handshake: anyOriginHandshake,
			Handler:   handler,
		},
	)
}

// anyOriginHandshake is an alternative to default in golang.org/x/net/websocket
// which checks for origin. nostr client sends no origin and it makes no difference
// for the tests here anyway.
var anyOriginHandshake = func(
	conf *websocket.Config, r *http.Request,
) (err error) {
	return nil
}

func mustRelayConnect(url string) (client *Client) {
	rl, err := RelayConnect(context.Bg(), url)
	if err != nil {
		panic(err.Error())
	}
	return rl
}
