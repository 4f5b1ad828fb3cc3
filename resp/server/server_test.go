package server

import (
	"bytes"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/mKV/resp"
	"github.com/ValentinKolb/mKV/resp/client"
	"github.com/ValentinKolb/mKV/resp/common"
)

// startTestServer starts a server on an ephemeral port and returns a
// matching client configuration
func startTestServer(t *testing.T, mutate func(*common.ServerConfig)) (*Server, common.ClientConfig) {
	t.Helper()

	cfg := common.DefaultServerConfig()
	cfg.Port = 0 // ephemeral
	if mutate != nil {
		mutate(&cfg)
	}

	srv := New(cfg)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve() }()

	t.Cleanup(func() {
		srv.Stop()
		select {
		case err := <-serveDone:
			if err != nil {
				t.Errorf("Serve returned error on shutdown: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Serve did not return after Stop")
		}
	})

	addr := srv.Addr().(*net.TCPAddr)
	return srv, common.ClientConfig{Host: "127.0.0.1", Port: uint16(addr.Port)}
}

// dial connects a test client
func dial(t *testing.T, cfg common.ClientConfig) *client.Client {
	t.Helper()
	c, err := client.Connect(cfg)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestSetGet tests SET hello world / GET hello end to end
func TestSetGet(t *testing.T) {
	_, cfg := startTestServer(t, nil)
	c := dial(t, cfg)

	if err := c.Set("hello", []byte("world")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := c.Get("hello")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || !bytes.Equal(value, []byte("world")) {
		t.Errorf("Expected world, got %q (ok=%t)", value, ok)
	}
}

// TestGetMissing tests that a missing key yields the null reply
func TestGetMissing(t *testing.T) {
	_, cfg := startTestServer(t, nil)
	c := dial(t, cfg)

	_, ok, err := c.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Get of a missing key should report absent")
	}
}

// TestPing tests PING and PING msg
func TestPing(t *testing.T) {
	_, cfg := startTestServer(t, nil)
	c := dial(t, cfg)

	reply, err := c.Ping(nil)
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if string(reply) != "PONG" {
		t.Errorf("Expected PONG, got %q", reply)
	}

	reply, err = c.Ping([]byte("hello"))
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if string(reply) != "hello" {
		t.Errorf("Expected hello, got %q", reply)
	}
}

// TestSetWithExpiry tests SET k v PX 100; after the deadline the key
// is gone
func TestSetWithExpiry(t *testing.T) {
	_, cfg := startTestServer(t, nil)
	c := dial(t, cfg)

	if err := c.SetExpires("k", []byte("v"), 100*time.Millisecond); err != nil {
		t.Fatalf("SetExpires failed: %v", err)
	}

	if _, ok, _ := c.Get("k"); !ok {
		t.Fatal("Key should be present before the deadline")
	}

	time.Sleep(200 * time.Millisecond)

	if _, ok, _ := c.Get("k"); ok {
		t.Error("Key should be absent after the deadline")
	}
}

// TestSetClearsExpiry tests that overwriting removes the pending TTL
func TestSetClearsExpiry(t *testing.T) {
	_, cfg := startTestServer(t, nil)
	c := dial(t, cfg)

	if err := c.SetExpires("k", []byte("v1"), 100*time.Millisecond); err != nil {
		t.Fatalf("SetExpires failed: %v", err)
	}
	if err := c.Set("k", []byte("v2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	value, ok, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok || string(value) != "v2" {
		t.Errorf("Expected v2 to survive, got %q (ok=%t)", value, ok)
	}
}

// TestUnknownCommand tests the error reply for unsupported commands
func TestUnknownCommand(t *testing.T) {
	_, cfg := startTestServer(t, nil)

	conn, err := net.Dial("tcp", cfg.Endpoint())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	fc := resp.NewConnection(conn)

	request := resp.NewArray(resp.NewBulk([]byte("FLUSHALL")))
	if err := fc.WriteFrame(&request); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	reply, err := fc.ReadFrame()
	if err != nil || reply == nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if reply.Type != resp.FrameError || !strings.Contains(reply.Str, "unknown command 'flushall'") {
		t.Errorf("Expected unknown command error, got %#v", reply)
	}
}

// TestPubSub tests a subscriber receiving a published message and the
// publisher seeing the receiver count
func TestPubSub(t *testing.T) {
	_, cfg := startTestServer(t, nil)

	subscriber := dial(t, cfg)
	sub, err := subscriber.Subscribe("news")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	publisher := dial(t, cfg)
	n, err := publisher.Publish("news", []byte("hi"))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Publish should report 1 receiver, got %d", n)
	}

	type result struct {
		msg client.Message
		err error
	}
	got := make(chan result, 1)
	go func() {
		msg, err := sub.NextMessage()
		got <- result{msg, err}
	}()

	select {
	case r := <-got:
		if r.err != nil {
			t.Fatalf("NextMessage failed: %v", r.err)
		}
		if r.msg.Channel != "news" || string(r.msg.Payload) != "hi" {
			t.Errorf("Expected (news, hi), got (%s, %s)", r.msg.Channel, r.msg.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Message did not arrive")
	}
}

// TestSubscriberModeRestrictions tests that a non-subscribe command in
// subscriber mode gets an error naming it while the session survives
func TestSubscriberModeRestrictions(t *testing.T) {
	_, cfg := startTestServer(t, nil)

	conn, err := net.Dial("tcp", cfg.Endpoint())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	fc := resp.NewConnection(conn)

	write := func(parts ...string) {
		t.Helper()
		elems := make([]resp.Frame, 0, len(parts))
		for _, p := range parts {
			elems = append(elems, resp.NewBulk([]byte(p)))
		}
		frame := resp.NewArray(elems...)
		if err := fc.WriteFrame(&frame); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	read := func() *resp.Frame {
		t.Helper()
		frame, err := fc.ReadFrame()
		if err != nil || frame == nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		return frame
	}

	// Enter subscriber mode
	write("subscribe", "news")
	confirm := read()
	if confirm.Type != resp.FrameArray || string(confirm.Array[0].Bulk) != "subscribe" {
		t.Fatalf("Expected subscribe confirmation, got %#v", confirm)
	}
	if confirm.Array[2].Int != 1 {
		t.Errorf("Expected subscription count 1, got %d", confirm.Array[2].Int)
	}

	// GET is not allowed here; the reply names the offending command
	write("get", "x")
	reply := read()
	if reply.Type != resp.FrameError || !strings.Contains(reply.Str, "get") {
		t.Fatalf("Expected error naming 'get', got %#v", reply)
	}

	// The connection is still usable: further SUBSCRIBE works
	write("subscribe", "sports")
	confirm = read()
	if confirm.Type != resp.FrameArray || string(confirm.Array[1].Bulk) != "sports" {
		t.Fatalf("Expected sports confirmation, got %#v", confirm)
	}
	if confirm.Array[2].Int != 2 {
		t.Errorf("Expected subscription count 2, got %d", confirm.Array[2].Int)
	}

	// PING is allowed in subscriber mode
	write("ping")
	if reply := read(); reply.Type != resp.FrameSimple || reply.Str != "PONG" {
		t.Errorf("Expected +PONG in subscriber mode, got %#v", reply)
	}

	// UNSUBSCRIBE without arguments drops everything and returns the
	// connection to command mode
	write("unsubscribe")
	seen := map[string]int64{}
	for i := 0; i < 2; i++ {
		confirm := read()
		if confirm.Type != resp.FrameArray || string(confirm.Array[0].Bulk) != "unsubscribe" {
			t.Fatalf("Expected unsubscribe confirmation, got %#v", confirm)
		}
		seen[string(confirm.Array[1].Bulk)] = confirm.Array[2].Int
	}
	if len(seen) != 2 {
		t.Fatalf("Expected confirmations for both channels, got %v", seen)
	}

	// Back in command mode, GET works again
	write("get", "x")
	if reply := read(); reply.Type != resp.FrameNull {
		t.Errorf("Expected null reply in command mode, got %#v", reply)
	}
}

// TestIncrementalSubscribe tests growing and shrinking the channel set
// through the client library
func TestIncrementalSubscribe(t *testing.T) {
	_, cfg := startTestServer(t, nil)

	c := dial(t, cfg)
	sub, err := c.Subscribe("a")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := sub.Subscribe("b", "c"); err != nil {
		t.Fatalf("Incremental subscribe failed: %v", err)
	}
	if got := sub.Channels(); len(got) != 3 {
		t.Errorf("Expected 3 channels, got %v", got)
	}

	if err := sub.Unsubscribe("b"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if got := sub.Channels(); len(got) != 2 {
		t.Errorf("Expected 2 channels, got %v", got)
	}

	// Messages still flow on the remaining channels
	publisher := dial(t, cfg)
	if _, err := publisher.Publish("c", []byte("ping")); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	msg, err := sub.NextMessage()
	if err != nil {
		t.Fatalf("NextMessage failed: %v", err)
	}
	if msg.Channel != "c" {
		t.Errorf("Expected channel c, got %s", msg.Channel)
	}
}

// TestConnectionCap tests that the (N+1)-th connection is served only
// after one of the N closes
func TestConnectionCap(t *testing.T) {
	_, cfg := startTestServer(t, func(c *common.ServerConfig) {
		c.MaxConnections = 2
	})

	// Two clients occupy both permits
	c1 := dial(t, cfg)
	c2 := dial(t, cfg)
	if _, err := c1.Ping(nil); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if _, err := c2.Ping(nil); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	// The third connection completes the TCP handshake in the backlog
	// but is never accepted while both permits are held
	conn3, err := net.Dial("tcp", cfg.Endpoint())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn3.Close()
	fc3 := resp.NewConnection(conn3)

	ping := resp.NewArray(resp.NewBulk([]byte("ping")))
	if err := fc3.WriteFrame(&ping); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	conn3.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, err := fc3.ReadFrame(); err == nil {
		t.Fatal("Third connection should not be served while the cap is reached")
	}

	// Releasing one permit lets the third connection in
	c1.Close()
	conn3.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, err := fc3.ReadFrame()
	if err != nil || reply == nil {
		t.Fatalf("Third connection should be served after a close, got %v", err)
	}
	if reply.Type != resp.FrameSimple || reply.Str != "PONG" {
		t.Errorf("Expected +PONG, got %#v", reply)
	}
}

// TestGracefulShutdown tests that Stop ends Serve cleanly while a
// client is connected
func TestGracefulShutdown(t *testing.T) {
	srv, cfg := startTestServer(t, nil)

	c := dial(t, cfg)
	if _, err := c.Ping(nil); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if n := srv.ActiveConnections(); n != 1 {
		t.Errorf("Expected 1 active connection, got %d", n)
	}

	// Cleanup (registered by startTestServer) stops the server and
	// asserts Serve returns nil.
}

// TestBindFailure tests that binding an occupied port fails
func TestBindFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port

	cfg := common.DefaultServerConfig()
	cfg.Port = uint16(port)

	srv := New(cfg)
	defer srv.holder.Close()
	if err := srv.Listen(); err == nil {
		t.Error("Listen should fail on an occupied port")
	} else if !strings.Contains(err.Error(), strconv.Itoa(port)) {
		t.Errorf("Bind error should name the endpoint, got %v", err)
	}
}
