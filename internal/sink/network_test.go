package sink

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"libdb.so/glowvis/internal/led"
)

func TestUDPWriteFrame(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	u, err := DialUDP(server.LocalAddr().String(), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer u.Close()

	leds := led.LEDs{led.RGB(1, 2, 3), led.RGB(255, 0, 128)}
	if err := u.WriteFrame(context.Background(), leds); err != nil {
		t.Fatal(err)
	}

	server.SetReadDeadline(time.Now().Add(5 * time.Second))

	buf := make([]byte, 64)
	n, _, err := server.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}

	if want := []byte{1, 2, 3, 255, 0, 128}; !bytes.Equal(buf[:n], want) {
		t.Errorf("got datagram %v, want %v", buf[:n], want)
	}
}

func TestDialUDPInvalidAddress(t *testing.T) {
	if _, err := DialUDP("not an address", discardLogger()); err == nil {
		t.Fatal("expected error")
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	ws, err := ListenWebSocket("127.0.0.1:0", discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+ws.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	leds := led.LEDs{led.RGB(9, 8, 7)}

	// The client is registered asynchronously after the upgrade, so keep
	// writing until it receives something.
	received := make(chan []byte, 1)
	go func() {
		typ, b, err := conn.ReadMessage()
		if err == nil && typ == websocket.BinaryMessage {
			received <- b
		}
		close(received)
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timeout := time.After(5 * time.Second)
	for {
		if err := ws.WriteFrame(context.Background(), leds); err != nil {
			t.Fatal(err)
		}

		select {
		case b, ok := <-received:
			if !ok {
				t.Fatal("client failed to read a binary message")
			}
			if want := []byte{9, 8, 7}; !bytes.Equal(b, want) {
				t.Errorf("got message %v, want %v", b, want)
			}
			return
		case <-ticker.C:
		case <-timeout:
			t.Fatal("timed out waiting for broadcast")
		}
	}
}
