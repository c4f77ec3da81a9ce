package protocol

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sliceSink struct {
	mu      sync.Mutex
	records []string
}

func (s *sliceSink) Push(record string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
}

func (s *sliceSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.records...)
}

// fakeHeadset accepts stream sessions on loopback and runs serve for each
type fakeHeadset struct {
	listener net.Listener
	wg       sync.WaitGroup
}

func startFakeHeadset(t *testing.T, serve func(conn net.Conn, greeting string)) *fakeHeadset {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := &fakeHeadset{listener: ln}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			h.wg.Add(1)
			go func() {
				defer h.wg.Done()
				defer conn.Close()
				line, _ := bufio.NewReader(conn).ReadString('\n')
				serve(conn, line)
			}()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		h.wg.Wait()
	})
	return h
}

func (h *fakeHeadset) settings() StreamSettings {
	s := DefaultStreamSettings()
	s.Port = h.listener.Addr().(*net.TCPAddr).Port
	s.ConnectTimeout = 500 * time.Millisecond
	return s
}

var loopback = netip.MustParseAddr("127.0.0.1")

func TestConnectStreamDeliversRecordsInOrder(t *testing.T) {
	greetings := make(chan string, 1)
	h := startFakeHeadset(t, func(conn net.Conn, greeting string) {
		greetings <- greeting
		io.WriteString(conn, "VR_HEADSET_READY\n")
		time.Sleep(20 * time.Millisecond)
		io.WriteString(conn, "1,0,0,0,0,0,0,1,0,0,0,0,0,0,1,0,0,0,0,0,0\r\n2,0,0")
		io.WriteString(conn, ",0,0,0,0,1,0,0,0,0,0,0,1,0,0,0,0,0,0\n3\n")
		time.Sleep(200 * time.Millisecond)
	})

	sink := &sliceSink{}
	sc, err := ConnectStream(context.Background(), loopback, h.settings(), sink, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer sc.Close()

	assert.Equal(t, ReceiverReady, <-greetings)
	assert.Equal(t, h.settings().Port, int(sc.Peer().Port()))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 3 }, 2*time.Second, 10*time.Millisecond)
	records := sink.snapshot()
	assert.True(t, strings.HasPrefix(records[0], "1,"))
	assert.True(t, strings.HasPrefix(records[1], "2,"))
	assert.Equal(t, "3", records[2])
	assert.Equal(t, int64(3), sc.Stats().RecordsReceived)
}

func TestConnectStreamKeepsRecordsSentWithReadyReply(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		io.WriteString(conn, "VR_HEADSET_READY\nfirst\nsecond\n")
		time.Sleep(200 * time.Millisecond)
	})

	sink := &sliceSink{}
	sc, err := ConnectStream(context.Background(), loopback, h.settings(), sink, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	defer sc.Close()

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, sink.snapshot())
}

func TestConnectStreamRejectsWrongReply(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		io.WriteString(conn, "SOMETHING_ELSE\n")
	})

	_, err := ConnectStream(context.Background(), loopback, h.settings(), &sliceSink{}, zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, err, ErrHandshakeMismatch)
}

func TestConnectStreamTimesOutOnSilentPeer(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		time.Sleep(time.Second)
	})
	settings := h.settings()
	settings.ConnectTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err := ConnectStream(context.Background(), loopback, settings, &sliceSink{}, zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.Less(t, time.Since(start), settings.ConnectTimeout+500*time.Millisecond)
}

func TestConnectStreamCancelledDuringReadyExchange(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		time.Sleep(400 * time.Millisecond)
		io.WriteString(conn, "VR_HEADSET_READY\n")
	})
	settings := h.settings()
	settings.ConnectTimeout = 2 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	sc, err := ConnectStream(ctx, loopback, settings, &sliceSink{}, zaptest.NewLogger(t), nil)
	assert.Nil(t, sc)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
}

func TestConnectStreamRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	settings := DefaultStreamSettings()
	settings.Port = ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = ConnectStream(context.Background(), loopback, settings, &sliceSink{}, zaptest.NewLogger(t), nil)
	assert.Error(t, err)
}

func TestStreamEndedByPeerNotifiesOnce(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		io.WriteString(conn, "VR_HEADSET_READY\nonly\n")
	})

	exits := make(chan error, 2)
	sink := &sliceSink{}
	sc, err := ConnectStream(context.Background(), loopback, h.settings(), sink, zaptest.NewLogger(t), func(err error) {
		exits <- err
	})
	require.NoError(t, err)

	select {
	case err := <-exits:
		assert.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not report the closed stream")
	}

	assert.False(t, sc.Active())
	assert.True(t, sc.ReceiverExited())
	assert.Equal(t, []string{"only"}, sink.snapshot())
	require.NoError(t, sc.Close())
	assert.Len(t, exits, 0)
}

func TestStreamCloseFromExitCallback(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		io.WriteString(conn, "VR_HEADSET_READY\n")
	})

	closed := make(chan error, 1)
	var sc *StreamConnection
	var mu sync.Mutex
	mu.Lock()
	sc, err := ConnectStream(context.Background(), loopback, h.settings(), &sliceSink{}, zaptest.NewLogger(t), func(error) {
		mu.Lock()
		defer mu.Unlock()
		closed <- sc.Close()
	})
	mu.Unlock()
	require.NoError(t, err)

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("close from exit callback deadlocked")
	}
}

func TestStreamRapidReconnectJoinsReceiver(t *testing.T) {
	h := startFakeHeadset(t, func(conn net.Conn, _ string) {
		io.WriteString(conn, "VR_HEADSET_READY\n")
		for i := 0; i < 5000; i++ {
			if _, err := io.WriteString(conn, "0,0,0\n"); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	})

	exited := 0
	for i := 0; i < 20; i++ {
		sc, err := ConnectStream(context.Background(), loopback, h.settings(), &sliceSink{}, zaptest.NewLogger(t), func(error) {
			t.Error("exit callback must not run for Close")
		})
		require.NoError(t, err)
		require.NoError(t, sc.Close())

		// The receiver has returned before the socket was released.
		if sc.ReceiverExited() && !sc.Active() {
			exited++
		}
		select {
		case <-sc.Done():
		default:
			t.Fatal("done not closed after Close")
		}
	}
	assert.Equal(t, 20, exited)
}
