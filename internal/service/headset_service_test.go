package service

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"vr-datastreamer/internal/discovery/udp"
	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
	"vr-datastreamer/internal/recording"
)

const poseRecord = "0.1,1.6,0.2,0,0,0,1,-0.3,1.1,0.3,0,0,0,1,0.3,1.1,0.3,0,0,0,1"

// loopbackHeadset answers the readiness exchange and then runs serve
type loopbackHeadset struct {
	listener net.Listener
	wg       sync.WaitGroup
}

func startLoopbackHeadset(t *testing.T, serve func(conn net.Conn)) *loopbackHeadset {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	h := &loopbackHeadset{listener: ln}
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
				if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
					return
				}
				if _, err := io.WriteString(conn, protocol.HeadsetReady+"\n"); err != nil {
					return
				}
				serve(conn)
			}()
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		h.wg.Wait()
	})
	return h
}

func (h *loopbackHeadset) streamSettings() protocol.StreamSettings {
	settings := protocol.DefaultStreamSettings()
	settings.Port = h.listener.Addr().(*net.TCPAddr).Port
	settings.ConnectTimeout = 500 * time.Millisecond
	return settings
}

// startSlowHeadset answers the readiness exchange only after delay and then
// holds the session open until the test ends
func startSlowHeadset(t *testing.T, delay time.Duration) protocol.StreamSettings {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		select {
		case <-time.After(delay):
		case <-done:
			return
		}
		io.WriteString(conn, protocol.HeadsetReady+"\n")
		<-done
	}()

	t.Cleanup(func() {
		close(done)
		ln.Close()
		wg.Wait()
	})

	settings := protocol.DefaultStreamSettings()
	settings.Port = ln.Addr().(*net.TCPAddr).Port
	settings.ConnectTimeout = 2 * time.Second
	return settings
}

func beaconFrom(addr string) BeaconFunc {
	return func(ctx context.Context, _ udp.Settings, _ time.Duration, _ *zap.Logger) (netip.AddrPort, error) {
		return netip.MustParseAddrPort(addr), nil
	}
}

func noBeacon(ctx context.Context, _ udp.Settings, timeout time.Duration, _ *zap.Logger) (netip.AddrPort, error) {
	return netip.AddrPort{}, udp.ErrNoBeacon
}

func newTestHeadsetService(t *testing.T, settings protocol.StreamSettings, queue RecordQueue, events *eventRecorder) *HeadsetService {
	svc := NewHeadsetService(udp.DefaultSettings(), settings, queue, events, zaptest.NewLogger(t))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestHeadsetDiscoverConnectsToBeaconSender(t *testing.T) {
	release := make(chan struct{})
	headset := startLoopbackHeadset(t, func(conn net.Conn) {
		io.WriteString(conn, poseRecord+"\n"+poseRecord+"\n")
		<-release
	})
	defer close(release)

	queue := recording.NewQueue()
	events := &eventRecorder{}
	svc := newTestHeadsetService(t, headset.streamSettings(), queue, events)
	svc.beacon = beaconFrom("127.0.0.1:40000")

	conn, err := svc.Discover(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", conn.Peer().Addr().String())

	require.Eventually(t, func() bool { return queue.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	status := svc.Status()
	assert.Equal(t, model.StateConnected, status.State)
	assert.Equal(t, conn.Peer().String(), status.Peer)
	assert.Equal(t, 2, status.QueueDepth)
	assert.Equal(t, int64(2), status.RecordsReceived)
	assert.Equal(t, conn.Peer().String(), svc.Endpoint())

	_, err = svc.Discover(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	require.NoError(t, svc.Disconnect())
	assert.Equal(t, model.StateIdle, svc.Status().State)
	assert.True(t, conn.ReceiverExited())

	last, ok := events.last(model.EventHeadsetStateChanged)
	require.True(t, ok)
	assert.Equal(t, "IDLE", last.Data["state"])
}

func TestHeadsetDiscoverNoBeacon(t *testing.T) {
	svc := newTestHeadsetService(t, protocol.DefaultStreamSettings(), recording.NewQueue(), &eventRecorder{})
	svc.beacon = noBeacon

	_, err := svc.Discover(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, ErrNoPeer)

	status := svc.Status()
	assert.Equal(t, model.StateIdle, status.State)
	assert.Contains(t, status.LastError, "no beacon within 50ms")
}

func TestHeadsetStreamEndedByPeer(t *testing.T) {
	hangUp := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	var sessions atomic.Int32
	headset := startLoopbackHeadset(t, func(conn net.Conn) {
		if sessions.Add(1) == 1 {
			<-hangUp
			return
		}
		<-release
	})

	events := &eventRecorder{}
	svc := newTestHeadsetService(t, headset.streamSettings(), recording.NewQueue(), events)

	_, err := svc.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	require.NoError(t, err)
	require.True(t, svc.Connected())

	close(hangUp)

	require.Eventually(t, func() bool {
		return svc.Status().State == model.StateIdle
	}, 2*time.Second, 10*time.Millisecond)

	status := svc.Status()
	assert.Contains(t, status.LastError, protocol.ErrStreamEnded.Error())
	assert.Empty(t, status.Peer)
	assert.ErrorIs(t, svc.Disconnect(), ErrNotConnected)

	// a fresh attempt is allowed once the stream is gone
	_, err = svc.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	require.NoError(t, err)
}

func TestHeadsetConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	settings := protocol.DefaultStreamSettings()
	settings.Port = ln.Addr().(*net.TCPAddr).Port
	settings.ConnectTimeout = 200 * time.Millisecond
	ln.Close()

	svc := newTestHeadsetService(t, settings, recording.NewQueue(), &eventRecorder{})

	_, err = svc.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
	require.Error(t, err)
	assert.Equal(t, model.StateIdle, svc.Status().State)
	assert.NotEmpty(t, svc.Status().LastError)
}

func TestHeadsetDiscoverAsync(t *testing.T) {
	release := make(chan struct{})
	headset := startLoopbackHeadset(t, func(conn net.Conn) {
		<-release
	})
	defer close(release)

	svc := newTestHeadsetService(t, headset.streamSettings(), recording.NewQueue(), &eventRecorder{})
	svc.beacon = beaconFrom("127.0.0.1:40000")

	results, err := svc.DiscoverAsync(time.Second)
	require.NoError(t, err)

	select {
	case result := <-results:
		require.NoError(t, result.Err)
		assert.Equal(t, headsetComponent, result.Component)
		assert.NotEmpty(t, result.Endpoint)
	case <-time.After(3 * time.Second):
		t.Fatal("discovery result not delivered")
	}

	_, err = svc.DiscoverAsync(time.Second)
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestHeadsetCloseDuringReadyExchangeDropsStream(t *testing.T) {
	svc := newTestHeadsetService(t, startSlowHeadset(t, 300*time.Millisecond), recording.NewQueue(), &eventRecorder{})

	type outcome struct {
		conn *protocol.StreamConnection
		err  error
	}
	outcomes := make(chan outcome, 1)
	go func() {
		conn, err := svc.Connect(context.Background(), netip.MustParseAddr("127.0.0.1"))
		outcomes <- outcome{conn, err}
	}()

	require.Eventually(t, func() bool {
		return svc.Status().State == model.StateScanning
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Close())

	select {
	case got := <-outcomes:
		assert.Nil(t, got.conn)
		assert.ErrorIs(t, got.err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("connect did not return")
	}

	assert.False(t, svc.Connected())
	assert.Empty(t, svc.Endpoint())
	assert.Equal(t, model.StateIdle, svc.Status().State)
}
