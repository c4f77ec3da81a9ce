package simulator

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"vr-datastreamer/internal/model"
	"vr-datastreamer/internal/protocol"
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

func testScenario() HeadsetScenario {
	scenario := DefaultScenario().Headset
	scenario.RateHz = 200
	scenario.BeaconInterval = 20 * time.Millisecond
	return scenario
}

func startHeadset(t *testing.T, scenario HeadsetScenario) (*Headset, protocol.StreamSettings) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := NewHeadset(scenario, zaptest.NewLogger(t))
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	settings := protocol.DefaultStreamSettings()
	settings.Port = ln.Addr().(*net.TCPAddr).Port
	settings.ConnectTimeout = time.Second
	return h, settings
}

func TestHeadsetStreamsPoseRecords(t *testing.T) {
	scenario := testScenario()
	scenario.Records = 5
	h, settings := startHeadset(t, scenario)

	sink := &sliceSink{}
	exited := make(chan error, 1)
	sc, err := protocol.ConnectStream(context.Background(), netip.MustParseAddr("127.0.0.1"), settings, sink,
		zaptest.NewLogger(t), func(err error) { exited <- err })
	require.NoError(t, err)
	defer sc.Close()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after the record budget")
	}

	records := sink.snapshot()
	require.Len(t, records, 5)
	for _, record := range records {
		_, err := model.ParsePoseRecord(record)
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.Sessions())
	assert.Equal(t, int64(5), h.Sent())
}

func TestHeadsetInjectsMalformedRecords(t *testing.T) {
	scenario := testScenario()
	scenario.Records = 4
	scenario.MalformedEvery = 2
	_, settings := startHeadset(t, scenario)

	sink := &sliceSink{}
	exited := make(chan error, 1)
	sc, err := protocol.ConnectStream(context.Background(), netip.MustParseAddr("127.0.0.1"), settings, sink,
		zaptest.NewLogger(t), func(err error) { exited <- err })
	require.NoError(t, err)
	defer sc.Close()

	select {
	case <-exited:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end after the record budget")
	}

	records := sink.snapshot()
	require.Len(t, records, 4)
	assert.Len(t, strings.Split(records[0], ","), model.PoseFieldCount)
	assert.Len(t, strings.Split(records[1], ","), model.PoseFieldCount-1)
}

func TestHeadsetWrongReplyIsRejected(t *testing.T) {
	scenario := testScenario()
	scenario.Reply = "SOMETHING_ELSE"
	_, settings := startHeadset(t, scenario)

	_, err := protocol.ConnectStream(context.Background(), netip.MustParseAddr("127.0.0.1"), settings, &sliceSink{},
		zaptest.NewLogger(t), nil)
	assert.ErrorIs(t, err, protocol.ErrHandshakeMismatch)
}

func TestHeadsetIgnoresUnknownGreeting(t *testing.T) {
	_, settings := startHeadset(t, testScenario())

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(settings.Port)))
	require.NoError(t, err)
	defer conn.Close()

	_, err = io.WriteString(conn, "HELLO\n")
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = bufio.NewReader(conn).ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestBeaconAnnouncesHeadset(t *testing.T) {
	receiver, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer receiver.Close()

	sender, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sender.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHeadset(testScenario(), zaptest.NewLogger(t))
	go h.Beacon(ctx, sender, receiver.LocalAddr())

	buf := make([]byte, 64)
	for i := 0; i < 2; i++ {
		receiver.SetReadDeadline(time.Now().Add(time.Second))
		n, from, err := receiver.ReadFromUDP(buf)
		require.NoError(t, err)
		assert.True(t, protocol.IsBeacon(buf[:n]))
		assert.Equal(t, sender.LocalAddr().(*net.UDPAddr).Port, from.Port)
	}
}

func TestPoseLineMovesHands(t *testing.T) {
	scenario := DefaultScenario().Headset

	first, err := model.ParsePoseRecord(PoseLine(scenario, 0))
	require.NoError(t, err)
	later, err := model.ParsePoseRecord(PoseLine(scenario, scenario.Period/4))
	require.NoError(t, err)

	assert.InDelta(t, 1.6, first.Head.Position.Y, 1e-4)
	assert.InDelta(t, 1.0, first.Head.Rotation.W, 1e-4)
	moved := first.LeftHand.Position.Distance(later.LeftHand.Position)
	assert.InDelta(t, scenario.Radius*1.41421, moved, 1e-3)
}

func TestMotorAnswersGreetingAndCountsTriggers(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()

	m := NewMotor(MotorScenario{ReadyLine: protocol.DeviceReady}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, device) }()

	_, err := io.WriteString(host, protocol.Greeting)
	require.NoError(t, err)

	reply, err := bufio.NewReader(host).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, protocol.IsDeviceReady(reply))

	for i := 0; i < 3; i++ {
		_, err = io.WriteString(host, protocol.TriggerCommand)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return m.Triggers() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), m.Greetings())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop on cancel")
	}
}

func TestSilentMotorNeverAnswers(t *testing.T) {
	host, device := net.Pipe()
	defer host.Close()

	m := NewMotor(MotorScenario{Silent: true}, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Serve(ctx, device)

	_, err := io.WriteString(host, protocol.Greeting)
	require.NoError(t, err)

	host.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, err = host.Read(make([]byte, 8))
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
	assert.Equal(t, int64(1), m.Greetings())
}

func TestLoadScenario(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		scenario, err := LoadScenario("")
		require.NoError(t, err)
		assert.Equal(t, DefaultScenario(), scenario)
	})

	t.Run("file overrides selected keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scenario.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
headset:
  rate_hz: 30
  records: 100
  hang_up_after: 2s
motor:
  silent: true
`), 0644))

		scenario, err := LoadScenario(path)
		require.NoError(t, err)
		assert.Equal(t, 30.0, scenario.Headset.RateHz)
		assert.Equal(t, 100, scenario.Headset.Records)
		assert.Equal(t, 2*time.Second, scenario.Headset.HangUpAfter)
		assert.Equal(t, protocol.HeadsetReady, scenario.Headset.Reply)
		assert.True(t, scenario.Motor.Silent)
		assert.Equal(t, protocol.DeviceReady, scenario.Motor.ReadyLine)
	})

	t.Run("invalid rate is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scenario.yaml")
		require.NoError(t, os.WriteFile(path, []byte("headset:\n  rate_hz: 0\n"), 0644))

		_, err := LoadScenario(path)
		assert.ErrorContains(t, err, "rate_hz")
	})
}
