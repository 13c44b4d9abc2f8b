package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serialbridge/serial"
)

const testPort = "/dev/ttyUSB0"

func newTestManager(t *testing.T) (*Manager, *serial.MockDriver) {
	t.Helper()
	driver := serial.NewMockDriver(serial.PortDescriptor{Path: testPort, VendorID: "0403", ProductID: "6001"})
	m := NewManager(driver, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { m.Close() })
	return m, driver
}

func connect(t *testing.T, m *Manager, path string) {
	t.Helper()
	msg, err := m.Connect(context.Background(), Config{PortPath: path})
	require.NoError(t, err)
	require.Equal(t, MsgConnected, msg)
	require.Equal(t, StateOpen, m.State())
}

func waitRecords(t *testing.T, ch <-chan Record, n int) []Record {
	t.Helper()
	var got []Record
	for len(got) < n {
		select {
		case r := <-ch:
			got = append(got, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout: got %d of %d records", len(got), n)
		}
	}
	return got
}

func payloads(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Payload
	}
	return out
}

func TestManager_StartsIdle(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, StateIdle, m.State())
	_, ok := m.Config()
	assert.False(t, ok)
}

func TestManager_ListPorts(t *testing.T) {
	m, driver := newTestManager(t)

	ports, err := m.ListPorts(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, testPort, ports[0].Path)

	driver.SetListError(errors.New("permission denied"))
	ports, err = m.ListPorts(context.Background())
	assert.NotNil(t, ports)
	assert.Empty(t, ports)
	var enumErr *EnumerationError
	require.ErrorAs(t, err, &enumErr)
	assert.Contains(t, enumErr.Error(), "permission denied")
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_ConnectDefaultsAndRecords(t *testing.T) {
	m, driver := newTestManager(t)

	records := make(chan Record, 16)
	m.OnRecord(func(r Record) { records <- r })

	connect(t, m, testPort)
	cfg, ok := m.Config()
	require.True(t, ok)
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate)
	assert.Equal(t, 9600, driver.Configs()[0].BaudRate)
	assert.Equal(t, 8, driver.Configs()[0].DataBits)

	port := driver.Last()
	require.NoError(t, port.FeedString("12.3"))
	require.NoError(t, port.FeedString("4\r\n\r\n\r\nABC123\r\n"))

	got := waitRecords(t, records, 2)
	assert.Equal(t, []string{"12.34", "ABC123"}, payloads(got))
	for _, r := range got {
		assert.Equal(t, testPort, r.SourcePort)
		assert.False(t, r.ObservedAt.IsZero())
	}

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.RecordsReceived)
	assert.Equal(t, int64(len("12.34\r\n\r\n\r\nABC123\r\n")), stats.BytesReceived)
}

func TestManager_RecordsReachEverySubscriberInOrder(t *testing.T) {
	m, driver := newTestManager(t)

	a := make(chan Record, 64)
	b := make(chan Record, 64)
	m.OnRecord(func(r Record) { a <- r })
	m.OnRecord(func(r Record) {
		time.Sleep(time.Millisecond)
		b <- r
	})

	connect(t, m, testPort)
	port := driver.Last()

	want := []string{"0.10", "9876543210987", "5.55", "ABC123DEF456", "10.05"}
	for _, p := range want {
		require.NoError(t, port.FeedString(p+"\r\n"))
	}

	assert.Equal(t, want, payloads(waitRecords(t, a, len(want))))
	assert.Equal(t, want, payloads(waitRecords(t, b, len(want))))
}

func TestManager_ReconnectClosesPriorHandleFirst(t *testing.T) {
	m, driver := newTestManager(t)

	connect(t, m, testPort)
	first := driver.Last()

	connect(t, m, testPort)
	second := driver.Last()

	assert.NotSame(t, first, second)
	assert.False(t, first.IsOpen())
	assert.True(t, second.IsOpen())
	assert.Equal(t, []string{
		"open " + testPort,
		"close " + testPort,
		"open " + testPort,
	}, driver.Events())
}

func TestManager_StaleHandleBytesAreDiscarded(t *testing.T) {
	m, driver := newTestManager(t)

	records := make(chan Record, 16)
	m.OnRecord(func(r Record) { records <- r })

	connect(t, m, testPort)
	first := driver.Last()
	// half a line on the first handle must not leak into the second
	require.NoError(t, first.FeedString("STALE"))

	connect(t, m, "/dev/ttyUSB1")
	assert.Error(t, first.FeedString("\r\n"))

	require.NoError(t, driver.Last().FeedString("FRESH\r\n"))
	got := waitRecords(t, records, 1)
	assert.Equal(t, "FRESH", got[0].Payload)
	assert.Equal(t, "/dev/ttyUSB1", got[0].SourcePort)
}

func TestManager_SendRequiresOpen(t *testing.T) {
	m, driver := newTestManager(t)
	ctx := context.Background()

	_, err := m.Send(ctx, "TEST\r\n")
	assert.ErrorIs(t, err, ErrNotConnected)

	connect(t, m, testPort)
	msg, err := m.Send(ctx, "TEST\r\n")
	require.NoError(t, err)
	assert.Equal(t, MsgSent, msg)
	assert.Equal(t, "TEST\r\n", string(driver.Last().GetWrittenData()))

	_, err = m.Disconnect(ctx)
	require.NoError(t, err)
	_, err = m.Send(ctx, "TEST\r\n")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Len(t, driver.Last().GetWrites(), 1)
	assert.Equal(t, int64(6), m.Stats().BytesSent)
}

func TestManager_SendErrorKeepsSessionOpen(t *testing.T) {
	m, driver := newTestManager(t)
	connect(t, m, testPort)

	timeout := errors.New("write timeout")
	driver.Last().SetWriteError(timeout)

	_, err := m.Send(context.Background(), "TEST\r\n")
	var sendErr *SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, timeout)
	assert.Equal(t, StateOpen, m.State())
	assert.Equal(t, int64(1), m.Stats().Errors)

	driver.Last().ClearWriteError()
	_, err = m.Send(context.Background(), "TEST\r\n")
	assert.NoError(t, err)
}

func TestManager_TransportErrorFaultsSession(t *testing.T) {
	m, driver := newTestManager(t)

	errs := make(chan string, 1)
	m.OnError(func(msg string) { errs <- msg })

	connect(t, m, testPort)
	port := driver.Last()
	port.Fail(errors.New("device unplugged"))

	select {
	case msg := <-errs:
		assert.Contains(t, msg, "device unplugged")
		assert.Contains(t, msg, testPort)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error event")
	}

	assert.Equal(t, StateFaulted, m.State())
	assert.False(t, port.IsOpen())
	assert.Equal(t, int64(1), m.Stats().Errors)

	_, err := m.Send(context.Background(), "TEST\r\n")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, port.GetWrites())

	// a fresh connect recovers
	connect(t, m, testPort)
	_, err = m.Send(context.Background(), "TEST\r\n")
	assert.NoError(t, err)
}

func TestManager_ConnectFailureFaults(t *testing.T) {
	m, driver := newTestManager(t)
	busy := errors.New("device or resource busy")
	driver.SetOpenError(busy)

	_, err := m.Connect(context.Background(), Config{PortPath: testPort, BaudRate: 19200})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, testPort, connErr.Port)
	assert.ErrorIs(t, err, busy)
	assert.Contains(t, err.Error(), "device or resource busy")
	assert.Equal(t, StateFaulted, m.State())
	assert.Len(t, driver.Configs(), 1, "no automatic retry")

	_, err = m.Send(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConnected)

	// disconnect leaves faulted
	msg, err := m.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MsgDisconnected, msg)
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_ConnectFromFaulted(t *testing.T) {
	m, driver := newTestManager(t)
	driver.SetOpenError(errors.New("no such file or directory"))
	_, err := m.Connect(context.Background(), Config{PortPath: testPort})
	require.Error(t, err)

	driver.SetOpenError(nil)
	connect(t, m, testPort)
}

func TestManager_InvalidConfig(t *testing.T) {
	m, driver := newTestManager(t)

	_, err := m.Connect(context.Background(), Config{PortPath: testPort, BaudRate: -1})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "baud_rate", cfgErr.Field)

	_, err = m.Connect(context.Background(), Config{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "port", cfgErr.Field)

	assert.Equal(t, StateIdle, m.State())
	assert.Empty(t, driver.Events())
}

func TestManager_NonStandardBaudRatePassesThrough(t *testing.T) {
	m, driver := newTestManager(t)
	_, err := m.Connect(context.Background(), Config{PortPath: testPort, BaudRate: 4800})
	require.NoError(t, err)
	assert.Equal(t, 4800, driver.Configs()[0].BaudRate)
}

func TestManager_DisconnectTwice(t *testing.T) {
	m, driver := newTestManager(t)
	ctx := context.Background()

	connect(t, m, testPort)
	msg, err := m.Disconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, MsgDisconnected, msg)
	assert.False(t, driver.Last().IsOpen())

	msg, err = m.Disconnect(ctx)
	require.NoError(t, err)
	assert.Equal(t, MsgNoConnection, msg)
	assert.Equal(t, StateIdle, m.State())
}

func TestManager_DisconnectClearsFrameBuffer(t *testing.T) {
	m, driver := newTestManager(t)
	connect(t, m, testPort)

	require.NoError(t, driver.Last().FeedString("partial"))
	require.Eventually(t, func() bool { return m.Info().Buffered == len("partial") }, time.Second, 5*time.Millisecond)

	_, err := m.Disconnect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, m.Info().Buffered)
}

// blockingOpen parks the driver inside Open until release is closed
func blockingOpen(driver *serial.MockDriver) (entered <-chan struct{}, release chan struct{}) {
	in := make(chan struct{})
	rel := make(chan struct{})
	var once sync.Once
	driver.SetOpenHook(func(serial.PortConfig) {
		once.Do(func() { close(in) })
		<-rel
	})
	return in, rel
}

func TestManager_CommandsWhileConnecting(t *testing.T) {
	m, driver := newTestManager(t)
	ctx := context.Background()
	entered, release := blockingOpen(driver)

	done := make(chan error, 1)
	go func() {
		_, err := m.Connect(ctx, Config{PortPath: testPort})
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("connect never reached the driver")
	}
	assert.Equal(t, StateConnecting, m.State())

	_, err := m.Connect(ctx, Config{PortPath: "/dev/ttyUSB1"})
	assert.ErrorIs(t, err, ErrConnectInProgress)

	_, err = m.Disconnect(ctx)
	assert.ErrorIs(t, err, ErrDisconnectWhileConnecting)

	_, err = m.Send(ctx, "TEST\r\n")
	assert.ErrorIs(t, err, ErrNotConnected)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not finish")
	}
	assert.Equal(t, StateOpen, m.State())
	assert.Len(t, driver.Configs(), 1)
	assert.Empty(t, driver.Last().GetWrites())
}

func TestManager_StateChangeEvents(t *testing.T) {
	m, driver := newTestManager(t)

	changes := make(chan StateChange, 32)
	m.OnStateChange(func(c StateChange) { changes <- c })

	connect(t, m, testPort)
	driver.Last().Fail(errors.New("framing error"))
	require.Eventually(t, func() bool { return m.State() == StateFaulted }, 2*time.Second, 5*time.Millisecond)
	_, err := m.Disconnect(context.Background())
	require.NoError(t, err)

	want := []State{StateConnecting, StateOpen, StateFaulted, StateClosing, StateIdle}
	var got []State
	for len(got) < len(want) {
		select {
		case c := <-changes:
			got = append(got, c.To)
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout, transitions so far: %v", got)
		}
	}
	assert.Equal(t, want, got)
}

func TestManager_RemoveAllSubscriptions(t *testing.T) {
	m, driver := newTestManager(t)

	records := make(chan Record, 16)
	m.OnRecord(func(r Record) { records <- r })
	m.OnError(func(string) {})
	assert.Equal(t, 2, m.Info().Subscribers)

	connect(t, m, testPort)
	m.RemoveAllSubscriptions()
	assert.Equal(t, 0, m.Info().Subscribers)

	require.NoError(t, driver.Last().FeedString("12.34\r\n"))
	require.Eventually(t, func() bool { return m.Stats().RecordsReceived == 1 }, time.Second, 5*time.Millisecond)

	select {
	case r := <-records:
		t.Fatalf("unexpected delivery after removal: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	m, _ := newTestManager(t)
	id := m.Subscribe(func(Event) {})
	assert.True(t, m.Unsubscribe(id))
	assert.False(t, m.Unsubscribe(id))
}

func TestManager_Close(t *testing.T) {
	m, driver := newTestManager(t)
	connect(t, m, testPort)

	require.NoError(t, m.Close())
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, driver.Last().IsOpen())

	_, err := m.Connect(context.Background(), Config{PortPath: testPort})
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestManager_Info(t *testing.T) {
	m, _ := newTestManager(t)
	connect(t, m, testPort)

	info := m.Info()
	assert.Equal(t, StateOpen, info.State)
	require.NotNil(t, info.Config)
	assert.Equal(t, testPort, info.Config.PortPath)
	assert.Equal(t, int64(1), info.Stats.Connects)
	assert.False(t, info.Stats.ConnectedAt.IsZero())
}
