package feed

import (
	"bufio"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ftl/ppi/rx"
)

func TestFormatReadingMessage(t *testing.T) {
	reading := rx.Reading{
		Seq:       3,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC),
		Bearing:   math.Pi / 2,
		Range:     1.3048,
	}

	actual := formatReadingMessage(reading)

	assert.Equal(t, "3      120000.500z    90.0°    1.30m\n", actual)
}

func TestServer_BroadcastsReadings(t *testing.T) {
	server, err := NewServer("localhost:0", "test")
	require.NoError(t, err)
	defer server.Stop()

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	lines := bufio.NewReader(conn)

	welcome, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PPI Version test\n", welcome)

	server.OnReading(rx.Reading{Seq: 1, Timestamp: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), Range: 2})

	line, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "1      083000.000z     0.0°    2.00m\n", line)
}

func TestServer_StopClosesConnections(t *testing.T) {
	server, err := NewServer("localhost:0", "test")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	lines := bufio.NewReader(conn)
	_, err = lines.ReadString('\n')
	require.NoError(t, err)

	server.Stop()
	server.Stop()

	_, err = lines.ReadString('\n')
	assert.Error(t, err)

	done := make(chan struct{})
	go func() {
		server.OnReading(rx.Reading{Seq: 2})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnReading blocks after stop")
	}
}

func TestServer_OnReadingDoesNotBlock(t *testing.T) {
	server, err := NewServer("localhost:0", "test")
	require.NoError(t, err)
	defer server.Stop()

	start := time.Now()
	worst := time.Duration(0)
	for i := 0; i < 100; i++ {
		callStart := time.Now()
		server.OnReading(rx.Reading{Seq: i + 1, Range: 1})
		worst = max(worst, time.Since(callStart))
	}

	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Less(t, worst, 10*time.Millisecond)
}

func TestServer_ConcurrentStop(t *testing.T) {
	server, err := NewServer("localhost:0", "test")
	require.NoError(t, err)

	stopped := &sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		stopped.Add(1)
		go func() {
			defer stopped.Done()
			server.Stop()
		}()
	}
	stopped.Wait()

	_, err = net.Dial("tcp", server.Addr().String())
	assert.Error(t, err, "the listener is closed")
}
