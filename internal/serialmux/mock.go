package serialmux

import (
	"io"
	"sync"
	"time"
)

// MockSerialPort implements SerialPorter for testing and dev mode. It
// replays fixture bytes as if the bridge were streaming them and records
// every command written to it.
type MockSerialPort struct {
	mu      sync.Mutex
	pending []byte
	fixture []byte
	loop    bool
	delay   time.Duration
	written [][]byte
	closed  bool
}

// NewMockSerialPort returns a port that yields data once and then EOF.
func NewMockSerialPort(data []byte) *MockSerialPort {
	return &MockSerialPort{pending: append([]byte(nil), data...)}
}

// NewLoopingMockSerialPort returns a port that replays data forever with a
// small pause between repetitions, simulating the bridge's sample cadence.
func NewLoopingMockSerialPort(data []byte, delay time.Duration) *MockSerialPort {
	return &MockSerialPort{
		fixture: append([]byte(nil), data...),
		pending: append([]byte(nil), data...),
		loop:    true,
		delay:   delay,
	}
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return 0, io.EOF
		}
		if len(m.pending) > 0 {
			n := copy(p, m.pending)
			m.pending = m.pending[n:]
			m.mu.Unlock()
			return n, nil
		}
		if !m.loop {
			m.mu.Unlock()
			return 0, io.EOF
		}
		m.pending = append([]byte(nil), m.fixture...)
		m.mu.Unlock()
		if m.delay > 0 {
			time.Sleep(m.delay)
		}
	}
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	m.written = append(m.written, append([]byte(nil), p...))
	return len(p), nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns a copy of every write made to the port, in order.
func (m *MockSerialPort) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	for i, w := range m.written {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// NewMockSerialMux creates a SerialMux instance backed by a looping mock
// serial port replaying the given fixture data.
func NewMockSerialMux(data []byte) *SerialMux[*MockSerialPort] {
	return NewSerialMux(NewLoopingMockSerialPort(data, 100*time.Millisecond))
}
