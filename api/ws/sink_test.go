package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSinkFIFO(t *testing.T) {
	s := NewSink()
	assert.True(t, s.Send("a"))
	assert.True(t, s.Send("b"))
	assert.True(t, s.Send("c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := s.Next()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestSinkDrainsAfterClose(t *testing.T) {
	s := NewSink()
	s.Send("queued")
	s.Close()

	// Queued frames still drain; new sends are rejected.
	assert.False(t, s.Send("rejected"))

	got, ok := s.Next()
	assert.True(t, ok)
	assert.Equal(t, "queued", got)

	_, ok = s.Next()
	assert.False(t, ok)
}

func TestSinkCloseUnblocksWaiter(t *testing.T) {
	s := NewSink()
	done := make(chan struct{})

	go func() {
		_, ok := s.Next()
		assert.False(t, ok)
		close(done)
	}()

	s.Close()
	<-done
}
