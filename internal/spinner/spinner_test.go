package spinner

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinner_RendersAndClears(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, "probing models")
	s.Start()
	time.Sleep(4 * frameInterval)
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "probing models")
	// The final write clears the line.
	assert.True(t, strings.HasSuffix(out, "\r"))
}

func TestSpinner_UpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, "first message here")
	s.Start()
	time.Sleep(2 * frameInterval)
	s.UpdateMessage("second")
	time.Sleep(2 * frameInterval)
	s.Stop()

	assert.Contains(t, buf.String(), "second")
}

func TestSpinner_StopTwice(t *testing.T) {
	var buf bytes.Buffer
	s := New(&buf, "x")
	s.Start()
	s.Stop()
	// Second Stop returns immediately instead of deadlocking.
	s.Stop()
}
