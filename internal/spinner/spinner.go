package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const frameInterval = 80 * time.Millisecond

// Spinner renders an animated progress indicator on a terminal. Safe for
// concurrent message updates; Start and Stop must be paired.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	maxLen  int

	done    chan struct{}
	cleared chan struct{}
	once    sync.Once
}

// New builds a spinner that writes to w with an initial message.
func New(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:       w,
		message: message,
		maxLen:  len(message),
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
}

// Start begins the animation. Call Stop to halt it and clear the line.
func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		i := 0
		for {
			select {
			case <-s.done:
				s.mu.Lock()
				width := s.maxLen + 2
				s.mu.Unlock()
				fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", width)) //nolint:errcheck
				close(s.cleared)
				return
			case <-ticker.C:
				s.mu.Lock()
				msg := s.message
				s.mu.Unlock()
				fmt.Fprintf(s.w, "\r%s %s", frames[i%len(frames)], msg) //nolint:errcheck
				i++
			}
		}
	}()
}

// UpdateMessage swaps the text shown next to the spinner.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	padded := message
	if len(message) > s.maxLen {
		// Track the widest message so Stop clears the whole line even after
		// the text shrinks.
		s.maxLen = len(message)
	} else {
		// Repaint over any leftover tail from a longer previous message.
		padded += strings.Repeat(" ", s.maxLen-len(message))
	}
	s.message = padded
}

// Stop halts the animation and blocks until the line is cleared. Safe to
// call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.cleared
}
