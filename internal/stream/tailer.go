package stream

import (
	"bufio"
	"io"
	"os"
	"sync"
	"time"
)

// Tailer follows a live output sink file and sends complete lines to a
// channel. It waits for the sink to be created, survives truncation, and
// buffers partial lines until the producer finishes them. An unreadable sink
// simply yields no lines; the tailer must never disturb the invocation it is
// observing.
type Tailer struct {
	path         string
	output       chan<- string
	stopChan     chan struct{}
	doneChan     chan struct{}
	mu           sync.Mutex
	stopped      bool
	pollInterval time.Duration
}

// NewTailer creates a Tailer for the given sink path.
func NewTailer(path string, output chan<- string) *Tailer {
	return &Tailer{
		path:         path,
		output:       output,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		pollInterval: 100 * time.Millisecond,
	}
}

// Start begins tailing in a background goroutine.
func (t *Tailer) Start() {
	go t.tailLoop()
}

// Stop stops the tailer and waits briefly for the loop to drain.
func (t *Tailer) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()

	close(t.stopChan)

	select {
	case <-t.doneChan:
	case <-time.After(1 * time.Second):
	}
}

func (t *Tailer) tailLoop() {
	defer close(t.doneChan)

	// Wait for the sink to be created by the supervisor.
	var file *os.File
	var err error
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		file, err = os.Open(t.path)
		if err == nil {
			break
		}

		select {
		case <-t.stopChan:
			return
		case <-time.After(t.pollInterval):
		}
	}
	defer file.Close()

	var lastSize int64
	if info, err := file.Stat(); err == nil {
		lastSize = info.Size()
	}

	reader := bufio.NewReader(file)
	var lineBuffer string

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return
			}

			// Partial line without newline: the producer is mid-write.
			if len(line) > 0 {
				lineBuffer += line
			}

			if info, err := file.Stat(); err == nil {
				currentSize := info.Size()
				if currentSize < lastSize {
					// Sink was truncated; start over from the top.
					file.Seek(0, io.SeekStart)
					reader.Reset(file)
					lastSize = 0
					lineBuffer = ""
					continue
				}
				lastSize = currentSize
			}

			select {
			case <-t.stopChan:
				return
			case <-time.After(t.pollInterval):
			}
			continue
		}

		fullLine := lineBuffer + line
		lineBuffer = ""

		if n := len(fullLine); n > 0 && fullLine[n-1] == '\n' {
			fullLine = fullLine[:n-1]
		}
		if n := len(fullLine); n > 0 && fullLine[n-1] == '\r' {
			fullLine = fullLine[:n-1]
		}

		if info, err := file.Stat(); err == nil {
			lastSize = info.Size()
		}

		select {
		case t.output <- fullLine:
		case <-t.stopChan:
			return
		}
	}
}
