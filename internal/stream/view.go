package stream

import (
	"context"
	"fmt"
	"io"
)

// View tails an invocation's stdout sink, classifies its events, and writes
// rendered lines to out until ctx is cancelled. It is the second, passive
// consumer of the sink: supervision decisions never depend on it, and it
// never returns an error to its caller.
func View(ctx context.Context, sinkPath string, roles *Registry, renderer *Renderer, out io.Writer) {
	lines := make(chan string, 64)
	tailer := NewTailer(sinkPath, lines)
	classifier := NewClassifier(roles)

	tailer.Start()
	defer tailer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-lines:
			for _, l := range classifier.ParseLine(raw) {
				fmt.Fprintln(out, renderer.Format(l))
			}
		}
	}
}
