package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/kingrea/rtlbuild/internal/pipeline"
)

// PlainObserver prints one styled line per finished stage to w. Running
// events are not printed.
func PlainObserver(w io.Writer) pipeline.Observer {
	var mu sync.Mutex
	return pipeline.ObserverFunc(func(e pipeline.Event) {
		if !e.Status.Terminal() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, renderStageLine(stageRow{stage: e.Stage, status: e.Status, detail: e.Detail}, ""))
	})
}
