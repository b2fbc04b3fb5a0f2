package app

import (
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uilive"

	"github.com/cloudfoundry/disk-planner/workflow"
)

// StatusRenderer keeps a single redrawn status line per running workflow.
// Command output must go through Bypass so it is not overwritten.
type StatusRenderer struct {
	writer *uilive.Writer

	lock    sync.Mutex
	running bool
}

func NewStatusRenderer(out io.Writer) *StatusRenderer {
	writer := uilive.New()
	writer.Out = out
	return &StatusRenderer{writer: writer}
}

func (r *StatusRenderer) Start() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.running {
		r.writer.Start()
		r.running = true
	}
}

func (r *StatusRenderer) Stop() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.running {
		r.writer.Stop()
		r.running = false
	}
}

func (r *StatusRenderer) Render(w workflow.Workflow, state workflow.State) {
	fmt.Fprintf(r.writer, "%s %s: %s\n", w.Kind, w.Target, state) //nolint:errcheck
}

func (r *StatusRenderer) Bypass() io.Writer {
	return r.writer.Bypass()
}
