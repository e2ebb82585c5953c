package audit

import (
	"context"
	"time"

	"tableflow/internal/engine"
	"tableflow/internal/logger"
)

const writeTimeout = 5 * time.Second

// Writer persists or forwards one execution log.
type Writer interface {
	Write(ctx context.Context, entry ExecutionLog) error
}

// Recorder fans every engine result out to its writers. A failing writer is
// logged and never affects event processing.
type Recorder struct {
	writers []namedWriter
	logger  logger.Logger
}

type namedWriter struct {
	name string
	w    Writer
}

func NewRecorder(log logger.Logger) *Recorder {
	return &Recorder{logger: log}
}

func (r *Recorder) Add(name string, w Writer) *Recorder {
	r.writers = append(r.writers, namedWriter{name: name, w: w})
	return r
}

func (r *Recorder) Len() int {
	return len(r.writers)
}

func (r *Recorder) Record(ctx context.Context, result engine.EventResult) {
	if len(r.writers) == 0 {
		return
	}
	entry := FromResult(result)

	// Audit must outlive a cancelled request.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	for _, nw := range r.writers {
		if err := nw.w.Write(wctx, entry); err != nil {
			r.logger.ErrorwCtx(ctx, "Failed to record execution log",
				"writer", nw.name,
				"event_id", entry.EventID,
				"error", err,
			)
		}
	}
}
