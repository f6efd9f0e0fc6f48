package traceinfo

import (
	"time"

	"github.com/favbox/windx/common/tracer/stats"
)

// Event 是发生于特定时间的事件。
type Event interface {
	Event() stats.Event
	Status() stats.Status
	Info() string
	Time() time.Time
}

type event struct {
	event  stats.Event
	status stats.Status
	info   string
	time   time.Time
}

func (e *event) Event() stats.Event {
	return e.event
}

func (e *event) Status() stats.Status {
	return e.status
}

func (e *event) Info() string {
	return e.info
}

func (e *event) Time() time.Time {
	return e.time
}
