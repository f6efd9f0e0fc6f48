package traceinfo

import (
	"sync"

	"github.com/favbox/windx/common/tracer/stats"
	"github.com/zoobzio/clockz"
)

var (
	once        sync.Once
	maxEventNum int
)

// HTTPStats 收集单个交换体的生命周期统计。
type HTTPStats interface {
	Record(event stats.Event, status stats.Status, info string)
	GetEvent(event stats.Event) Event
	RecvSize() int
	SetRecvSize(size int)
	SendSize() int
	SetSendSize(size int)
	Error() error
	SetError(err error)
	Panicked() (bool, any)
	SetPanicked(x any)
	Level() stats.Level
	SetLevel(level stats.Level)
	Reset()
}

type httpStats struct {
	sync.RWMutex
	clock clockz.Clock
	level stats.Level

	events []Event

	sendSize int
	recvSize int

	err      error
	panicErr any
}

func (h *httpStats) Record(e stats.Event, status stats.Status, info string) {
	if e.Level() > h.Level() {
		return
	}
	evt := &event{
		event:  e,
		status: status,
		info:   info,
		time:   h.clock.Now(),
	}

	h.Lock()
	if idx := int(e.Index()); idx < len(h.events) {
		h.events[idx] = evt
	}
	h.Unlock()
}

func (h *httpStats) GetEvent(e stats.Event) Event {
	h.RLock()
	defer h.RUnlock()
	idx := int(e.Index())
	if idx >= len(h.events) {
		return nil
	}
	return h.events[idx]
}

func (h *httpStats) SendSize() int {
	h.RLock()
	defer h.RUnlock()
	return h.sendSize
}

func (h *httpStats) SetSendSize(size int) {
	h.Lock()
	h.sendSize = size
	h.Unlock()
}

func (h *httpStats) RecvSize() int {
	h.RLock()
	defer h.RUnlock()
	return h.recvSize
}

func (h *httpStats) SetRecvSize(size int) {
	h.Lock()
	h.recvSize = size
	h.Unlock()
}

func (h *httpStats) Error() error {
	h.RLock()
	defer h.RUnlock()
	return h.err
}

func (h *httpStats) SetError(err error) {
	h.Lock()
	h.err = err
	h.Unlock()
}

func (h *httpStats) Panicked() (bool, any) {
	h.RLock()
	defer h.RUnlock()
	return h.panicErr != nil, h.panicErr
}

func (h *httpStats) SetPanicked(x any) {
	h.Lock()
	h.panicErr = x
	h.Unlock()
}

func (h *httpStats) Level() stats.Level {
	h.RLock()
	defer h.RUnlock()
	return h.level
}

func (h *httpStats) SetLevel(level stats.Level) {
	h.Lock()
	h.level = level
	h.Unlock()
}

func (h *httpStats) Reset() {
	h.Lock()
	defer h.Unlock()
	h.err = nil
	h.panicErr = nil
	h.recvSize = 0
	h.sendSize = 0
	clear(h.events)
}

// NewHTTPStats 创建统计采集器，首次调用后不再允许定义新事件。
func NewHTTPStats(clock clockz.Clock, level stats.Level) HTTPStats {
	once.Do(func() {
		stats.FinishInitialization()
		maxEventNum = stats.MaxEventNum()
	})
	if clock == nil {
		clock = clockz.RealClock
	}
	return &httpStats{
		clock:  clock,
		level:  level,
		events: make([]Event, maxEventNum),
	}
}
