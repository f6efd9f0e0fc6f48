package stats

import (
	"sync"
	"sync/atomic"

	"github.com/favbox/windx/common/errors"
)

// EventIndex 表示一个唯一的事件。
type EventIndex int

// Level 设置记录级别。
type Level int

// Event 级别。
const (
	LevelDisabled Level = iota
	LevelBase
	LevelDetailed
)

// Event 用于表示一个特定的生命周期事件。
type Event interface {
	Index() EventIndex
	Level() Level
	Name() string
}

type event struct {
	idx   EventIndex
	level Level
	name  string
}

func (e event) Index() EventIndex { return e.idx }

func (e event) Level() Level { return e.level }

func (e event) Name() string { return e.name }

const (
	_ EventIndex = iota
	httpStart
	httpFinish
	readBodyStart
	readBodyFinish
	handleStart
	handleFinish
	triageStart
	triageFinish
	writeStart
	writeFinish
	predefinedEventNum
)

// 预定义的事件。
var (
	HTTPStart = newEvent(httpStart, LevelBase, "http_start")

	ReadBodyStart  = newEvent(readBodyStart, LevelDetailed, "read_body_start")   // 正文加载开始
	ReadBodyFinish = newEvent(readBodyFinish, LevelDetailed, "read_body_finish") // 正文加载结束
	HandleStart    = newEvent(handleStart, LevelDetailed, "handle_start")        // 处理链开始
	HandleFinish   = newEvent(handleFinish, LevelDetailed, "handle_finish")      // 处理链结束
	TriageStart    = newEvent(triageStart, LevelDetailed, "triage_start")        // 分诊开始
	TriageFinish   = newEvent(triageFinish, LevelDetailed, "triage_finish")      // 分诊结束
	WriteStart     = newEvent(writeStart, LevelDetailed, "write_start")          // 写出开始
	WriteFinish    = newEvent(writeFinish, LevelDetailed, "write_finish")        // 写出结束

	HTTPFinish = newEvent(httpFinish, LevelBase, "http_finish")
)

// 错误
var (
	ErrNotAllowed = errors.NewPublic("初始化以后不允许再定义事件")
	ErrDuplicate  = errors.NewPublic("事件名称已被定义")
)

var (
	lock        sync.RWMutex
	initialized int32
	userDefined = make(map[string]Event)
	maxEventNum = int(predefinedEventNum)
)

// FinishInitialization 冻结所有定义的事件，并阻止进一步的定义。
func FinishInitialization() {
	atomic.StoreInt32(&initialized, 1)
}

// DefineNewEvent 允许在程序初始化期间自定义事件。
func DefineNewEvent(name string, level Level) (Event, error) {
	if atomic.LoadInt32(&initialized) == 1 {
		return nil, ErrNotAllowed
	}
	lock.Lock()
	defer lock.Unlock()
	evt, exist := userDefined[name]
	if exist {
		return evt, ErrDuplicate
	}
	userDefined[name] = newEvent(EventIndex(maxEventNum), level, name)
	maxEventNum++
	return userDefined[name], nil
}

// MaxEventNum 返回定义的事件数量。
func MaxEventNum() int {
	lock.RLock()
	defer lock.RUnlock()
	return maxEventNum
}

func newEvent(idx EventIndex, level Level, name string) Event {
	return event{
		idx:   idx,
		level: level,
		name:  name,
	}
}
