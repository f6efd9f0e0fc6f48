package stats

// Status 事件的记录状态，阶段以错误结束时为 StatusError。
type Status int8

// 预定义的状态。
const (
	StatusInfo  Status = 1
	StatusWarn  Status = 2
	StatusError Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusInfo:
		return "info"
	case StatusWarn:
		return "warn"
	case StatusError:
		return "error"
	}
	return "unknown"
}
