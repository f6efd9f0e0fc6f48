package stats

import (
	"github.com/favbox/windx/common/tracer/stats"
	"github.com/favbox/windx/common/tracer/traceinfo"
)

// Record 记录事件至 HTTPStats。
func Record(ti traceinfo.TraceInfo, event stats.Event, err error) {
	if ti == nil {
		return
	}
	if err != nil {
		ti.Stats().Record(event, stats.StatusError, err.Error())
	} else {
		ti.Stats().Record(event, stats.StatusInfo, "")
	}
}

// CalcEventCostUs 计算统计耗时，并以微秒为单位返回。
func CalcEventCostUs(start, end traceinfo.Event) uint64 {
	if start == nil || end == nil {
		return 0
	}
	return uint64(end.Time().Sub(start.Time()).Microseconds())
}

// 成对记录的阶段。
var phases = []struct {
	name       string
	start, end stats.Event
}{
	{"read_body", stats.ReadBodyStart, stats.ReadBodyFinish},
	{"handle", stats.HandleStart, stats.HandleFinish},
	{"triage", stats.TriageStart, stats.TriageFinish},
	{"write", stats.WriteStart, stats.WriteFinish},
	{"total", stats.HTTPStart, stats.HTTPFinish},
}

// Summary 汇总已记录阶段的耗时（微秒），未记录完整的阶段被跳过。
func Summary(ti traceinfo.TraceInfo) map[string]uint64 {
	out := make(map[string]uint64)
	if ti == nil {
		return out
	}
	st := ti.Stats()
	for _, p := range phases {
		s, e := st.GetEvent(p.start), st.GetEvent(p.end)
		if s == nil || e == nil {
			continue
		}
		out[p.name] = CalcEventCostUs(s, e)
	}
	return out
}

// Failures 返回以非 info 状态结束的阶段，形如 "handle: error: 处理器发生恐慌"。
func Failures(ti traceinfo.TraceInfo) []string {
	if ti == nil {
		return nil
	}
	var out []string
	st := ti.Stats()
	for _, p := range phases {
		e := st.GetEvent(p.end)
		if e == nil || e.Status() == stats.StatusInfo {
			continue
		}
		out = append(out, p.name+": "+e.Status().String()+": "+e.Info())
	}
	return out
}
