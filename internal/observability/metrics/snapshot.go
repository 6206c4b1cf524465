package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ActivitySnapshot summarizes console activity for the analytics page.
type ActivitySnapshot struct {
	SavesSucceeded int64   `json:"savesSucceeded"`
	SavesFailed    int64   `json:"savesFailed"`
	SavesDiscarded int64   `json:"savesDiscarded"`
	Toggles        int64   `json:"toggles"`
	PlatformErrors int64   `json:"platformErrors"`
	PlatformCalls  int64   `json:"platformCalls"`
	PlatformAvgMs  float64 `json:"platformAvgMs"`
}

// Snapshot reads the console collectors back from gatherer (the default
// gatherer when nil). Missing families read as zero.
func Snapshot(gatherer prometheus.Gatherer) ActivitySnapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return ActivitySnapshot{}
	}

	var out ActivitySnapshot
	var latencySum float64
	var latencyCount uint64
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "console_settings_saves_total":
			out.SavesSucceeded = sumCounter(mf, "outcome", "success")
			out.SavesFailed = sumCounter(mf, "outcome", "failure")
			out.SavesDiscarded = sumCounter(mf, "outcome", "stale")
		case "console_integrations_toggles_total":
			out.Toggles = sumCounter(mf, "", "")
		case "console_platform_requests_total":
			out.PlatformCalls = sumCounter(mf, "", "")
			out.PlatformErrors = out.PlatformCalls - sumCounter(mf, "status", "ok")
		case "console_platform_request_latency_seconds":
			for _, metric := range mf.Metric {
				if h := metric.GetHistogram(); h != nil {
					latencySum += h.GetSampleSum()
					latencyCount += h.GetSampleCount()
				}
			}
		}
	}
	if latencyCount > 0 {
		out.PlatformAvgMs = latencySum / float64(latencyCount) * 1000.0
	}
	return out
}

// sumCounter adds up the counters of mf whose label name equals value. An
// empty name sums every series.
func sumCounter(mf *dto.MetricFamily, name, value string) int64 {
	var total float64
	for _, metric := range mf.Metric {
		if metric == nil {
			continue
		}
		if name != "" && !hasLabel(metric, name, value) {
			continue
		}
		total += metric.GetCounter().GetValue()
	}
	return int64(total)
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, lp := range metric.Label {
		if lp == nil {
			continue
		}
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
