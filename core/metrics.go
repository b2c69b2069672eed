package core

import (
	"context"
	"maps"
)

// NopMetricsRecorder discards every measurement. It keeps the emit sites
// unconditional when no recorder is wired in.
type NopMetricsRecorder struct{}

var _ MetricsRecorder = NopMetricsRecorder{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// cloneTags hands each recorder its own tag map so emit sites can reuse theirs.
func cloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	return maps.Clone(tags)
}
