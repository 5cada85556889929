package plugins

import (
	"fmt"
	"sort"

	"github.com/kilianp07/fieldops/config"
	dispatchlog "github.com/kilianp07/fieldops/core/dispatch/logging"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
)

// LogStoreFactory builds a dispatch decision log store from raw config.
type LogStoreFactory func(name string, conf map[string]any) (dispatchlog.LogStore, error)

// MetricsFactory builds a metrics exporter from raw config.
type MetricsFactory func(name string, conf map[string]any) (coremetrics.Sink, error)

var (
	LogStores        = map[string]LogStoreFactory{}
	MetricsExporters = map[string]MetricsFactory{}
)

func RegisterLogStore(name string, f LogStoreFactory) { LogStores[name] = f }
func RegisterMetrics(name string, f MetricsFactory)   { MetricsExporters[name] = f }

// BuildLogStore resolves the decision log plugin named by pc.Type.
func BuildLogStore(pc config.PluginConfig) (dispatchlog.LogStore, error) {
	f, ok := LogStores[pc.Type]
	if !ok {
		return nil, fmt.Errorf("unknown decision log store %q (known: %v)", pc.Type, names(LogStores))
	}
	return f(pc.Type, pc.Conf)
}

// BuildMetrics resolves the metrics exporter registered under name.
func BuildMetrics(name string, conf map[string]any) (coremetrics.Sink, error) {
	f, ok := MetricsExporters[name]
	if !ok {
		return nil, fmt.Errorf("unknown metrics exporter %q (known: %v)", name, names(MetricsExporters))
	}
	return f(name, conf)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
