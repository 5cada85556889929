package plugins

import (
	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldops/config"
	dispatchlog "github.com/kilianp07/fieldops/core/dispatch/logging"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	inframetrics "github.com/kilianp07/fieldops/infra/metrics"
)

func init() {
	RegisterMetrics("none", func(string, map[string]any) (coremetrics.Sink, error) {
		return coremetrics.NopSink{}, nil
	})
	// conf["registerer"] may carry a prometheus.Registerer; the default
	// registerer is used otherwise.
	RegisterMetrics("prometheus", func(_ string, conf map[string]any) (coremetrics.Sink, error) {
		reg, _ := conf["registerer"].(prometheus.Registerer)
		return inframetrics.NewPromSinkWithRegistry(reg)
	})

	RegisterLogStore("none", func(string, map[string]any) (dispatchlog.LogStore, error) {
		return dispatchlog.NopStore{}, nil
	})
	RegisterLogStore("jsonl", func(_ string, conf map[string]any) (dispatchlog.LogStore, error) {
		lc, err := decodeLogging(conf)
		if err != nil {
			return nil, err
		}
		if lc.MaxSizeMB > 0 {
			return dispatchlog.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
		}
		return dispatchlog.NewJSONLStore(lc.Path)
	})
	RegisterLogStore("sqlite", func(_ string, conf map[string]any) (dispatchlog.LogStore, error) {
		lc, err := decodeLogging(conf)
		if err != nil {
			return nil, err
		}
		return dispatchlog.NewSQLiteStore(lc.Path)
	})
}

func decodeLogging(conf map[string]any) (config.LoggingConfig, error) {
	var lc config.LoggingConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &lc,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return lc, err
	}
	if err := dec.Decode(conf); err != nil {
		return lc, err
	}
	lc.SetDefaults()
	return lc, lc.Validate()
}
