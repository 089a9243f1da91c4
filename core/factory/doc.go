// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// The metrics sinks are built this way:
//
//	_ = metrics.RegisterMetricsSink("sqlite", func(conf map[string]any) (metrics.MetricsSink, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return NewSQLiteStore(c.Path)
//	})
//	sink, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "sqlite", Conf: map[string]any{"path": "plans.db"}}})
package factory
