// Package influxdb provides time-series storage connectivity for BioStream Core.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking batched writes of sensor samples
//   - Health monitoring via ping
//   - Async error reporting for failed writes
//
// # Architecture
//
// Streamed sensor samples are projected to scalars and written here
// alongside the durable SQLite record, giving dashboards a queryable
// time-series view without touching the primary store.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) {
//	    logger.Error("influx write failed", "error", err)
//	})
//
//	client.WriteSample("polar-123", "HR", 72.0, time.Now())
//
// Writes are batched (cfg.BatchSize) and flushed on an interval
// (cfg.FlushInterval seconds) or explicitly via Flush().
package influxdb
