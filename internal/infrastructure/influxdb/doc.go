// Package influxdb records detection telemetry in InfluxDB v2.
//
// Every sweep produces one "sweep" point and one "probe" point per catalog
// entry, timestamped at the sweep start. Writes are non-blocking and
// batched by the client library; failures surface through the error
// callback rather than the detector.
//
// Measurements:
//
//	probe  tags: device_id, outcome     fields: enabled, attempted, live, duration_ms, error
//	sweep  tags: state                  fields: sweep_id, devices, matches, selected_id, duration_ms
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	detector.AddObserver(influxdb.NewSweepRecorder(client))
package influxdb
