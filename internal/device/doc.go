// Package device provides the device catalog and the auto-detection engine
// for devsel.
//
// The catalog is a read-only view over a configuration source: a nested
// mapping rooted at a "device" key, one child per device identifier. The
// detector sweeps every configured device, probes its communication channel
// through a Session, and settles the catalog on the single live device, on
// nothing, or on an explicit ambiguous state.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         Device Selection                          │
//	│                                                                   │
//	│  ┌──────────────────┐     ┌──────────────────┐                    │
//	│  │     Detector     │────▶│     Catalog      │                    │
//	│  │  (detector.go)   │     │  (catalog.go)    │                    │
//	│  │                  │     │                  │                    │
//	│  │ • Sweep          │     │ • IDs / Select   │                    │
//	│  │ • Disambiguation │     │ • Section access │                    │
//	│  │ • Observers      │     │ • Selection state│                    │
//	│  └──────────────────┘     └──────────────────┘                    │
//	│           │                                                       │
//	└───────────│───────────────────────────────────────────────────────┘
//	            ▼
//	┌──────────────────────┐   ┌──────────────────────────────────────┐
//	│  SessionFactory      │   │  SweepObservers                      │
//	│  (internal/session)  │   │  history • mqtt • influxdb • api/ws  │
//	└──────────────────────┘   └──────────────────────────────────────┘
//
// # Configuration Source
//
//	device:
//	  x1:
//	    enable: true
//	    system:
//	      plat: Arduino
//	      mark: "1"
//	      desc: Bench controller
//	      arch: avr
//	      path: /opt/x1
//	      work: /opt/x1/work
//	      logs: /var/log/x1
//	    comm:
//	      serial: {port: /dev/ttyUSB0, speed: 115200}
//	    startup: ["M115"]
//
// # Usage
//
//	catalog := device.NewCatalog(src)
//	detector := device.NewDetector(catalog, session.NewFactory(),
//	    device.WithLogger(log),
//	    device.WithObservers(historyStore, publisher),
//	)
//
//	result := detector.Detect(ctx)
//	switch result.Selection.State() {
//	case device.StateSelected:
//	    // exactly one device answered
//	case device.StateAmbiguous:
//	    // result.Matches lists the candidates
//	case device.StateUnset:
//	    // nothing answered
//	}
//
// # Thread Safety
//
// Catalog is not safe for concurrent use; its selection is shared mutable
// state. Detector serialises Detect and Do on one mutex, so callers that
// share a catalog across goroutines go through the Detector.
package device
