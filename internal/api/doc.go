// Package api provides devsel's HTTP REST API and WebSocket event stream.
//
// Endpoints (all under /api/v1):
//
//	GET    /health          liveness plus component checks
//	GET    /devices         configured ids with their enable flag
//	GET    /devices/{id}    full record of one device
//	GET    /selection       current selection and its description
//	PUT    /selection       select a device: {"id":"x1"}
//	DELETE /selection       reset the selection
//	POST   /detect          run a sweep and return its result
//	GET    /sweeps          recorded sweeps, newest first (?limit=N)
//	GET    /sweeps/{id}     one recorded sweep
//	GET    /ws              WebSocket stream of sweep.completed and selection.changed events
//
// Every catalog access goes through the Detector, so requests never race a
// running sweep.
//
// Lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
