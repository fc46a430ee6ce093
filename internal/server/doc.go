// Package server implements the observer feed for discovery results.
//
// The feed is a small HTTP server meant for local tooling. It exposes:
//   - GET /snapshot: the current hosts of every tracker, and the conflict
//     state when this process advertises itself, as one JSON document
//   - GET /ws: a WebSocket stream of Update messages, one per snapshot
//     change, starting with the current state of every tracker
//   - GET /metrics: Prometheus metrics, when a gatherer is configured
//
// # Usage Example
//
//	feed := server.New(server.Config{
//	    Listen:   "127.0.0.1:8765",
//	    Trackers: finder.Trackers(),
//	    Gatherer: registry,
//	})
//	if err := feed.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # WebSocket Stream
//
// Observers never need to send anything. The server pings every pingPeriod
// and drops observers that do not answer within pongWait. A slow observer
// only ever receives the latest snapshot of each tracker.
package server
