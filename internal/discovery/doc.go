// Package discovery aggregates mDNS service discovery into live host lists.
//
// A Finder owns one Tracker per search profile and, optionally, a
// ConflictTracker for the service type this process advertises itself. It
// subscribes to an Engine, routes each protocol event to the tracker for its
// "_service._proto" key and drives a poll loop: query every key, wait one poll
// interval, sweep every tracker.
//
// # Freshness
//
// Every address a tracker knows carries a last-seen time. Discovery and
// unsolicited answers refresh it; a sweep evicts addresses not seen within the
// staleness threshold and drops hosts left with none. A goodbye for any of a
// host's addresses removes the whole host.
//
// # Snapshots
//
// Trackers publish immutable, key-ordered snapshots. A new snapshot is only
// published when its content differs from the last one, so subscribers see no
// churn from repeated responses.
//
// # Usage Example
//
//	finder, err := discovery.NewFinder([]discovery.SearchProfile{
//	    {ServiceType: "_myservice", Protocol: "tcp"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := mdns.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Close()
//
//	h := finder.Start(ctx, engine)
//	for _, t := range finder.Trackers() {
//	    updates, cancel := t.Subscribe()
//	    defer cancel()
//	    go func() {
//	        for hosts := range updates {
//	            fmt.Println(hosts)
//	        }
//	    }()
//	}
//	_ = h.Wait()
//
// # Conflicts
//
// A ConflictMonitor advertises this process's service and watches for other
// machines advertising the same service type under a different machine name.
// Conflict signals fire on every change while a conflict is active and once
// when it clears.
//
// # Thread Safety
//
// Trackers accept events from any goroutine. Snapshot reads never block on
// event handling.
package discovery
