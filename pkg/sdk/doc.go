/*
Package sdk reports render measurements to the renderscope ingestion service.

# Quick Start

	reporter, err := sdk.New(sdk.Config{
	    ServerURL:     "http://localhost:5001",
	    Optimizations: map[string]string{"FastComponent": "memoization"},
	})
	if err != nil {
	    log.Fatal(err)
	}
	reporter.Start(ctx)
	defer reporter.Stop(context.Background())

	// From the profiler callback of each instrumented component
	reporter.OnRender("ExpensiveComponent", record.PhaseUpdate, 52.1, 50.3, 1200.4, 1253.0)

Each call becomes one POST /log-performance. Delivery happens on a
background goroutine behind a bounded queue and a rate limiter, so OnRender
never blocks. When the queue is full, or the service is unreachable, records
are dropped and counted in Stats; errors are logged, never returned to the
instrumented code. After five consecutive outages a circuit breaker stops
sending for 30 seconds, then lets one probe through.

# HTTP Handlers

Go services can profile their handlers the same way. httpx.Middleware
reports every request as a render of the route, with phase "mount" for the
first request to a route and "update" afterwards:

	handler := httpx.Middleware(reporter)(mux)
*/
package sdk
