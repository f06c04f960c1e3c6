// Package metrics provides Prometheus instrumentation for goasync components.
//
// # Overview
//
// The metrics package instruments:
//   - The scheduler port (actions armed, canceled, fired, pending, cancel misuse,
//     dropped deliveries, callback latency)
//   - Dispatch controllers (delivered / gone / panic outcomes)
//   - Async providers (destruction by reason, timer firings, fetch results)
//   - Worker pools (pool size, active workers, queued tasks)
//
// # Quick Start
//
// Pass a registry to the components that should be instrumented:
//
//	reg := metrics.NewRegistry(prometheus.NewRegistry())
//	loop, _ := hostsched.NewLoop(hostsched.Config{Name: "main", Metrics: reg})
//	t, _ := timer.New(loop, timer.Periodic, time.Second, 0, timer.WithMetrics(reg))
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// A nil *Registry disables collection; every recording helper is nil-safe.
//
// # Available Metrics
//
//   - goasync_hostsched_actions_scheduled_total{scheduler_name,kind}
//   - goasync_hostsched_actions_canceled_total{scheduler_name,kind}
//   - goasync_hostsched_actions_fired_total{scheduler_name,kind}
//   - goasync_hostsched_actions_pending{scheduler_name}
//   - goasync_hostsched_cancel_misuse_total{scheduler_name}
//   - goasync_hostsched_deliveries_dropped_total{scheduler_name}
//   - goasync_hostsched_callback_duration_seconds{scheduler_name}
//   - goasync_async_dispatches_total{controller_name,outcome}
//   - goasync_async_providers_destroyed_total{provider,reason}
//   - goasync_timer_firings_total{timer_name,mode}
//   - goasync_fetch_results_total{fetch_name,result}
//   - goasync_fetch_duration_seconds{fetch_name}
//   - goasync_workerpool_size / active_workers / queued_tasks{pool_name}
package metrics
