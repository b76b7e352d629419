// Package sync reconciles the subscriber store with live state on the
// routers.
//
// The engine pulls active PPPoE sessions from each router, classifies
// every subscriber as online, offline or isolated, writes status changes
// back in concurrency-limited batches, and hands the resulting deltas to
// a notifier for dashboard push. It also mirrors subscriber provisioning
// (create, update, disable, delete) to the router's PPP secrets with
// partial-failure reporting: the database is the source of truth and a
// router error never rolls back a local write.
package sync
