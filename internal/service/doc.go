// Package service runs configured probes as a long-lived daemon.
//
// Bounded probes with a schedule are registered on a cron runner and
// re-run on every trigger; bounded probes without a schedule run once at
// startup. Continuous probes start with the daemon and stop with it.
// Scheduled runs are serialized: if a trigger fires while another probe
// run is active, the trigger is skipped (overlapping measurement runs
// would confound each other's timing).
//
// Completed run reports are logged and, when a history store is attached,
// persisted.
package service
