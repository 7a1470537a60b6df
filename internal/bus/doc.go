// Package bus publishes pipeline progress and lifecycle events to NATS so
// dashboards and other consumers can observe runs without polling the
// record store.
package bus
