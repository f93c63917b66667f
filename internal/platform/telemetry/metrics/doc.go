// Package metrics provides operational metrics collection.
//
// # Metric Categories
//
//   - Transitions: relationship operations by op and result
//   - Live events: dispatcher deliveries by event name and outcome
//   - Connections: currently registered live sockets
//
// Each Metrics value owns its registry so tests and multiple servers in one
// process do not collide on the default registerer.
package metrics
