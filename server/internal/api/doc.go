// Package api implements the collaborator-facing REST surface of
// feastline-hub.
//
// POST /api/v1/notify is the out-of-process form of hub.Emit: the order,
// restaurant, and driver CRUD services publish notification events here.
// GET /api/v1/health and /api/v1/stats expose hub state, GET
// /api/v1/drivers/{id}/location serves the last known driver position, and
// GET /metrics exposes the same counters in Prometheus text format.
package api
