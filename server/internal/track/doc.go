// Package track keeps the last-known position of each driver, fed by
// update_driver_location messages from driver connections and read by the
// REST API. Positions expire after a TTL so a silent driver is reported as
// unknown rather than frozen in place.
package track
