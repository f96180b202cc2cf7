// Package mqtt republishes cache refreshes to an MQTT broker.
//
// The bridge is publish-only: it mirrors the last device snapshot
// onto retained topics and keeps an availability topic in sync with
// the telemetry condition, so a Home Assistant style consumer can
// mark the device unavailable when the cloud link degrades. Nothing
// is ever subscribed; writes still go through the staging flow.
package mqtt
