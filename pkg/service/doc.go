// Package service wires the whole module together behind one
// lifecycle.
//
// A SyncService owns the rate limiter, API client, state cache,
// staging store, sync engine, telemetry poller and the optional MQTT
// bridge. Start resolves the device, probes its capabilities, reloads
// persisted intent and launches the poller; Stop persists staged
// values and the budget window and shuts everything down. All the
// accessors a UI layer needs live here.
package service
