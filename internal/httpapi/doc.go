// Package httpapi serves the bridge's status surface: Prometheus metrics,
// a health probe and the Smart hub feature cache, with writes proxied to the
// hub.
package httpapi
