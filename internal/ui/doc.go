// Package ui renders the terminal output of the lightwave CLI.
//
// One-shot commands use a Printer for a header box, tables and a result box.
// "lightwave smart monitor" and "lightwave link listen" run a Monitor, a
// Bubble Tea program installed as a hub observer that keeps one row per
// channel with its latest value.
//
// Logging is silent unless LIGHTWAVE_LOG_LEVEL is set, so zap output does not
// tear the rendered screen.
package ui
