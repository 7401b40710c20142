// Package config holds the bridge settings and the user's device registry.
//
// Settings are read with viper from defaults, an optional lightwave.yaml and
// LIGHTWAVE_* environment variables (LIGHTWAVE_SMART_EMAIL overrides
// smart.email). The registry is a YAML file naming legacy rooms and devices
// and caching the Smart hub feature list:
//   - Linux: $XDG_CONFIG_HOME/lightwave/devices.yaml or $HOME/.config/lightwave/devices.yaml
//   - macOS: $HOME/.config/lightwave/devices.yaml
//   - Windows: %LOCALAPPDATA%\lightwave\devices.yaml
//
// Account passwords are never written to disk. The Smart session token is,
// unless preferences.save_session is false.
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are serialized and atomic.
package config
