// Package config provides the mdnswatch configuration file.
//
// The file is YAML and lists the service types to search for, the instance
// this machine advertises, timing, and the observer feed address. Command
// line flags override anything set here.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/mdnswatch/config.yaml or $HOME/.config/mdnswatch/config.yaml
//   - macOS: $HOME/.config/mdnswatch/config.yaml
//   - Windows: %LOCALAPPDATA%\mdnswatch\config.yaml
//
// # Example
//
//	version: 1
//	poll_interval: 10s
//	stale_after: 15s
//	search:
//	  - service_type: _myservice
//	    protocol: tcp
//	advertise:
//	  instance_name: studio-control
//	  service_type: _gameshow
//	  protocol: tcp
//	  port: 9000
//	feed:
//	  listen: 127.0.0.1:8765
//
// # Thread Safety
//
// Save is serialized by a package mutex and writes atomically through a
// temporary file.
package config
