// Package config loads host configuration from YAML and the environment.
//
// A file looks like:
//
//	plugin: ./menus.wasm
//	menu: items
//	items: [alpha, beta]
//	log:
//	  level: debug
//	  format: json
//	wasm:
//	  memoryLimitPages: 64
//	  enableWASI: true
//	watch: true
//
// NFM_PLUGIN and NFM_LOG_LEVEL override the file. Command-line flags, applied
// by the caller, override both.
package config
