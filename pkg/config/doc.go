// Package config defines the daemon's YAML configuration: the listener,
// privacy policy, logging, metrics, audit log and the static tenant
// table.
//
// Loading starts from strict defaults and lets the file override them,
// so an absent privacy key means "enforced", never "off". Environment
// variables (MCPD_*) override the file. A watcher built on fsnotify
// reloads the file on change for the settings that support hot reload
// (the privacy section).
package config
