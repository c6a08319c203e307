// Package config handles configuration loading for guestdesk.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by the .toml
// extension) with environment variable expansion. Unset values get defaults;
// Validate reports the first invalid value.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from GUESTDESK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/guestdesk/config.yaml
//  3. ~/.config/guestdesk/config.yaml
//
// GUESTDESK_DATA_PATH overrides storage.path.
//
// # Environment Variable Expansion
//
//	tailscale:
//	  auth_key: "${TS_AUTHKEY}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:3000"
//	  static_dir: "./public"     # front-end files served at /
//	  trust_proxy: false         # honor X-Forwarded-For
//	  cors_origins: ["*"]
//
//	storage:
//	  backend: "json"            # json or sqlite
//	  path: "./db.json"
//
//	rate_limit:
//	  enabled: true
//	  requests: 10
//	  window: "60s"
//
//	site:
//	  timezone: "Europe/Berlin"  # empty means server local time
//	  content_dir: "./content"   # markdown window pages
//
//	tailscale:
//	  enabled: false
//	  hostname: "guestdesk"
//	  funnel: false
//
//	notify:
//	  matrix:
//	    enabled: false
//	    homeserver: "https://matrix.org"
//	    user_id: "@desk:matrix.org"
//	    access_token: "${MATRIX_TOKEN}"
//	    room_id: "!room:matrix.org"
//
//	logging:
//	  level: "info"              # debug, info, warn, error
//	  format: "text"             # text, json
//
// # Usage
//
//	cfg, err := config.Load("/etc/guestdesk/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
