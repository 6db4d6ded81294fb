// Package config loads runtime configuration for the folio admin CLI.
//
// Sources, in increasing precedence: built-in defaults, an optional JSON
// file selected with -c or -config, and command-line flags.
//
//	{
//	  "server_url": "https://api.example.com",
//	  "local_db_path": "/home/me/.folio.db",
//	  "request_timeout": "30s"
//	}
package config
