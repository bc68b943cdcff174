// Package config loads, normalizes, and validates radiocap configuration data.
//
// Values come from a TOML file (default ~/.config/radiocap/config.toml or
// ./radiocap.toml) layered over Default(). Paths are expanded to absolute
// form and environment fallbacks (RADIOCAP_API_TOKEN, RADIOCAP_CATALOG) are
// applied before validation so callers always receive a usable Config.
package config
