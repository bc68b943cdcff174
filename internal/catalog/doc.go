// Package catalog syncs stations and shows between a TOML file and the store.
//
// A catalog looks like:
//
//	[[station]]
//	call_sign = "KXYZ"
//	stream_url = "http://stream.example.org:8000/live"
//	timezone = "America/Chicago"
//
//	[[show]]
//	key = "morning-show"
//	station = "KXYZ"
//	duration_minutes = 60
//	retention = { value = 4, unit = "weeks" }
//
//	  [[show.airing]]
//	  pattern = "0 8 * * 1-5"
//
//	  [[show.airing]]
//	  pattern = "0 20 * * 6"
//	  type = "repeat"
//
// Import is authoritative for shows: shows absent from the file are
// deactivated rather than deleted, so their recordings keep a parent.
package catalog
