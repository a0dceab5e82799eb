// Package providers contains the built-in pipeline providers.
//
// Sources:
//   - teambattle: follows a team in a live arena (team, arena, record)
//   - replay: plays back a recording (recording, speedup)
//
// Transformers:
//   - text: renders announcements in a language (lang = en | sv)
//   - json: renders the JSON envelope of each event
//
// Sinks:
//   - console: one line per announcement on stdout
//   - file: one line per announcement in a file (path, append)
//   - websocket: broadcasts announcements to browsers (addr)
//
// Sinks only accept TextEvent; anything else is reported as
// pipeline.ErrUnexpectedEvent and dropped by the executor.
package providers
