// Package config loads the relay configuration from the `server:` section of
// config.yaml.
//
// Config fields:
//   - HTTPPort              port for the HTTP API and /ws (default 5000)
//   - Log.Level             debug | info | warn | error (default info)
//   - Auth.Mode             "apikey" or "none"
//   - Auth.KeyEnv           environment variable holding the expected API key
//   - Auth.Header           HTTP header name (default "X-API-Key")
//   - Users.TTL             evict idle user records (default 0, never)
//   - WS.Delivery           piggyback | push (default piggyback)
//   - WS.PongWait           keepalive window, 0 disables (default 60s)
//   - WS.WriteTimeout       per-frame write deadline (default 10s)
//   - WS.MaxMessageBytes    inbound frame limit (default 64KiB)
//   - WS.SendBuffer         per-session outbound queue depth (default 16)
//   - OSC.Enabled/Host/Port optional OSC forwarding of armed events
//
// Load(path) applies defaults before unmarshalling, then validates.
// Watch(ctx, path, fn) reloads the file on change; main applies the log level
// and auth settings from each reload.
package config
