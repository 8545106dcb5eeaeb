package httpserver

import "time"

// ShutdownTimeout bounds graceful shutdown. In-flight relays are cut off once
// it elapses.
var ShutdownTimeout = 15 * time.Second
