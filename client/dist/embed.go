// Package clientdist embeds the browser client served at /_app/client.js.
package clientdist

import _ "embed"

// ClientJS is the thin client. It forwards DOM events over the session
// WebSocket, performs file uploads and applies region patches.
//
//go:embed tumorscope.js
var ClientJS []byte
