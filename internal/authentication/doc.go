// Package authentication establishes and uses the encrypted session between the ipass CLI and the
// platform password manager.
//
// A [Handshake] runs the two round trips of the SRP exchange, asks the user for the PIN shown by
// the password manager, and stores the resulting shared key in a session.Store. Once a session
// exists, a [Codec] seals request fields and opens response fields with AES-128-GCM.
//
// The two directions use different envelope layouts. Requests are sealed as
// base64(ciphertext | tag | nonce), while responses arrive as base64(nonce | ciphertext | tag). See
// [Layout].
package authentication
