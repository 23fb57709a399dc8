// Package session persists the result of an ipass authentication run so later commands can talk to
// the password manager without repeating the handshake.
//
// A [Record] holds the identity token the client presented during the handshake and the shared key
// derived from it. The first 16 bytes of the shared key encrypt every subsequent request. A record
// with an empty key means no session is active; the relay daemon writes such a record when it shuts
// down, because the password manager forgets the session at the same time.
//
// Records are stored through the [Store] interface. [FileStore] keeps the record as JSON on disk
// (by default ~/.ipass/config.json), and [KeyringStore] keeps it in the system keyring. Anyone who
// can read a record can decrypt traffic for that session, so file permissions are restricted to the
// current user.
package session
