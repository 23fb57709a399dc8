/*
Package protocol defines the JSON messages exchanged between the ipass CLI and the platform password
manager, along with the error types shared by the rest of the module.

The relay daemon does not interpret these messages; it only frames them. Every request therefore
travels unchanged from [Request] (or [HandshakeRequest]) on the CLI side to the password manager's
stdin, and every response travels back as a [Response] (or [HandshakeResponse]).

Two encodings appear inside otherwise plain JSON:

  - The handshake PAKE field is a JSON document that is base64 encoded as a string.
  - The payload of some requests is a JSON document embedded as a string (see [JSONString]).

Sensitive request and response fields are carried in [SMSG].SDATA as sealed envelopes. Sealing is
performed by the authentication package; this package only carries the resulting strings.
*/
package protocol
