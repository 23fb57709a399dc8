/*
Package relay implements the ipass daemon, which forwards datagrams from the CLI to the platform
password manager and carries the replies back.

The password manager is a native-messaging host: a program described by a JSON [Manifest] that
speaks length-prefixed JSON over its stdin and stdout. The relay starts it once and keeps it running
for the life of the daemon, since the password manager forgets the authenticated session when the
process exits.

Requests are handled one at a time. Each datagram becomes one frame on the host's stdin, and the
next frame read from the host's stdout is sent back to the datagram's sender. A reply that does not
arrive within [Relay.Timeout] is abandoned; when it eventually arrives it is discarded, so replies
never shift onto later requests.

# Example

	manifest, _, err := relay.LoadManifest(relay.DefaultManifestPaths...)
	if err != nil {
		panic(err)
	}
	host, err := relay.StartHost(manifest)
	if err != nil {
		panic(err)
	}
	defer host.Close()

	r := relay.New(host, relay.DefaultPort, relay.DefaultTimeout)
	if err := r.Serve(ctx); err != nil {
		panic(err)
	}
*/
package relay
