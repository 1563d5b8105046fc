package testutil

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

// StartNATSServer starts an embedded NATS server with JetStream enabled.
//
// The server listens on a random local port and stores JetStream data under
// t.TempDir(). It is shut down when the test completes.
//
// Parameters:
//   - t: The testing context
//
// Returns:
//   - string: The client URL of the server
func StartNATSServer(t *testing.T) string {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1, // Random available port
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err, "failed to create NATS server")

	ns.Start()
	t.Cleanup(ns.Shutdown)

	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready for connections")
	}

	return ns.ClientURL()
}

// StartEmbeddedNATS starts an embedded NATS server and connects to it.
//
// Both the connection and server are cleaned up when the test completes.
//
// Parameters:
//   - t: The testing context
//
// Returns:
//   - jetstream.JetStream: A JetStream context ready for use
func StartEmbeddedNATS(t *testing.T) jetstream.JetStream {
	t.Helper()

	nc, err := nats.Connect(StartNATSServer(t))
	require.NoError(t, err, "failed to connect to NATS server")
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err, "failed to create JetStream context")

	return js
}

// NewKV starts an embedded NATS server and creates a KV bucket on it.
//
// Parameters:
//   - t: The testing context
//   - bucket: The name of the KV bucket
//
// Returns:
//   - jetstream.KeyValue: The created bucket
func NewKV(t *testing.T, bucket string) jetstream.KeyValue {
	t.Helper()

	js := StartEmbeddedNATS(t)

	kv, err := js.CreateKeyValue(t.Context(), jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 5,
	})
	require.NoError(t, err, "failed to create KV bucket")

	return kv
}
