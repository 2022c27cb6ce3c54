package reporting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	t.Run("connection reset by peer", func(t *testing.T) {
		t.Parallel()

		err := `Upstream error: Get "https://upstream.example.com/documents?key=customer-le-chiffre": read tcp [dead:beef:feb1:d745::c001]:64079->[dead:beef::6811:112a]:443: read: connection reset by peer`
		want := `Upstream error: Get "https://upstream.example.com/documents?key=<key>": read tcp <host>-><host>: read: connection reset by peer`
		require.Equal(t, want, sanitizeError(err))
	})

	t.Run("context deadline", func(t *testing.T) {
		t.Parallel()

		err := `Upstream error: Get "https://upstream.example.com/documents?key=session-4f71": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`
		want := `Upstream error: Get "https://upstream.example.com/documents?key=<key>": context deadline exceeded (Client.Timeout exceeded while awaiting headers)`
		require.Equal(t, want, sanitizeError(err))
	})

	t.Run("no key present", func(t *testing.T) {
		t.Parallel()

		err := `Upstream error: upstream status 503`
		require.Equal(t, err, sanitizeError(err))
	})
}
