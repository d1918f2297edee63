package shipfeed_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/trustmesh/internal/shipfeed"
)

func TestClientQueryRoundTrip(t *testing.T) {
	srv := shipfeed.New()
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := shipfeed.NewClient(ts.URL)
	details, err := client.Query(context.Background(), "ship-42")
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Unknown", details[0].Status)
}
