package brand

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCampaignAndBrand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/campaigns/c-1":
			w.Write([]byte(`{"id":"c-1","name":"Q3 Outbound","target_audience":"fintech CTOs"}`))
		case "/v1/brands/b-1":
			w.Write([]byte(`{"id":"b-1","name":"Acme","domain":"acme.io"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)

	campaign, err := c.GetCampaign(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "fintech CTOs", campaign.TargetAudience)

	b, err := c.GetBrand(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "acme.io", b.Domain)

	_, err = c.GetBrand(context.Background(), "missing")
	assert.Error(t, err)
}
