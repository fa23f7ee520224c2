package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestContainsBook(t *testing.T) {
	assert.True(t, ContainsBook([]Label{{Description: "Table"}, {Description: " BOOK"}}))
	assert.False(t, ContainsBook([]Label{{Description: "Bookshelf"}, {Description: "Phone"}}))
	assert.False(t, ContainsBook(nil))
}

func TestGoogleLabelerParsesAnnotations(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"responses":[{"labelAnnotations":[{"description":"Book","score":0.97},{"description":"Paper","score":0.8}]}]}`))
	}))
	defer srv.Close()

	l, err := NewGoogleLabeler(context.Background(), "key", option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	labels, err := l.Labels(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "Book", labels[0].Description)
	assert.True(t, ContainsBook(labels))

	reqs := got["requests"].([]any)
	features := reqs[0].(map[string]any)["features"].([]any)
	assert.Equal(t, "LABEL_DETECTION", features[0].(map[string]any)["type"])
	assert.EqualValues(t, maxLabels, features[0].(map[string]any)["maxResults"])
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Labels(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
