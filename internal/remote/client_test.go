package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]interface{}
}

func setupTestServer(t *testing.T, status int, responseBody string) (*Client, *recordedRequest) {
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Auth = r.Header.Get("Authorization")
		if r.Body != nil {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				rec.Body = body
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(responseBody))
	}))
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, staticToken("tok-123")), rec
}

func TestFetchCart_Success(t *testing.T) {
	sut, rec := setupTestServer(t, http.StatusOK,
		`{"items":[{"productId":"P1","quantity":2,"currentPrice":9.99,"inStock":true}]}`)

	snap, err := sut.FetchCart(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.Method)
	assert.Equal(t, "/cart", rec.Path)
	assert.Equal(t, "Bearer tok-123", rec.Auth)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "P1", snap.Items[0].ProductID)
	assert.Equal(t, 9.99, snap.Items[0].CurrentPrice)
	assert.NotZero(t, snap.FetchedAt)
}

func TestAddItem_SendsBody(t *testing.T) {
	sut, rec := setupTestServer(t, http.StatusOK, `{"items":[]}`)

	_, err := sut.AddItem(context.Background(), "P1", "red", 3)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/cart/items", rec.Path)
	assert.Equal(t, "P1", rec.Body["productId"])
	assert.Equal(t, "red", rec.Body["variantId"])
	assert.Equal(t, float64(3), rec.Body["quantity"])
}

func TestUpdateItem_UsesPatch(t *testing.T) {
	sut, rec := setupTestServer(t, http.StatusOK, `{"items":[]}`)

	_, err := sut.UpdateItem(context.Background(), "P1", "", 5)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, rec.Method)
	assert.Equal(t, "/cart/items", rec.Path)
}

func TestRemoveItem_UsesDeleteWithBody(t *testing.T) {
	sut, rec := setupTestServer(t, http.StatusOK, `{"items":[]}`)

	_, err := sut.RemoveItem(context.Background(), "P1", "red")
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/cart/items", rec.Path)
	assert.Equal(t, "P1", rec.Body["productId"])
	_, hasQuantity := rec.Body["quantity"]
	assert.False(t, hasQuantity, "remove must not send a quantity")
}

func TestClearCart_Path(t *testing.T) {
	sut, rec := setupTestServer(t, http.StatusOK, `{"items":[]}`)

	snap, err := sut.ClearCart(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/cart", rec.Path)
	assert.Empty(t, snap.Items)
}

func TestUnauthorized_MapsTo401(t *testing.T) {
	sut, _ := setupTestServer(t, http.StatusUnauthorized, `{"error":"expired"}`)

	_, err := sut.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestServerError_IsNetworkError(t *testing.T) {
	sut, _ := setupTestServer(t, http.StatusInternalServerError, `{}`)

	_, err := sut.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestConnectionFailure_IsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listens anymore

	sut := NewClient(url, staticToken("tok"))

	_, err := sut.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestTokenFailure_IsUnauthorized(t *testing.T) {
	sut := NewClient("http://localhost:0", func(context.Context) (string, error) {
		return "", context.Canceled
	})

	_, err := sut.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	sut := NewClient(url, staticToken("tok"))

	// gobreaker's default trips after more than 5 consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := sut.FetchCart(context.Background())
		require.ErrorIs(t, err, ErrNetwork)
	}

	_, err := sut.FetchCart(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	assert.ErrorContains(t, err, "circuit breaker open")
}

func TestUnauthorized_DoesNotTripBreaker(t *testing.T) {
	sut, _ := setupTestServer(t, http.StatusUnauthorized, `{}`)

	for i := 0; i < 10; i++ {
		_, err := sut.FetchCart(context.Background())
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	// Still the plain 401, not a breaker rejection.
	_, err := sut.FetchCart(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotContains(t, err.Error(), "circuit breaker")
}
