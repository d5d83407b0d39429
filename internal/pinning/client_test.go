package pinning

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinUploadsMultipartForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "Frog", r.FormValue("name"))
		require.Equal(t, "FROG", r.FormValue("symbol"))
		require.Equal(t, "Community meme token", r.FormValue("description"))
		require.Equal(t, "https://example.com", r.FormValue("website"))
		require.Equal(t, "true", r.FormValue("showName"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "frog.png", header.Filename)
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "png-bytes", string(content))

		_, _ = io.WriteString(w, `{"metadata":{"name":"Frog"},"metadataUri":"https://ipfs.io/ipfs/QmMeta"}`)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Endpoint:   server.URL,
		Metadata:   Metadata{Description: "Community meme token", Website: "https://example.com"},
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	uri, err := client.Pin(context.Background(), Upload{
		Name:      "Frog",
		Symbol:    "FROG",
		ImageName: "frog.png",
		Image:     strings.NewReader("png-bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "https://ipfs.io/ipfs/QmMeta", uri)
}

func TestPinReportsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = client.Pin(context.Background(), Upload{Name: "Frog", Symbol: "FROG", ImageName: "frog.png", Image: strings.NewReader("x")})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	require.Equal(t, "upstream down", statusErr.Body)
}

func TestPinRequiresMetadataURI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"metadata":{}}`)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{Endpoint: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)

	_, err = client.Pin(context.Background(), Upload{Name: "Frog", Symbol: "FROG", ImageName: "frog.png", Image: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrMissingMetadataURI)
}

func TestPinValidatesUpload(t *testing.T) {
	client, err := NewClient(ClientConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.Pin(context.Background(), Upload{Name: "Frog", Symbol: "FROG"})
	require.ErrorIs(t, err, errMissingImage)
	_, err = client.Pin(context.Background(), Upload{Symbol: "FROG", ImageName: "frog.png", Image: strings.NewReader("x")})
	require.ErrorIs(t, err, errMissingName)
}
