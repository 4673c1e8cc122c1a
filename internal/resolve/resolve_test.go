package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/everstacklabs/brandscope/internal/answer"
	"github.com/everstacklabs/brandscope/internal/provider"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag", "<html><head><title>  Acme\n Shoes </title></head></html>", "Acme Shoes"},
		{"og wins", `<html><head><meta property="og:title" content="OG Title"><title>Plain</title></head></html>`, "OG Title"},
		{"empty og", `<html><head><meta property="og:title" content=" "><title>Plain</title></head></html>`, "Plain"},
		{"none", "<html><body>hi</body></html>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Title(doc))
		})
	}
}

func TestResults(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<title>Final Page</title>"))
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	in := []provider.Result{
		{
			Provider: "a",
			Status:   provider.StatusOK,
			Answer:   answer.Answer{},
			Citations: []provider.Citation{
				provider.NewCitation(srv.URL+"/hop", "", "", "", ""),
				provider.NewCitation(srv.URL+"/page", "Kept", "", "", ""),
			},
		},
		{Provider: "b", Status: provider.StatusTimeout, Citations: []provider.Citation{}},
	}

	out := New(srv.Client(), 2).Results(context.Background(), in)

	require.Len(t, out, 2)
	assert.Equal(t, srv.URL+"/page", out[0].Citations[0].URL)
	assert.Equal(t, "Final Page", out[0].Citations[0].Title)
	assert.Equal(t, "Kept", out[0].Citations[1].Title)

	// The input is left untouched.
	assert.Equal(t, srv.URL+"/hop", in[0].Citations[0].URL)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLookupMemoizes(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("<title>x</title>"))
	}))
	defer srv.Close()

	r := New(srv.Client(), 1)
	for range 3 {
		p, err := r.Lookup(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "x", p.Title)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestLookupNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	p, err := New(srv.Client(), 1).Lookup(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Empty(t, p.Title)
	assert.Equal(t, srv.URL+"/doc.pdf", p.FinalURL)
}
