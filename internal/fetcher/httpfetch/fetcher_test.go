package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/aevon-lab/pricewatch/internal/traversal"
	"github.com/stretchr/testify/require"
)

func page(next string, skus ...string) string {
	html := `<html><body><ul>`
	for _, sku := range skus {
		html += fmt.Sprintf(`<li class="productItem"><div class="productItemBlock" data-sku="%s">`+
			`<a class="productName-link" href="/%s.html" title="Item %s"></a>`+
			`<span class="now-price">$10.00</span></div></li>`, sku, sku, sku)
	}
	html += `</ul>`
	if next != "" {
		html += fmt.Sprintf(`<a class="next" href="%s">Next</a>`, next)
	}
	return html + `</body></html>`
}

type userAgents struct {
	mu   sync.Mutex
	seen []string
}

func (u *userAgents) add(ua string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seen = append(u.seen, ua)
}

func (u *userAgents) all() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.seen...)
}

func newCatalogServer(t *testing.T) (*httptest.Server, *userAgents) {
	t.Helper()
	agents := &userAgents{}
	mux := http.NewServeMux()
	mux.HandleFunc("/kilian.html", func(w http.ResponseWriter, r *http.Request) {
		agents.add(r.UserAgent())
		switch r.URL.Query().Get("p") {
		case "", "1":
			fmt.Fprint(w, page("?p=2", "A", "B"))
		case "2":
			fmt.Fprint(w, page("", "C"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/empty.html", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, page(""))
	})
	mux.HandleFunc("/broken.html", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, agents
}

func source(t *testing.T, srv *httptest.Server, path string) catalog.Source {
	t.Helper()
	src, err := catalog.Source{
		Name: "kilian",
		URL:  srv.URL + path,
		Selectors: catalog.Selectors{
			NextPage: "a.next",
		},
	}.Normalize()
	require.NoError(t, err)
	return src
}

func TestFetcher_TraversesPaginatedCatalog(t *testing.T) {
	srv, agents := newCatalogServer(t)
	f := New(Config{UserAgent: "pricewatch-test"})

	res := traversal.NewController(f, traversal.Options{}).Traverse(context.Background(), source(t, srv, "/kilian.html"))

	require.Equal(t, traversal.StateDone, res.State)
	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Pages)
	require.Len(t, res.Listings, 3)
	require.Equal(t, "C", res.Listings[2].IdentifierRaw)
	require.Equal(t, "/C.html", res.Listings[2].LinkRaw)
	require.Len(t, agents.all(), 2)
	for _, ua := range agents.all() {
		require.Equal(t, "pricewatch-test", ua)
	}
}

func TestFetcher_EmptyCatalog(t *testing.T) {
	srv, _ := newCatalogServer(t)
	f := New(Config{})

	ctx := context.Background()
	require.NoError(t, f.Navigate(ctx, source(t, srv, "/empty.html")))
	require.ErrorIs(t, f.WaitForListings(ctx), traversal.ErrNoListings)
}

func TestFetcher_HTTPErrorFailsNavigate(t *testing.T) {
	srv, _ := newCatalogServer(t)
	f := New(Config{})

	err := f.Navigate(context.Background(), source(t, srv, "/broken.html"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestFetcher_StaticPageIsStable(t *testing.T) {
	srv, _ := newCatalogServer(t)
	f := New(Config{})
	ctx := context.Background()

	require.NoError(t, f.Navigate(ctx, source(t, srv, "/kilian.html")))
	before, err := f.ContentSize(ctx)
	require.NoError(t, err)
	require.Positive(t, before)

	require.NoError(t, f.Extend(ctx))
	after, err := f.ContentSize(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
