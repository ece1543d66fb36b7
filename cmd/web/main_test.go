package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"finitefield.org/mercadito/internal/catalog"
	"finitefield.org/mercadito/internal/platform/config"
)

func testCatalog() *catalog.Catalog {
	return catalog.New(decimal.RequireFromString("36.5"), []catalog.Product{
		{ID: 1, Name: "Harina PAN", WeightGrams: 1000, Price: decimal.NewFromInt(10)},
		{ID: 3, Name: "Café molido", WeightGrams: 250, Price: decimal.NewFromInt(5)},
		{ID: 4, Name: "Empanada de queso", WeightGrams: 120, Price: decimal.RequireFromString("2.50")},
	})
}

func newTestApp(t *testing.T, env map[string]string) *app {
	t.Helper()
	base := map[string]string{
		"MERCADITO_TEMPLATES_DIR": "../../templates",
		"MERCADITO_LOCALES_DIR":   "../../locales",
		"MERCADITO_PUBLIC_DIR":    "../../public",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.Load(context.Background(), config.WithEnvMap(base), config.WithoutSystemEnv(), config.WithEnvFile(""))
	require.NoError(t, err)

	a, err := newApp(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	csrf   string
}

func newTestClient(t *testing.T, a *app) *testClient {
	t.Helper()
	server := httptest.NewServer(a.routes())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testClient{t: t, server: server, client: client}
}

func (c *testClient) do(method, path string, body io.Reader, headers map[string]string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, body)
	require.NoError(c.t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(raw)
}

// open loads the home page and remembers the CSRF token it embeds.
func (c *testClient) open() *html.Node {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, "/", nil, nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(c.t, err)
	meta := findNode(doc, func(n *html.Node) bool {
		return n.Data == "meta" && attr(n, "name") == "csrf-token"
	})
	require.NotNil(c.t, meta, "csrf meta tag missing")
	c.csrf = attr(meta, "content")
	require.NotEmpty(c.t, c.csrf)
	return doc
}

func (c *testClient) htmx(method, path string) (*http.Response, string) {
	return c.do(method, path, nil, map[string]string{
		"HX-Request":   "true",
		"X-CSRF-Token": c.csrf,
	})
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findNode(child, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func byID(doc *html.Node, id string) *html.Node {
	return findNode(doc, func(n *html.Node) bool { return attr(n, "id") == id })
}

func parseFragment(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

type cartPayload struct {
	Items         map[string]int  `json:"items"`
	Distinct      int             `json:"distinct"`
	TotalQuantity int             `json:"total_quantity"`
	TotalLocal    decimal.Decimal `json:"total_local"`
	TotalForeign  decimal.Decimal `json:"total_foreign"`
	Change        *struct {
		Up   decimal.Decimal `json:"up"`
		Down decimal.Decimal `json:"down"`
	} `json:"change"`
}

func (c *testClient) cart() cartPayload {
	c.t.Helper()
	resp, body := c.do(http.MethodGet, "/api/cart", nil, nil)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	var payload cartPayload
	require.NoError(c.t, json.Unmarshal([]byte(body), &payload))
	return payload
}

func TestHealthz(t *testing.T) {
	a := newTestApp(t, nil)
	c := newTestClient(t, a)

	resp, body := c.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)
}

func TestHomeRendersCatalog(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)

	doc := c.open()
	cards := findAll(doc, func(n *html.Node) bool { return hasClass(n, "product-card") })
	require.Len(t, cards, 3)
	// Alphabetical with the Spanish collator.
	assert.Equal(t, "3", attr(cards[0], "data-id"))
	assert.Equal(t, "4", attr(cards[1], "data-id"))
	assert.Equal(t, "1", attr(cards[2], "data-id"))

	rate := byID(doc, "dolar-value")
	require.NotNil(t, rate)
	assert.Contains(t, textOf(rate), "Bs. 36.50")

	preview := byID(doc, "cart-preview-bar")
	require.NotNil(t, preview)
	assert.True(t, hasClass(preview, "hidden"), "empty cart hides the preview bar")
}

func TestHomeBeforeCatalogLoads(t *testing.T) {
	a := newTestApp(t, nil)
	c := newTestClient(t, a)

	doc := c.open()
	assert.Empty(t, findAll(doc, func(n *html.Node) bool { return hasClass(n, "product-card") }))

	resp, _ := c.htmx(http.MethodPost, "/cart/items/1/increment")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = c.do(http.MethodGet, "/catalog.json", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCartFlowWithHTMX(t *testing.T) {
	for _, backend := range []string{config.CartBackendCookie, config.CartBackendMemory} {
		t.Run(backend, func(t *testing.T) {
			a := newTestApp(t, map[string]string{"MERCADITO_CART_BACKEND": backend})
			a.catalog.Set(testCatalog())
			c := newTestClient(t, a)
			c.open()

			resp, body := c.htmx(http.MethodPost, "/cart/items/1/increment")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("HX-Trigger"), cartChangedEvent)
			frag := parseFragment(t, body)
			require.NotNil(t, byID(frag, "cart-total-items"))
			assert.Equal(t, "1", textOf(byID(frag, "cart-total-items")))

			c.htmx(http.MethodPost, "/cart/items/1/increment")
			c.htmx(http.MethodPost, "/cart/items/3/increment")

			payload := c.cart()
			assert.Equal(t, 3, payload.TotalQuantity)
			assert.Equal(t, 2, payload.Distinct)
			assert.True(t, payload.TotalLocal.Equal(decimal.NewFromInt(25)), "got %s", payload.TotalLocal)
			require.NotNil(t, payload.Change)
			assert.True(t, payload.Change.Up.Equal(decimal.NewFromInt(1)))
			assert.True(t, payload.Change.Down.IsZero())

			resp, body = c.htmx(http.MethodPost, "/cart/items/3/decrement")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			frag = parseFragment(t, body)
			assert.Equal(t, "2", textOf(byID(frag, "cart-total-items")))
			assert.Equal(t, map[string]int{"1": 2}, c.cart().Items)

			resp, _ = c.htmx(http.MethodDelete, "/cart/items/1")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			empty := c.cart()
			assert.Empty(t, empty.Items)
			assert.Nil(t, empty.Change)
		})
	}
}

func TestDecrementNeverGoesNegative(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	resp, _ := c.htmx(http.MethodPost, "/cart/items/4/decrement")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, c.cart().Items)
}

func TestCartRejectsBadRequests(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	resp, _ := c.htmx(http.MethodPost, "/cart/items/99/increment")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = c.htmx(http.MethodPost, "/cart/items/abc/increment")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/cart/items/1/increment", nil, map[string]string{"HX-Request": "true"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/cart/items/1/increment", nil, map[string]string{
		"HX-Request":   "true",
		"X-CSRF-Token": "forged",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, c.cart().Items)
}

func TestFormFallbackRedirects(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	form := url.Values{"csrf_token": {c.csrf}}
	resp, _ := c.do(http.MethodPost, "/cart/items/1/increment?q=harina", strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?q=harina", resp.Header.Get("Location"))
	assert.Equal(t, map[string]int{"1": 1}, c.cart().Items)

	// The cart line renders a real form for removal, so it works without htmx.
	doc := c.open()
	items := byID(doc, "cart-items")
	require.NotNil(t, items)
	remove := findNode(items, func(n *html.Node) bool {
		return n.Data == "form" && attr(n, "action") == "/cart/items/1/remove"
	})
	require.NotNil(t, remove, "cart line has no remove form")
	assert.Equal(t, "post", attr(remove, "method"))
	token := findNode(remove, func(n *html.Node) bool {
		return n.Data == "input" && attr(n, "name") == "csrf_token"
	})
	require.NotNil(t, token)

	submit := url.Values{"csrf_token": {attr(token, "value")}}
	resp, _ = c.do(http.MethodPost, attr(remove, "action"), strings.NewReader(submit.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Empty(t, c.cart().Items)
}

func TestCartLineFormsCarryToken(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	_, body := c.htmx(http.MethodPost, "/cart/items/3/increment")
	frag := parseFragment(t, body)
	line := findNode(frag, func(n *html.Node) bool { return hasClass(n, "cart-item") && attr(n, "data-id") == "3" })
	require.NotNil(t, line)

	var actions []string
	for _, form := range findAll(line, func(n *html.Node) bool { return n.Data == "form" }) {
		actions = append(actions, attr(form, "action"))
		token := findNode(form, func(n *html.Node) bool { return attr(n, "name") == "csrf_token" })
		require.NotNil(t, token)
		assert.Equal(t, c.csrf, attr(token, "value"))
	}
	assert.Equal(t, []string{"/cart/items/3/decrement", "/cart/items/3/increment", "/cart/items/3/remove"}, actions)
}

func TestCheckoutEmptiesCart(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	c.htmx(http.MethodPost, "/cart/items/1/increment")
	c.htmx(http.MethodPost, "/cart/items/4/increment")
	require.Len(t, c.cart().Items, 2)

	resp, body := c.htmx(http.MethodPost, "/cart/checkout")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("HX-Trigger"), cartChangedEvent)
	frag := parseFragment(t, body)
	assert.Equal(t, "0", textOf(byID(frag, "cart-total-items")))

	after := c.cart()
	assert.Empty(t, after.Items)
	assert.Zero(t, after.TotalQuantity)

	doc := c.open()
	for _, q := range findAll(doc, func(n *html.Node) bool { return hasClass(n, "quantity") }) {
		assert.Equal(t, "0", textOf(q))
	}
}

func TestProductsFragmentFilters(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)
	c.open()

	resp, body := c.do(http.MethodGet, "/products?q=pan", nil, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/?q=pan", resp.Header.Get("HX-Push-Url"))
	frag := parseFragment(t, body)
	cards := findAll(frag, func(n *html.Node) bool { return hasClass(n, "product-card") })
	require.Len(t, cards, 2)
	assert.Equal(t, "4", attr(cards[0], "data-id"))
	assert.Equal(t, "1", attr(cards[1], "data-id"))

	resp, _ = c.do(http.MethodGet, "/products?q=pan", nil, map[string]string{
		"HX-Request": "true",
		"HX-Trigger": productListID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("HX-Push-Url"), "self refresh keeps the current URL")

	resp, body = c.do(http.MethodGet, "/products?q=xyz", nil, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, findAll(parseFragment(t, body), func(n *html.Node) bool { return hasClass(n, "product-card") }))

	resp, _ = c.do(http.MethodGet, "/products?q=caf%C3%A9", nil, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?q=caf%C3%A9", resp.Header.Get("Location"))
}

func TestAPIProducts(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)

	resp, body := c.do(http.MethodGet, "/api/products?q=CAFE", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var payload apiProductsResponse
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.True(t, payload.Ready)
	assert.Equal(t, "36.50", payload.Rate)
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, 3, payload.Products[0].ID)
}

func TestCatalogDocument(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)

	resp, body := c.do(http.MethodGet, "/catalog.json", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc, err := catalog.Decode([]byte(body), catalog.FormatJSON)
	require.NoError(t, err)
	assert.Len(t, doc.Products, 3)
}

func TestOfflineAssets(t *testing.T) {
	a := newTestApp(t, nil)
	require.NoError(t, a.offline.Precache(context.Background()))
	c := newTestClient(t, a)

	resp, body := c.do(http.MethodGet, "/assets/style.css", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hit", resp.Header.Get("X-Offline-Cache"))
	assert.Contains(t, body, ".product-card")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	resp, _ = c.do(http.MethodGet, "/assets/style.css", nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, body = c.do(http.MethodGet, "/service-worker.js", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "mercadito-v2-cache")
	assert.Contains(t, body, "/catalog.json")
	assert.Contains(t, body, "/assets/app.js")
}

func TestLocaleSwitch(t *testing.T) {
	a := newTestApp(t, nil)
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)

	resp, body := c.do(http.MethodGet, "/?hl=en", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := parseFragment(t, body)
	root := findNode(doc, func(n *html.Node) bool { return n.Data == "html" })
	require.NotNil(t, root)
	assert.Equal(t, "en", attr(root, "lang"))
}

func TestRateFollowsLocalCurrency(t *testing.T) {
	a := newTestApp(t, map[string]string{"MERCADITO_LOCAL_CURRENCY": "EUR"})
	a.catalog.Set(testCatalog())
	c := newTestClient(t, a)

	doc := c.open()
	rate := byID(doc, "dolar-value")
	require.NotNil(t, rate)
	assert.Contains(t, textOf(rate), "€36.50")
	assert.NotContains(t, textOf(rate), "Bs.")
}
