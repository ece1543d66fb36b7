package offline

import (
	"bytes"
	"encoding/json"
	"net/http"
	"text/template"
)

var workerTemplate = template.Must(template.New("service-worker").Parse(`// generated, do not edit
const CACHE_NAME = {{.Name}};
const STATIC_ASSETS = {{.Static}};
const NETWORK_FIRST = {{.NetworkFirst}};

self.addEventListener('install', (event) => {
  event.waitUntil(
    caches.open(CACHE_NAME).then((cache) => cache.addAll(STATIC_ASSETS.concat(NETWORK_FIRST)))
  );
});

self.addEventListener('activate', (event) => {
  event.waitUntil(
    caches.keys().then((keys) =>
      Promise.all(keys.filter((key) => key !== CACHE_NAME).map((key) => caches.delete(key)))
    )
  );
});

function networkFirst(request) {
  return fetch(request)
    .then((response) => {
      if (response.ok) {
        const copy = response.clone();
        caches.open(CACHE_NAME).then((cache) => cache.put(request, copy));
      }
      return response;
    })
    .catch(() => caches.match(request).then((cached) => cached || caches.match('/')));
}

self.addEventListener('fetch', (event) => {
  const request = event.request;
  if (request.method !== 'GET') {
    return;
  }
  const url = new URL(request.url);
  if (url.origin !== self.location.origin) {
    return;
  }
  // Pages carry the cart and the CSRF token, so they are only served from
  // the cache when the network is down.
  if (request.mode === 'navigate' || NETWORK_FIRST.includes(url.pathname)) {
    event.respondWith(networkFirst(request));
    return;
  }
  if (STATIC_ASSETS.includes(url.pathname)) {
    event.respondWith(
      caches.match(request).then((response) => response || fetch(request))
    );
  }
});
`))

// networkFirstPaths are fetched fresh whenever the network is up and kept in
// the cache only as an offline fallback.
var networkFirstPaths = []string{"/", "/catalog.json"}

// StaticAssets is the list the worker serves cache-first.
func (c *Cache) StaticAssets() []string {
	return append(make([]string, 0, len(c.assets)), c.assets...)
}

// NetworkFirst is the list the worker refreshes from the network first.
func (c *Cache) NetworkFirst() []string {
	return append([]string(nil), networkFirstPaths...)
}

// ServiceWorker renders the worker script.
func (c *Cache) ServiceWorker() ([]byte, error) {
	name, err := json.Marshal(c.name)
	if err != nil {
		return nil, err
	}
	static, err := json.Marshal(c.StaticAssets())
	if err != nil {
		return nil, err
	}
	fresh, err := json.Marshal(c.NetworkFirst())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = workerTemplate.Execute(&buf, map[string]string{
		"Name":         string(name),
		"Static":       string(static),
		"NetworkFirst": string(fresh),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WorkerHandler serves the generated worker. It must not be cached long, so
// browsers pick up new asset lists.
func (c *Cache) WorkerHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := c.ServiceWorker()
		if err != nil {
			http.Error(w, "service worker unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Service-Worker-Allowed", "/")
		_, _ = w.Write(body)
	})
}
