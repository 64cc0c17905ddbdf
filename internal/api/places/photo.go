package places

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPhotoMaxWidth  = 400
	defaultPhotoMaxHeight = 400
)

// PhotoProxyHandler streams a place photo by reference so the API key never
// reaches clients. Itinerary blocks carry /photo-proxy/{ref} URLs that
// resolve here.
func (c *GoogleClient) PhotoProxyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		photoRef := chi.URLParam(r, "ref")
		if photoRef == "" {
			http.Error(w, "photo reference is required", http.StatusBadRequest)
			return
		}

		q := url.Values{}
		q.Set("photo_reference", photoRef)
		q.Set("maxwidth", strconv.Itoa(queryDimension(r, "maxwidth", defaultPhotoMaxWidth)))
		q.Set("maxheight", strconv.Itoa(queryDimension(r, "maxheight", defaultPhotoMaxHeight)))
		q.Set("key", c.apiKey)

		endpoint := fmt.Sprintf("%s/photo?%s", c.baseURL, q.Encode())
		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, endpoint, nil)
		if err != nil {
			http.Error(w, "failed to build photo request", http.StatusInternalServerError)
			return
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.ErrorContext(r.Context(), "Photo fetch failed", slog.Any("error", err))
			http.Error(w, "failed to fetch photo", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			http.Error(w, "photo not available", resp.StatusCode)
			return
		}

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		if _, err := io.Copy(w, resp.Body); err != nil {
			c.logger.WarnContext(r.Context(), "Photo stream interrupted", slog.Any("error", err))
		}
	}
}

func queryDimension(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 1 || v > 1600 {
		return fallback
	}
	return v
}
