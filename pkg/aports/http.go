package aports

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// OnChange registers a hook that runs after the checkout moves to a
// new revision, with the list of changed files.  Parse caches hang
// off this to drop stale definitions.
func (c *Checkout) OnChange(f func([]string)) {
	c.onChange = append(c.onChange, f)
}

// HTTPEntry provides the mountpoint for the checkout manager into the
// shared webserver routing tree.
func (c *Checkout) HTTPEntry() chi.Router {
	r := chi.NewRouter()

	r.Get("/at", c.httpAt)

	r.Post("/fetch", c.httpFetch)
	r.Post("/syncto/{sha}", c.httpSyncTo)

	return r
}

func (c *Checkout) httpAt(w http.ResponseWriter, r *http.Request) {
	at, err := c.At()
	if err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}

	enc := json.NewEncoder(w)
	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	enc.Encode(struct{ At string }{At: at})
}

func (c *Checkout) httpFetch(w http.ResponseWriter, r *http.Request) {
	if err := c.Fetch(); err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Checkout) httpSyncTo(w http.ResponseWriter, r *http.Request) {
	if err := c.Fetch(); err != nil {
		c.l.Warn("Error updating", "error", err)
	}

	changed, err := c.Checkout(chi.URLParam(r, "sha"))
	if err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}
	for _, f := range c.onChange {
		f(changed)
	}

	enc := json.NewEncoder(w)
	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	enc.Encode(struct{ Changed []string }{Changed: changed})
}

func jsonError(w http.ResponseWriter, err error, code int) {
	enc := json.NewEncoder(w)
	w.WriteHeader(code)
	out := struct {
		Error string
	}{
		Error: err.Error(),
	}
	enc.Encode(out)
}
