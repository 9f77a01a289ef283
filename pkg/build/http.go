package build

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HTTPEntry provides the mountpoint for this service into the shared
// webserver routing tree.
func (o *Orchestrator) HTTPEntry() chi.Router {
	r := chi.NewRouter()

	r.Get("/status/{arch}/{pkg}", o.httpPkgStatus)
	r.Get("/plan/{arch}/{pkg}", o.httpPlanBuild)
	r.Get("/session/{arch}", o.httpDumpSession)

	r.Post("/index/{arch}/invalidate", o.httpInvalidateIndex)

	return r
}

func (o *Orchestrator) httpPkgStatus(w http.ResponseWriter, r *http.Request) {
	arch := chi.URLParam(r, "arch")
	pkg := chi.URLParam(r, "pkg")

	def := o.src.Get(pkg)
	if def == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err := o.idx.Update(arch); err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}

	out := struct {
		Package string
		Arch    string
		Status  string
		Source  string
		Binary  string
	}{
		Package: def.Pkgname,
		Arch:    arch,
		Status:  o.Status(arch, def).String(),
		Source:  def.Version(),
	}
	if bin := o.idx.Package(def.Pkgname, arch); bin != nil {
		out.Binary = bin.Version
	}

	enc := json.NewEncoder(w)
	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	enc.Encode(out)
}

func (o *Orchestrator) httpPlanBuild(w http.ResponseWriter, r *http.Request) {
	items, err := o.Plan([]string{chi.URLParam(r, "pkg")}, Opts{Arch: chi.URLParam(r, "arch")})
	if err != nil {
		jsonError(w, err, http.StatusInternalServerError)
		return
	}

	type planned struct {
		Package string
		Arch    string
		Version string
		Channel string
	}
	out := make([]planned, 0, len(items))
	for _, item := range items {
		out = append(out, planned{
			Package: item.Name,
			Arch:    item.Arch,
			Version: item.Pkgver,
			Channel: item.Channel,
		})
	}

	enc := json.NewEncoder(w)
	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	enc.Encode(out)
}

func (o *Orchestrator) httpDumpSession(w http.ResponseWriter, r *http.Request) {
	out := struct {
		Arch    string
		Decided []string
	}{
		Arch:    chi.URLParam(r, "arch"),
		Decided: o.session.Decided(chi.URLParam(r, "arch")),
	}

	enc := json.NewEncoder(w)
	w.WriteHeader(http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	enc.Encode(out)
}

func (o *Orchestrator) httpInvalidateIndex(w http.ResponseWriter, r *http.Request) {
	o.idx.Invalidate(chi.URLParam(r, "arch"))
	w.WriteHeader(http.StatusNoContent)
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
