package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ObjectHandler serves objects written by the local storage adapter, laid
// out as root/bucket/path.
type ObjectHandler struct {
	root string
	log  *slog.Logger
}

func NewObjectHandler(root string, log *slog.Logger) *ObjectHandler {
	return &ObjectHandler{root: root, log: log}
}

func (h *ObjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	path := chi.URLParam(r, "*")

	target, ok := h.resolve(bucket, path)
	if !ok {
		http.Error(w, "Object not found", http.StatusNotFound)
		return
	}

	info, err := os.Stat(target)
	if err != nil || info.IsDir() {
		if err != nil && !os.IsNotExist(err) {
			h.log.Error("stat object", "bucket", bucket, "path", path, "error", err)
		}
		http.Error(w, "Object not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	http.ServeFile(w, r, target)
}

// resolve keeps the object inside its bucket directory.
func (h *ObjectHandler) resolve(bucket, path string) (string, bool) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", false
	}
	root := filepath.Join(h.root, bucket)
	target := filepath.Join(root, filepath.FromSlash(path))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return target, true
}
