package api

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticHandler serves files from dir. Extension-less paths that miss fall
// back to "<path>.html".
func staticHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if clean != "/" && path.Ext(clean) == "" && !exists(dir, clean) && exists(dir, clean+".html") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = clean + ".html"
			r2.URL.RawPath = ""
			files.ServeHTTP(w, r2)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func exists(dir, urlPath string) bool {
	name := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
