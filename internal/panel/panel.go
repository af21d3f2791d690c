package panel

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
)

//go:embed web/*
var embedded embed.FS

// Handler serves the control page and its assets. If dir is an existing
// directory the files are read from it on every request, which allows
// editing the page without rebuilding; otherwise the copy compiled into
// the binary is served. There is no index fallback: unknown paths are 404.
func Handler(dir string) http.Handler {
	files := http.FileServerFS(assets(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		files.ServeHTTP(w, r)
	})
}

func assets(dir string) fs.FS {
	if dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return os.DirFS(dir)
		}
	}
	web, err := fs.Sub(embedded, "web")
	if err != nil {
		// fs.Sub only fails on an invalid path name.
		panic(err)
	}
	return web
}
