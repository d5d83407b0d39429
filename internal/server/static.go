package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"
)

const indexFile = "index.html"

// serveStatic answers unmatched GET and HEAD requests from the static directory.
func (h *httpHandler) serveStatic(c *gin.Context) {
	method := c.Request.Method
	if h.settings.StaticDir == "" || (method != http.MethodGet && method != http.MethodHead) {
		c.JSON(http.StatusNotFound, messageResponse{Message: "Not found"})
		return
	}

	relative := path.Clean("/" + c.Request.URL.Path)
	target := filepath.Join(h.settings.StaticDir, filepath.FromSlash(relative))
	info, err := os.Stat(target)
	if err == nil && info.IsDir() {
		target = filepath.Join(target, indexFile)
		info, err = os.Stat(target)
	}
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, messageResponse{Message: "Not found"})
		return
	}
	c.File(target)
}
