// 包 web：内嵌的查看器页面、静态脚本样式与默认数据
package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"oqt-web/internal/catalog"
)

//go:embed templates/*.html static assets
var FS embed.FS

// Assets：内嵌数据根目录，路径形如 assets/data/regions.geojson
func Assets() fs.FS { return FS }

// Static：/static/ 下的脚本与样式
func Static() http.Handler {
	sub, err := fs.Sub(FS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// PageConfig：注入页面与 config.js 的前端配置
type PageConfig struct {
	APIBase string `json:"apiBase"`
	TileURL string `json:"tileUrl"`
	Commit  string `json:"commit,omitempty"`
	Title   string `json:"-"`
}

type pageData struct {
	Title   string
	Reports []catalog.Entry
}

// 文档注释：首页处理器
// 背景：报告下拉选项由注入的报告清单渲染，页面与会话使用同一份清单。
// 约束：页面只渲染一次并缓存；仅响应根路径，其他路径 404。
func Page(cat *catalog.Catalog, cfg PageConfig) (http.Handler, error) {
	t, err := template.ParseFS(FS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	if cfg.Title == "" {
		cfg.Title = "OQT Web"
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, pageData{Title: cfg.Title, Reports: cat.Entries()}); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	body := buf.Bytes()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	}), nil
}

// ConfigJS：/config.js，向前端暴露 API 前缀与瓦片地址
func ConfigJS(cfg PageConfig) http.Handler {
	b, _ := json.Marshal(cfg)
	js := []byte("window.OQT_CONFIG = " + string(b) + ";\n")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write(js)
	})
}
