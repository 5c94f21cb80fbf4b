// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"oqt-web/internal/api"
	"oqt-web/internal/catalog"
	"oqt-web/internal/health"
	"oqt-web/internal/loader"
	"oqt-web/internal/logger"
	"oqt-web/internal/middleware"
	"oqt-web/internal/migrate"
	"oqt-web/internal/render"
	"oqt-web/internal/source"
	"oqt-web/internal/store"
	"oqt-web/internal/utils"
	"oqt-web/internal/version"
	"oqt-web/web"

	"github.com/joho/godotenv"
)

const catalogFile = "assets/data/reports.yaml"

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Info("build_info", "commit", version.Commit)
	apiBase := utils.EnvString("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 数据库可选：仅用于请求统计
	var st *store.Store
	if utils.PGEnabled() {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			l.Error("db_open_error", "err", err)
			os.Exit(1)
		}
		l.Info("db_open_ok")
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
		defer st.Close()
	} else {
		l.Info("db_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	// 文档注释：静态资源层级
	// 背景：数据目录与远程静态站点覆盖内置资源；EMBED_DATA=false 时不使用内置数据，区域缺失即走 API 回退。
	client := &http.Client{Timeout: utils.EnvSeconds("FETCH_TIMEOUT_S", 30*time.Second)}
	var static source.Layered
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		static = append(static, source.NewFS(os.DirFS(dir)))
		l.Info("static_data_dir", "dir", dir)
	}
	if u := os.Getenv("STATIC_DATA_URL"); u != "" {
		static = append(static, source.NewHTTP(u, client))
		l.Info("static_data_url", "url", u)
	}
	if os.Getenv("EMBED_DATA") != "false" {
		static = append(static, source.NewFS(web.Assets()))
	}

	apiURL := os.Getenv("OQT_API_URL")
	ttl := utils.EnvSeconds("REPORT_CACHE_TTL_S", time.Hour)
	ld := loader.New(loader.Config{
		Static:         static,
		APIURL:         apiURL,
		RegionsFile:    utils.EnvString("REGIONS_FILE", loader.DefaultRegionsFile),
		RegionsAPIPath: utils.EnvString("REGIONS_API_PATH", loader.DefaultRegionsAPIPath),
		ReportAPI:      utils.EnvBool("REPORT_API_ENABLE"),
		Client:         client,
		Memory:         loader.NewLRU(utils.EnvInt("REPORT_CACHE_SIZE", 256), ttl),
		Redis:          rc,
		CacheTTL:       ttl,
	})

	// 区域加载失败不阻断启动：地图照常加载，只是没有可选区域
	coll, from, err := ld.LoadRegions(ctx)
	if err != nil {
		l.Error("regions_load_error", "source", from, "err", err)
		coll = nil
	}

	cat := loadCatalog(ctx, static)
	l.Info("catalog_ready", "reports", len(cat.IDs()))

	renderer, err := render.New()
	if err != nil {
		l.Error("render_init_error", "err", err)
		os.Exit(1)
	}

	// 文档注释：依赖健康检查
	// 背景：上游报告 API、数据库与 Redis 周期探测，/healthz 只读缓存结果。
	hm := health.NewManager(utils.EnvSeconds("HEALTH_INTERVAL_S", 30*time.Second))
	if apiURL != "" {
		hm.Register(health.HTTP("oqt_api", apiURL+utils.EnvString("OQT_HEALTH_PATH", "/"), client))
	}
	if st != nil {
		hm.Register(health.Func("postgres", st.Ping))
	}
	if rc != nil {
		hm.Register(health.Func("redis", func(ctx context.Context) error { return rc.Ping(ctx).Err() }))
	}
	hm.Start(ctx)

	apiMux := api.BuildRoutes(api.Deps{
		Regions:  coll,
		Catalog:  cat,
		Fetcher:  ld,
		Renderer: renderer,
		Store:    st,
		Redis:    rc,
		Health:   hm,
	})
	pageCfg := web.PageConfig{
		APIBase: apiBase,
		TileURL: utils.EnvString("TILE_URL", "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"),
		Commit:  version.Commit,
		Title:   utils.EnvString("SITE_TITLE", "OQT Web"),
	}
	page, err := web.Page(cat, pageCfg)
	if err != nil {
		l.Error("page_init_error", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle("/static/", web.Static())
	mux.Handle("/config.js", web.ConfigJS(pageCfg))
	mux.Handle("/healthz", api.Healthz(hm, coll))
	mux.Handle("/", page)

	addr := utils.EnvString("ADDR", ":8080")
	s := &http.Server{
		Addr:              addr,
		Handler:           serverHandler(l, mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.Info("shutdown_begin")
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if utils.EnvBool("TLS_ENABLE") {
		certPath := utils.EnvString("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.EnvString("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "oqt-web.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}

// 访问日志在最外层，限流拒绝的请求同样记入访问日志
func serverHandler(l *slog.Logger, h http.Handler) http.Handler {
	return logger.AccessMiddleware(l)(middleware.Wrap(h))
}

// 报告清单：数据来源中的 reports.yaml，缺失或无效时使用内置清单
func loadCatalog(ctx context.Context, static source.Source) *catalog.Catalog {
	b, err := static.Get(ctx, catalogFile)
	if err != nil {
		if !errors.Is(err, source.ErrNotFound) && !errors.Is(err, fs.ErrNotExist) {
			logger.L().Warn("catalog_read_error", "err", err)
		}
		return catalog.Default()
	}
	c, err := catalog.Parse(b)
	if err != nil {
		logger.L().Warn("catalog_parse_error", "err", err)
		return catalog.Default()
	}
	return c
}
