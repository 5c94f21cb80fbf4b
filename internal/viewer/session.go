// 包 viewer：每个页面视图一个会话，持有选择状态并把浏览器事件转换为页面补丁
package viewer

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"oqt-web/internal/catalog"
	"oqt-web/internal/loader"
	"oqt-web/internal/logger"
	"oqt-web/internal/metrics"
	"oqt-web/internal/querystr"
	"oqt-web/internal/regions"
	"oqt-web/internal/render"
	"oqt-web/internal/validate"
)

// Emitter：补丁出口（websocket 写协程或测试记录器）
type Emitter interface {
	Emit(Patch) error
}

// EmitterFunc：函数适配
type EmitterFunc func(Patch) error

func (f EmitterFunc) Emit(p Patch) error { return f(p) }

// Fetcher：报告获取，loader.Loader 即为实现
type Fetcher interface {
	FetchReport(ctx context.Context, report, featureID string) (*loader.Report, error)
}

// Config：会话依赖
type Config struct {
	ID       string
	Regions  *regions.Collection
	Catalog  *catalog.Catalog
	Fetcher  Fetcher
	Renderer *render.Renderer
	Emitter  Emitter
}

type fetchResult struct {
	gen     uint64
	report  string
	feature *regions.Feature
	rep     *loader.Report
	err     error
}

// 文档注释：查看器会话
// 背景：原先散落在页面全局变量里的选择状态、URL 参数与请求生命周期都收拢到这里
// 约束：所有状态只在 Run 的循环里读写；报告请求在独立协程中执行，结果经 results 回到循环；
// 新请求发出时取消上一次请求，并以 gen 丢弃迟到的结果。
type Session struct {
	cfg Config
	log *slog.Logger

	search   string
	selected *regions.Feature
	report   string

	gen     uint64
	cancel  context.CancelFunc
	results chan fetchResult
}

func New(cfg Config) *Session {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	return &Session{
		cfg:     cfg,
		log:     logger.L().With("session", cfg.ID),
		results: make(chan fetchResult, 1),
	}
}

// Search：当前 URL 查询串
func (s *Session) Search() string { return s.search }

// 文档注释：会话主循环
// 约束：events 关闭或 ctx 结束时返回，并取消仍在进行的请求；补丁写出失败视为连接已断，直接返回错误。
func (s *Session) Run(ctx context.Context, events <-chan Event) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	defer s.stopFetch()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, ev); err != nil {
				return err
			}
		case r := <-s.results:
			if err := s.complete(r); err != nil {
				return err
			}
		}
	}
}

// Handle：处理单条事件；只能在 Run 所在协程调用
func (s *Session) Handle(ctx context.Context, ev Event) error {
	metrics.SessionEventsTotal.WithLabelValues(ev.Type).Inc()
	switch ev.Type {
	case EventLoad:
		return s.onLoad(ctx, ev.Search, ev.Resume)
	case EventHover:
		return s.onHover(ev.ID)
	case EventUnhover:
		return s.onUnhover(ev.ID)
	case EventClick:
		f, ok := s.cfg.Regions.Lookup(ev.ID)
		if !ok {
			return nil
		}
		return s.selectFeature(f)
	case EventPick:
		f, ok := s.cfg.Regions.Locate(ev.Lat, ev.Lon)
		if !ok {
			return nil
		}
		return s.selectFeature(f)
	case EventReport:
		return s.onReport(ev.Name)
	case EventQuality:
		return s.onQuality(ctx, ev.Report)
	default:
		s.log.Debug("session_event_unknown", "type", ev.Type)
		return nil
	}
}

func (s *Session) emit(ps ...Patch) error {
	for _, p := range ps {
		if err := s.cfg.Emitter.Emit(p); err != nil {
			return fmt.Errorf("emit %s: %w", p.Op, err)
		}
	}
	return nil
}

func (s *Session) alert(reason, msg string) error {
	metrics.AlertsTotal.WithLabelValues(reason).Inc()
	return s.emit(Patch{Op: PatchAlert, Message: msg})
}

// 文档注释：页面加载或断线重连
// 约束：resume 为真时只恢复选择与按钮状态，不自动发起报告请求。
func (s *Session) onLoad(ctx context.Context, search string, resume bool) error {
	params := querystr.Parse(search)
	s.search = querystr.Encode(params)
	if err := s.emit(Patch{Op: PatchInfo, HTML: infoDefault}); err != nil {
		return err
	}
	report, _ := params.Get("report")
	if s.reportValid(report) {
		s.report = report
		if err := s.emit(Patch{Op: PatchSelector, ID: report}); err != nil {
			return err
		}
	}
	id, _ := params.Get("id")
	if !s.reportValid(report) || !validate.IDIsValid(id, s.cfg.Regions.Features()) {
		return s.emit(s.button())
	}
	f, _ := s.cfg.Regions.Lookup(id)
	if err := s.selectFeature(f); err != nil {
		return err
	}
	if resume {
		s.log.Debug("session_resume", "report", report, "id", id)
		return nil
	}
	s.log.Info("session_deep_link", "report", report, "id", id)
	return s.onQuality(ctx, report)
}

func (s *Session) onHover(id string) error {
	if _, ok := s.cfg.Regions.Lookup(id); !ok {
		return nil
	}
	hover := render.HoverStyle
	return s.emit(
		Patch{Op: PatchStyle, ID: id, Style: &hover, Front: true},
		Patch{Op: PatchInfo, HTML: "<h5>Click to select</h5><p><b>Feature ID: " + html.EscapeString(id) + "</b>"},
	)
}

func (s *Session) onUnhover(id string) error {
	return s.emit(
		Patch{Op: PatchReset, ID: id},
		Patch{Op: PatchInfo, HTML: infoDefault},
	)
}

// 选择区域：替换主地图高亮、写入 URL、刷新按钮状态
func (s *Session) selectFeature(f *regions.Feature) error {
	s.selected = f
	s.search = querystr.Update(s.search, "id", f.ID)
	sel := render.SelectedStyle
	return s.emit(
		Patch{Op: PatchHighlight, ID: f.ID, Feature: f.GeoJSON(), Style: &sel},
		Patch{Op: PatchSelect, ID: f.ID},
		Patch{Op: PatchURL, Search: s.search},
		s.button(),
	)
}

func (s *Session) onReport(name string) error {
	s.report = name
	s.search = querystr.Update(s.search, "report", name)
	return s.emit(Patch{Op: PatchURL, Search: s.search}, s.button())
}

func (s *Session) button() Patch {
	if s.selected != nil && s.reportValid(s.report) {
		return Patch{Op: PatchButton, Class: ButtonReady}
	}
	return Patch{Op: PatchButton, Class: ButtonDisabled}
}

func (s *Session) reportValid(name string) bool {
	return name != ReportPlaceholder && validate.ReportIsValid(name, s.cfg.Catalog.IDs())
}

// 文档注释：Get Quality
// 约束：区域优先取 URL 中的 id，其次取当前选择；报告优先取 URL 中合法的 report，其次取下拉框的值；
// 任一不合法只弹提示不发请求。
func (s *Session) onQuality(ctx context.Context, selector string) error {
	params := querystr.Parse(s.search)
	id, ok := params.Get("id")
	if !ok && s.selected != nil {
		id = s.selected.ID
	}
	report := selector
	if r, ok := params.Get("report"); ok && s.reportValid(r) {
		report = r
		if r != selector {
			if err := s.emit(Patch{Op: PatchSelector, ID: r}); err != nil {
				return err
			}
		}
	}
	if !validate.IDIsValid(id, s.cfg.Regions.Features()) {
		return s.alert("no_region", AlertNoRegion)
	}
	if !s.reportValid(report) {
		return s.alert("no_report", AlertNoReport)
	}
	s.report = report
	f, _ := s.cfg.Regions.Lookup(id)
	if err := s.selectFeature(f); err != nil {
		return err
	}
	if err := s.emit(
		Patch{Op: PatchLoading, On: on(true)},
		Patch{Op: PatchClear, Sections: render.Sections},
		Patch{Op: PatchUnhighlight},
	); err != nil {
		return err
	}
	s.startFetch(ctx, report, f)
	return nil
}

func (s *Session) startFetch(ctx context.Context, report string, f *regions.Feature) {
	s.stopFetch()
	s.gen++
	gen := s.gen
	fctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.log.Info("report_fetch_start", "report", report, "id", f.ID, "gen", gen)
	go func() {
		rep, err := s.cfg.Fetcher.FetchReport(fctx, report, f.ID)
		select {
		case s.results <- fetchResult{gen: gen, report: report, feature: f, rep: rep, err: err}:
		case <-fctx.Done():
		}
	}()
}

func (s *Session) stopFetch() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) complete(r fetchResult) error {
	if r.gen != s.gen {
		metrics.StaleResultsTotal.Inc()
		s.log.Debug("report_result_stale", "gen", r.gen, "current", s.gen)
		return nil
	}
	s.stopFetch()
	if err := s.emit(Patch{Op: PatchLoading, On: on(false)}); err != nil {
		return err
	}
	if r.err != nil {
		s.log.Warn("report_fetch_error", "report", r.report, "id", r.feature.ID, "err", r.err)
		return s.alert("fetch_failed", AlertFetchFailed)
	}
	res, err := s.cfg.Renderer.Render(r.rep.Body, r.feature, r.rep.Tier)
	if err != nil {
		s.log.Warn("report_render_error", "report", r.report, "id", r.feature.ID, "tier", r.rep.Tier, "err", err)
		return s.alert("render_failed", AlertFetchFailed)
	}
	s.log.Info("report_fetch_ok", "report", r.report, "id", r.feature.ID, "tier", r.rep.Tier)
	return s.emit(Patch{Op: PatchResults, Result: res})
}
