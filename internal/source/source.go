// 包 source：静态资源读取层，统一本地目录、内嵌资源与远程站点三种来源
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"oqt-web/internal/logger"
)

// ErrNotFound：资源不存在（本地文件缺失或远程 404），调用方据此进入下一级回退
var ErrNotFound = errors.New("resource not found")

// 文档注释：资源来源统一契约
// 约束：name 为相对路径（如 assets/data/regions.geojson）；仅在资源确实不存在时返回 ErrNotFound，
// 其他失败（权限、网络、非 200/404 状态）按普通错误返回，不触发回退。
type Source interface {
	Get(ctx context.Context, name string) ([]byte, error)
}

// FS：基于 fs.FS 的来源，数据目录用 os.DirFS，内置资源用 embed.FS
type FS struct {
	fsys fs.FS
}

func NewFS(fsys fs.FS) *FS { return &FS{fsys: fsys} }

func (s *FS) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = path.Clean(strings.TrimPrefix(name, "/"))
	b, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// 文档注释：远程静态站点来源
// 约束：GET baseURL/name；404 映射为 ErrNotFound；客户端为空时使用带超时的默认客户端。
type HTTP struct {
	base   string
	client *http.Client
}

func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(base, "/"), client: client}
}

func (s *HTTP) Get(ctx context.Context, name string) ([]byte, error) {
	u := s.base + "/" + strings.TrimPrefix(name, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		logger.L().Error("source_http_error", "url", u, "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	return ReadResponse(resp, u)
}

// ReadResponse：按状态码读取响应体；404 → ErrNotFound，其余非 200 → 普通错误
func ReadResponse(resp *http.Response, what string) ([]byte, error) {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s: unexpected status %d", what, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// 文档注释：多来源叠加
// 约束：按顺序尝试，前一个返回 ErrNotFound 才继续；用于“数据目录覆盖内置资源”。
type Layered []Source

func (l Layered) Get(ctx context.Context, name string) ([]byte, error) {
	var last error = fmt.Errorf("%s: %w", name, ErrNotFound)
	for _, s := range l {
		if s == nil {
			continue
		}
		b, err := s.Get(ctx, name)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		last = err
	}
	return nil, last
}
