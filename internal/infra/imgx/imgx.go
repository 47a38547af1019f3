package imgx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"io"
	"net/http"

	_ "golang.org/x/image/bmp"  // 注册 BMP 解码器
	_ "golang.org/x/image/webp" // 注册 WebP 解码器（部分封面 CDN 会返回 webp）

	"github.com/Fantaskink/dunebot/internal/domain"
)

const (
	// PaletteSize 是量化时请求的候选颜色数上限。
	PaletteSize = 10
	// Quality 是采样步长：每 2 个像素取 1 个（速度与精度的折中）。
	Quality = 2

	maxImageBytes = 32 << 20
)

// ErrNoPalette 表示量化没有产出任何颜色（例如全透明或全白图片）。
var ErrNoPalette = errors.New("imgx: no palette")

// DecodeError 表示字节无法解码为图片（格式未知或数据损坏）。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "imgx: decode: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError 表示下载图片失败（网络错误或非 2xx）。
type FetchError struct {
	URL        string
	StatusCode int // 0 表示没有拿到响应
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("imgx: fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("imgx: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DominantColor 从图片字节中提取代表色。
//
// 约束：
// - 纯函数：相同字节 => 相同输出
// - 解码失败返回 *DecodeError；量化为空返回 ErrNoPalette
// - 取调色板第一项（像素数最多的颜色）
func DominantColor(b []byte) (domain.RGB, error) {
	if len(b) == 0 {
		return domain.RGB{}, &DecodeError{Err: errors.New("图片为空")}
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return domain.RGB{}, &DecodeError{Err: err}
	}

	palette := Palette(toNRGBA(img).Pix, PaletteSize, Quality)
	if len(palette) == 0 {
		return domain.RGB{}, ErrNoPalette
	}
	return palette[0], nil
}

// toNRGBA 把任意图片转换为非预乘 alpha 的 RGBA 像素缓冲（量化按原始通道值工作）。
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Extractor 负责“下载 + 提取”。下载只发生一次，不重试。
type Extractor struct {
	Client *http.Client
}

// AccentColor 下载 url 指向的图片并返回代表色。
func (x Extractor) AccentColor(ctx context.Context, url string) (domain.RGB, error) {
	b, err := x.fetch(ctx, url)
	if err != nil {
		return domain.RGB{}, err
	}
	return DominantColor(b)
}

func (x Extractor) fetch(ctx context.Context, url string) ([]byte, error) {
	c := x.Client
	if c == nil {
		c = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return b, nil
}
