package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// maxBody 限制单次响应读取的大小（HTML 详情页与海报都远小于这个值）。
const maxBody = 32 << 20

// Get 发出一次 GET 并读完 body。非 2xx 返回 *HTTPStatusError。
//
// 约束：不做缓存、不做重试（失败就是这一阶段失败一次）。
func Get(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	resp, err := do(ctx, c, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBody))
}

// GetJSON 发出一次 GET 并把 body 解码到 v。
func GetJSON(ctx context.Context, c *http.Client, u string, v any) error {
	resp, err := do(ctx, c, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v)
}

func do(ctx context.Context, c *http.Client, u string) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return resp, nil
}
