package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	// ErrCodeInvalid 表示配置文件无法解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeUnreadable 表示配置文件存在但读取失败（权限等）。
	ErrCodeUnreadable = "config_unreadable"
)

const (
	// DefaultFile 是默认配置文件名（相对当前目录）。
	DefaultFile = "dunebot.yml"
	// DefaultListen 是 serve 子命令的默认监听地址。
	DefaultListen = "127.0.0.1:8080"
)

// 环境变量覆盖配置文件中的同名项（凭据通常只放在环境变量里）。
const (
	EnvTMDBKey   = "TMDB_API_KEY"
	EnvGoogleKey = "GOOGLE_API_KEY"
	EnvGoogleCSE = "GOOGLE_CSE_ID"
	EnvProxy     = "DUNEBOT_PROXY"
)

// FileConfig 对应 dunebot.yml 的解析结构。
type FileConfig struct {
	TMDB       TMDBConfig       `yaml:"tmdb"`
	Goodreads  GoodreadsConfig  `yaml:"goodreads"`
	Google     GoogleConfig     `yaml:"google"`
	Proxy      *ProxyConfig     `yaml:"proxy"`
	ImageProxy bool             `yaml:"image_proxy"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
	Reminders  []ReminderConfig `yaml:"reminders"`
}

type TMDBConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	ImageBaseURL string `yaml:"image_base_url"`
	Language     string `yaml:"language"`
}

type GoodreadsConfig struct {
	BaseURL string `yaml:"base_url"`
}

type GoogleConfig struct {
	APIKey  string `yaml:"api_key"`
	CSEID   string `yaml:"cse_id"`
	BaseURL string `yaml:"base_url"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// LogConfig 控制日志输出；File 为空时只写 stderr。
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// ReminderConfig 是启动时注册的固定提醒（例如生日）。
type ReminderConfig struct {
	Channel string `yaml:"channel"`
	Target  string `yaml:"target"`
	Spec    string `yaml:"spec"` // 为空时每 24 小时一次
	Message string `yaml:"message"`
}

// Config 是合并环境变量并做最小规范化后的最终配置。
//
// 约束：凭据缺失不是启动错误；对应命令在请求时返回配置错误。
type Config struct {
	Source string // 实际读取的配置文件；文件不存在时为空

	TMDB      TMDBConfig
	Goodreads GoodreadsConfig
	Google    GoogleConfig

	ProxyURL   string
	ImageProxy bool

	Listen    string
	Log       LogConfig
	Reminders []ReminderConfig
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeUnreadable:
		return fmt.Sprintf("%s：无法读取配置文件 %q：%v", e.Code, e.Path, e.Err)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Load 读取 path（为空时用 DefaultFile），再用 env 覆盖凭据与代理。
//
// 规则：
// - 文件不存在不是错误：全部使用默认值
// - 优先级：环境变量 > 配置文件 > 默认值
// - env 为 nil 时使用 os.Getenv
func Load(fsys afero.Fs, path string, env func(string) string) (Config, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if env == nil {
		env = os.Getenv
	}
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}

	fc, exists, err := readFileConfig(fsys, path)
	if err != nil {
		return Config{}, err
	}
	source := ""
	if exists {
		source = path
	}
	return merge(fc, env, path, source)
}

func merge(fc FileConfig, env func(string) string, cfgPath, source string) (Config, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	override := func(dst *string, key string) {
		if v := strings.TrimSpace(env(key)); v != "" {
			*dst = v
		}
	}

	c := Config{
		Source:     source,
		TMDB:       trimTMDB(fc.TMDB),
		Goodreads:  GoodreadsConfig{BaseURL: strings.TrimSpace(fc.Goodreads.BaseURL)},
		Google:     trimGoogle(fc.Google),
		ImageProxy: fc.ImageProxy,
		Listen:     strings.TrimSpace(fc.HTTP.Listen),
		Log:        fc.Log,
	}
	if fc.Proxy != nil {
		c.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	override(&c.TMDB.APIKey, EnvTMDBKey)
	override(&c.Google.APIKey, EnvGoogleKey)
	override(&c.Google.CSEID, EnvGoogleCSE)
	override(&c.ProxyURL, EnvProxy)

	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	c.Log.File = strings.TrimSpace(c.Log.File)
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return Config{}, invalid("log 的 max_* 不能为负数")
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return Config{}, invalid("proxy.url 无效：%q", c.ProxyURL)
		}
	}
	if c.ImageProxy && c.ProxyURL == "" {
		return Config{}, invalid("image_proxy=true 但 proxy.url 为空")
	}

	for name, v := range map[string]string{
		"tmdb.base_url":       c.TMDB.BaseURL,
		"tmdb.image_base_url": c.TMDB.ImageBaseURL,
		"goodreads.base_url":  c.Goodreads.BaseURL,
		"google.base_url":     c.Google.BaseURL,
	} {
		if err := validateBaseURL(v); err != nil {
			return Config{}, invalid("%s %v", name, err)
		}
	}

	for i, r := range fc.Reminders {
		r = ReminderConfig{
			Channel: strings.TrimSpace(r.Channel),
			Target:  strings.TrimSpace(r.Target),
			Spec:    strings.TrimSpace(r.Spec),
			Message: strings.TrimSpace(r.Message),
		}
		if r.Channel == "" || r.Target == "" || r.Message == "" {
			return Config{}, invalid("reminders[%d] 需要 channel/target/message", i)
		}
		c.Reminders = append(c.Reminders, r)
	}
	return c, nil
}

func trimTMDB(t TMDBConfig) TMDBConfig {
	return TMDBConfig{
		APIKey:       strings.TrimSpace(t.APIKey),
		BaseURL:      strings.TrimSpace(t.BaseURL),
		ImageBaseURL: strings.TrimSpace(t.ImageBaseURL),
		Language:     strings.TrimSpace(t.Language),
	}
}

func trimGoogle(g GoogleConfig) GoogleConfig {
	return GoogleConfig{
		APIKey:  strings.TrimSpace(g.APIKey),
		CSEID:   strings.TrimSpace(g.CSEID),
		BaseURL: strings.TrimSpace(g.BaseURL),
	}
}

// validateBaseURL 允许空串（使用适配器默认值）；否则必须是 http/https 绝对 URL。
func validateBaseURL(v string) error {
	if v == "" {
		return nil
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("无效：%q", v)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", v)
	}
	return nil
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(fsys afero.Fs, path string) (fc FileConfig, exists bool, err error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, &Error{Code: ErrCodeUnreadable, Path: path, Err: err}
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	return fc, true, nil
}
