package server

import (
	"log/slog"
	"time"
)

type Options struct {
	// Timeout bounds requests whose context has no deadline. Zero disables it.
	Timeout time.Duration
	// Pretty indents JSON responses.
	Pretty bool
	// MaxBodyBytes limits request bodies. Zero means unlimited.
	MaxBodyBytes int64
	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string
	// RateLimit caps requests per second across all clients. Zero disables it.
	RateLimit float64
	Burst     int
	// Playground serves the GraphQL playground to browsers.
	Playground bool
	Logger     *slog.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option  { return func(o *Options) { o.AllowedOrigins = origins } }
func WithPlayground(enable bool) Option  { return func(o *Options) { o.Playground = enable } }
func WithLogger(l *slog.Logger) Option   { return func(o *Options) { o.Logger = l } }
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) { o.RateLimit, o.Burst = perSecond, burst }
}
