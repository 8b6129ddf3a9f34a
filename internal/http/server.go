package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"studiocharts/internal/animate"
	"studiocharts/internal/cache"
	"studiocharts/internal/core"
	"studiocharts/internal/dataset"
	"studiocharts/internal/log"
	"studiocharts/internal/middleware/ratelimit"
	"studiocharts/internal/middleware/security"
	"studiocharts/internal/middleware/trace"
	"studiocharts/internal/services"
	appweb "studiocharts/web"
)

// Options tunes the server. Zero values fall back to DefaultOptions.
type Options struct {
	// TopN is the default ranking length, MaxTopN the largest accepted "n".
	TopN    int
	MaxTopN int

	Animation animate.Config
	// MaxStreams caps concurrent animation streams.
	MaxStreams int

	CacheTTL  time.Duration
	CacheSize int

	RateLimit ratelimit.Config

	// Publisher fans manual reloads out to other instances. Optional.
	Publisher services.ReloadPublisher
	// Source names the data backend in reload messages.
	Source string
	// InstanceID marks reload messages this server publishes so its own
	// consumer can skip them.
	InstanceID string
}

func DefaultOptions() Options {
	return Options{
		TopN:       10,
		MaxTopN:    100,
		Animation:  animate.Config{Interval: animate.DefaultInterval, DecayK: animate.DefaultDecayK},
		MaxStreams: 64,
		CacheTTL:   5 * time.Minute,
		CacheSize:  128,
		RateLimit:  ratelimit.Config{RequestsPerMinute: 30},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if o.MaxTopN < o.TopN {
		o.MaxTopN = max(d.MaxTopN, o.TopN)
	}
	if o.MaxStreams <= 0 {
		o.MaxStreams = d.MaxStreams
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	if o.RateLimit.RequestsPerMinute <= 0 {
		o.RateLimit.RequestsPerMinute = d.RateLimit.RequestsPerMinute
	}
	return o
}

type Server struct {
	http.Server
	loader    *dataset.Loader
	opts      Options
	logger    *log.Logger
	templates *template.Template

	renders *cache.LRUCache[[]byte]
	caches  *cache.Manager
	runs    *runRegistry

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the routes. The caller owns loader and is expected to run
// the first Load; until then data endpoints answer 503.
func NewServer(addr string, loader *dataset.Loader, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	opts = opts.withDefaults()
	logger = logger.WithComponent(log.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		loader:   loader,
		opts:     opts,
		logger:   logger,
		renders:  cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		caches:   cache.NewManager(logger),
		runs:     newRunRegistry(opts.MaxStreams),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)
	s.caches.Register("renders", s.renders)
	s.caches.StartCleanup(10 * time.Minute)

	loader.OnReload(s.onReload)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/studios", s.handleStudios)
	mux.HandleFunc("GET /api/brands/top", s.handleTopBrands)
	mux.HandleFunc("GET /api/brands/bubble", s.handleBubble)
	mux.HandleFunc("GET /api/studios/top", s.handleTopStudios)
	mux.HandleFunc("GET /api/scatter", s.handleScatter)
	mux.HandleFunc("GET /api/animation", s.handleAnimation)
	mux.Handle("POST /api/reload", limited(http.HandlerFunc(s.handleReload)))

	mux.Handle("GET /charts/top-brands.png", limited(http.HandlerFunc(s.handleTopBrandsPNG)))
	mux.Handle("GET /charts/bubbles.png", limited(http.HandlerFunc(s.handleBubblesPNG)))
	mux.Handle("GET /charts/releases.png", limited(http.HandlerFunc(s.handleReleasesPNG)))
	mux.Handle("GET /exports/top.xlsx", limited(http.HandlerFunc(s.handleExport)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(s.detector.Middleware(headers.Middleware(mux)))
	return s
}

// onReload drops renderings of the previous snapshot and stops every
// running animation so viewers restart on the new data.
func (s *Server) onReload(d *dataset.Dataset) {
	cancelled := s.runs.CancelAll()
	purged := s.caches.PurgeAll()
	s.logger.Info("Dataset swapped",
		log.FieldDatasetVersion, d.Version,
		"cancelled_runs", cancelled,
		"purged_entries", purged)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	_ = ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}

// Shutdown stops running animations and background cleanup, then shuts the
// HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if n := s.runs.CancelAll(); n > 0 {
			s.logger.Info("Cancelled animations for shutdown", "runs", n)
		}
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// current returns the loaded dataset or writes a 503.
func (s *Server) current(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	d, err := s.loader.Current()
	if err != nil {
		if !errors.Is(err, dataset.ErrNotLoaded) {
			s.logger.ErrorContext(r.Context(), "Dataset unavailable", log.FieldError, err)
		}
		_ = ServiceUnavailableError("dataset not loaded yet").Write(w)
		return nil, false
	}
	return d, true
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once a dataset has loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.loader.Current(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type indexData struct {
	Studios    []string
	AllStudios string
	TopN       int
	Version    uint64
	Loaded     bool
	PlotlyJS   string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := indexData{
		AllStudios: core.AllStudios,
		TopN:       s.opts.TopN,
		PlotlyJS:   security.PlotlyCDN + "/plotly-2.35.2.min.js",
	}
	if d, err := s.loader.Current(); err == nil {
		data.Studios = d.Studios
		data.Version = d.Version
		data.Loaded = true
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
