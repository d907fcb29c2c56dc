// Command osmtiles turns OpenStreetMap data into typed tile grids, either as
// a one-shot generator or as an MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/osmtiles/pkg/config"
	"github.com/NERVsystems/osmtiles/pkg/generator"
	"github.com/NERVsystems/osmtiles/pkg/monitoring"
	"github.com/NERVsystems/osmtiles/pkg/osm"
	"github.com/NERVsystems/osmtiles/pkg/provider"
	"github.com/NERVsystems/osmtiles/pkg/server"
	"github.com/NERVsystems/osmtiles/pkg/tools"
	"github.com/NERVsystems/osmtiles/pkg/tracing"
	"github.com/NERVsystems/osmtiles/pkg/version"
)

// options collects every command line flag.
type options struct {
	configPath string
	debug      bool
	showVer    bool

	// region and grid
	city       string
	bbox       string
	center     string
	radiusKm   float64
	resolution int
	tileSize   float64
	maxSize    int
	timeout    int
	preset     string
	features   string
	profile    string

	// provider
	providerName   string
	file           string
	userAgent      string
	cacheTTL       time.Duration
	overpassRPS    float64
	overpassBurst  int
	nominatimRPS   float64
	nominatimBurst int

	// outputs
	out      string
	geojson  string
	png      string
	pngScale int
	ascii    bool
	stats    bool

	// server mode
	mcp            bool
	httpAddr       string
	httpOnly       bool
	httpBaseURL    string
	httpAuthToken  string
	httpRateLimit  float64
	monitoringAddr string

	// set records the flags given explicitly, so they override the config file.
	set map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Config file (yaml, json or toml); OSMTILES_* variables override it")
	fs.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&o.showVer, "version", false, "Display version information")

	fs.StringVar(&o.city, "city", "", "City or place to geocode")
	fs.StringVar(&o.bbox, "bbox", "", "Bounding box as south,west,north,east")
	fs.StringVar(&o.center, "center", "", "Center point as decimal, DMS or MGRS")
	fs.Float64Var(&o.radiusKm, "radius-km", 1, "Radius around -center in kilometers")
	fs.IntVar(&o.resolution, "resolution", config.DefaultResolution, "Grid cells per degree")
	fs.Float64Var(&o.tileSize, "tile-size", config.DefaultTileSizeMeters, "Nominal tile size in meters")
	fs.IntVar(&o.maxSize, "max-size", config.DefaultMaxGridSize, "Maximum grid width and height")
	fs.IntVar(&o.timeout, "timeout", config.DefaultTimeoutSeconds, "Provider query timeout in seconds")
	fs.StringVar(&o.preset, "preset", "urban", "Feature preset: urban, transportation, natural, comprehensive")
	fs.StringVar(&o.features, "features", "", "Comma separated features, overriding -preset")
	fs.StringVar(&o.profile, "profile", "", "Use case profile: gaming, navigation, urban_planning, environment")

	fs.StringVar(&o.providerName, "provider", "overpass", "Data provider: overpass, mock or file:<path>")
	fs.StringVar(&o.file, "file", "", "Read OSM data from a file (shorthand for -provider file:<path>)")
	fs.StringVar(&o.userAgent, "user-agent", osm.DefaultUserAgent, "User-Agent for OSM API requests")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", 15*time.Minute, "Provider response cache TTL, 0 disables")
	fs.Float64Var(&o.overpassRPS, "overpass-rps", 1, "Overpass requests per second")
	fs.IntVar(&o.overpassBurst, "overpass-burst", 1, "Overpass burst size")
	fs.Float64Var(&o.nominatimRPS, "nominatim-rps", 1, "Nominatim requests per second")
	fs.IntVar(&o.nominatimBurst, "nominatim-burst", 1, "Nominatim burst size")

	fs.StringVar(&o.out, "out", "", "Write the grid as JSON to this file, - for stdout")
	fs.StringVar(&o.geojson, "geojson", "", "Write non-empty tiles as GeoJSON to this file")
	fs.StringVar(&o.png, "png", "", "Write the grid as a PNG image to this file")
	fs.IntVar(&o.pngScale, "png-scale", 4, "Pixels per tile in the PNG image")
	fs.BoolVar(&o.ascii, "ascii", false, "Print the grid as text")
	fs.BoolVar(&o.stats, "stats", true, "Print grid statistics")

	fs.BoolVar(&o.mcp, "mcp", false, "Run as an MCP server over stdio")
	fs.StringVar(&o.httpAddr, "http-addr", "", "Also serve MCP over HTTP+SSE and the REST API on this address")
	fs.BoolVar(&o.httpOnly, "http-only", false, "Serve HTTP only, without stdio (requires -http-addr)")
	fs.StringVar(&o.httpBaseURL, "http-base-url", "", "Public base URL for the HTTP transport")
	fs.StringVar(&o.httpAuthToken, "http-auth-token", "", "Bearer token required by the HTTP transport")
	fs.Float64Var(&o.httpRateLimit, "http-rate-limit", 10, "HTTP requests per second per client, 0 disables")
	fs.StringVar(&o.monitoringAddr, "monitoring-addr", "", "Serve Prometheus metrics and health on this address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if o.file != "" {
		o.providerName = "file:" + o.file
		o.set["provider"] = true
	}
	if o.httpOnly && o.httpAddr == "" {
		return nil, errors.New("-http-only requires -http-addr")
	}
	return o, nil
}

func main() {
	fs := flag.NewFlagSet("osmtiles", flag.ExitOnError)
	o, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if o.showVer {
		fmt.Println(version.String())
		return
	}

	logLevel := slog.LevelInfo
	if o.debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.InitTracing(ctx, version.BuildVersion)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("error shutting down tracing", "error", err)
			}
		}()
		if endpoint := os.Getenv(tracing.EndpointEnv); endpoint != "" {
			logger.Info("OpenTelemetry tracing enabled", "endpoint", endpoint)
		}
	}

	if err := run(ctx, o, logger); err != nil {
		logger.Error("osmtiles failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options, logger *slog.Logger) error {
	fc, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.apply(fc)

	if fc.Provider.UserAgent != "" {
		osm.SetUserAgent(fc.Provider.UserAgent)
	}
	osm.SetRateLimit(tracing.ServiceOverpass, o.overpassRPS, o.overpassBurst)
	osm.SetRateLimit(tracing.ServiceNominatim, o.nominatimRPS, o.nominatimBurst)
	monitoring.InstallOSMHooks()

	p, err := provider.New(fc.Provider.Name, provider.Options{})
	if err != nil {
		return err
	}
	if fc.Provider.CacheTTL > 0 {
		cached := provider.NewCached(p, fc.Provider.CacheTTL)
		defer cached.Close()
		p = cached
	}
	gen := generator.New(
		generator.WithMaxSize(fc.Grid.MaxSize, fc.Grid.MaxSize),
		generator.WithLogger(logger),
	)

	logger.Info("starting osmtiles",
		"version", version.BuildVersion,
		"provider", p.Type(),
		"mode", o.mode(),
		"user_agent", osm.UserAgent())

	if o.mcp || o.httpAddr != "" {
		return serve(ctx, o, p, gen, logger)
	}
	cfg, err := o.generationConfig(fc)
	if err != nil {
		return err
	}
	return generate(ctx, o, p, gen, cfg, os.Stdout, logger)
}

func (o *options) mode() string {
	switch {
	case o.httpOnly:
		return "http"
	case o.httpAddr != "":
		return "stdio+http"
	case o.mcp:
		return "stdio"
	default:
		return "generate"
	}
}

// apply copies explicitly given flags over the loaded configuration. Flags
// left at their defaults only fill fields the file leaves empty.
func (o *options) apply(fc *config.FileConfig) {
	if o.set["city"] || o.set["bbox"] || o.set["center"] {
		fc.Region = config.RegionSpec{City: o.city, BBox: o.bbox, Center: o.center}
		if o.center != "" {
			fc.Region.RadiusKm = o.radiusKm
		}
	}
	if o.set["resolution"] {
		fc.Grid.Resolution = o.resolution
	}
	if o.set["tile-size"] {
		fc.Grid.TileSize = o.tileSize
	}
	if o.set["max-size"] {
		fc.Grid.MaxSize = o.maxSize
	}
	if o.set["timeout"] {
		fc.Provider.TimeoutSeconds = o.timeout
	}
	if o.set["provider"] {
		fc.Provider.Name = o.providerName
	}
	if o.set["cache-ttl"] {
		fc.Provider.CacheTTL = o.cacheTTL
	}
	if o.set["user-agent"] {
		fc.Provider.UserAgent = o.userAgent
	}
	if o.set["preset"] {
		fc.Features.Preset = o.preset
		fc.Features.List = nil
	}
	if o.set["features"] {
		fc.Features.List = splitList(o.features)
	}
}

// generationConfig builds the config for a one-shot run. A profile replaces
// the file's grid and feature settings with its own unless flags override them.
func (o *options) generationConfig(fc *config.FileConfig) (config.Config, error) {
	if o.profile == "" {
		return fc.Config()
	}
	req := tools.GridRequest{
		RegionSpec: fc.Region,
		Profile:    o.profile,
	}
	if o.set["preset"] {
		req.Preset = o.preset
	}
	if o.set["features"] {
		req.Features = splitList(o.features)
	}
	if o.set["resolution"] {
		req.Resolution = o.resolution
	}
	if o.set["tile-size"] {
		req.TileSize = o.tileSize
	}
	if o.set["timeout"] {
		req.Timeout = o.timeout
	}
	return req.Config()
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// serve runs the MCP server until ctx is done.
func serve(ctx context.Context, o *options, p provider.Provider, gen *generator.Generator, logger *slog.Logger) error {
	registry := tools.NewRegistry(logger, p, gen)
	s, err := server.NewServer(registry, logger)
	if err != nil {
		return err
	}

	healthChecker := monitoring.NewHealthChecker(monitoring.ServiceName, version.BuildVersion)
	defer healthChecker.Shutdown()
	healthChecker.Monitor(ctx, p.Type(), time.Minute, p.TestAvailability)

	if o.monitoringAddr != "" {
		startMonitoringServer(ctx, o.monitoringAddr, healthChecker, logger)
	}

	if o.httpAddr != "" {
		transport := server.NewHTTPTransport(s.GetMCPServer(), server.NewHandler(registry, logger), server.HTTPTransportConfig{
			Addr:           o.httpAddr,
			BaseURL:        o.httpBaseURL,
			AuthToken:      o.httpAuthToken,
			RateLimit:      o.httpRateLimit,
			RateBurst:      max(1, int(2*o.httpRateLimit)),
			MaxRequestSize: 1 << 20,
		}, logger)
		transport.SetHealthChecker(healthChecker)

		go func() {
			if err := transport.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP transport error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := transport.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shut down HTTP transport", "error", err)
			}
		}()
	}

	if o.httpOnly {
		logger.Info("server ready", "transports", []string{"http"})
		<-ctx.Done()
		logger.Info("shutdown signal received")
		return nil
	}
	logger.Info("server ready", "transports", strings.Fields(strings.ReplaceAll(o.mode(), "+", " ")))
	return s.RunWithContext(ctx)
}

func startMonitoringServer(ctx context.Context, addr string, hc *monitoring.HealthChecker, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", hc.HealthHandler())
	mux.Handle("/live", hc.LivenessHandler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}
	go func() {
		logger.Info("starting monitoring server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("monitoring server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down monitoring server", "error", err)
		}
	}()
}
