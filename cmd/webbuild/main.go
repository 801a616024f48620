package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/archive"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/icons"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/minify"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/pipeline"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/prof"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/publish"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/sitehttp"
	v "github.com/keithlinneman/linnemanlabs-webbuild/internal/version"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/webassets"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(v.Get().String())
		os.Exit(0)
	}

	cfg.FillFromEnv(flag.CommandLine, "WEBBUILD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// ParseLevel cannot fail past Validate
	lvl, _ := log.ParseLevel(conf.LogLevel)
	stackLvl, _ := log.ParseLevel(conf.StacktraceLevel)
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		BuildId:           v.BuildId,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "cli")
	ctx = log.WithContext(ctx, L)

	if err := run(ctx, L, conf); err != nil {
		L.Error(ctx, err, "webbuild failed", "stage", pipeline.FailedStage(err))
		_ = lg.Sync()
		stop()
		os.Exit(1)
	}
}

// run owns every resource with a shutdown hook so they are released before
// main decides the exit code.
func run(ctx context.Context, L log.Logger, conf cfg.App) error {
	vi := v.Get()

	L.Info(ctx, "initializing build",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"module_dir", conf.ModuleDir,
		"module_name", conf.ModuleName,
		"icon_source", conf.IconSource,
		"ephemeral_dir", conf.EphemeralDir,
		"archiver", conf.Archiver,
		"offline_check", conf.OfflineCheck,
		"write_manifest", conf.WriteManifest,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
		"publish", conf.Publish,
		"serve", conf.Serve,
		"serve_only", conf.ServeOnly,
	)
	if !conf.OfflineCheck {
		L.Warn(ctx, "offline check disabled, the precache list will not be verified")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "cli", &vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"version":  vi.Version,
			"commit":   vi.Commit,
			"build_id": vi.BuildId,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)
	defer stopProf()

	// collector is expected on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "cli",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			L.Error(sctx, err, "otel shutdown")
		}
	}()

	if conf.ServeOnly {
		res, err := pipeline.Open(conf.EphemeralDir)
		if err != nil {
			return err
		}
		L.Info(ctx, "serving previous build",
			"build_dir", res.BuildDir,
			"module", res.Manifest.ModulePath,
			"built_at", res.Manifest.BuiltAt,
			"files", len(res.Manifest.Files),
		)
		return serve(ctx, L, conf, m, res)
	}

	in, err := buildInputs(conf, m, vi)
	if err != nil {
		return err
	}

	res, err := pipeline.Run(ctx, in)
	m.SetBuildResult(err == nil, time.Now())
	if conf.MetricsFile != "" {
		if werr := m.WriteTextfile(conf.MetricsFile); werr != nil {
			L.Error(ctx, werr, "write metrics textfile", "path", conf.MetricsFile)
		}
	}
	if err != nil {
		return err
	}

	L.Info(ctx, "build complete",
		"build_dir", res.BuildDir,
		"archive", res.ArchivePath,
		"module", res.Manifest.ModulePath,
		"cache_namespace", res.Manifest.CacheNamespace,
		"files", len(res.Manifest.Files),
		"bytes", res.Manifest.TotalBytes(),
	)

	if conf.Publish {
		if err := publishRelease(ctx, L, conf, m, res); err != nil {
			return err
		}
	}

	if conf.Serve {
		return serve(ctx, L, conf, m, res)
	}
	return nil
}

func buildInputs(conf cfg.App, m *metrics.BuildMetrics, vi v.Info) (pipeline.Inputs, error) {
	sw, err := webassets.ServiceWorker(conf.SWTemplate)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	page, err := webassets.Index(conf.HTMLTemplate)
	if err != nil {
		return pipeline.Inputs{}, err
	}

	src, err := icons.Load(conf.IconSource)
	if err != nil {
		return pipeline.Inputs{}, err
	}
	ic := icons.DefaultConfig()
	ic.AppName = conf.AppName
	ic.AppShortName = conf.AppShortName
	ic.AppDescription = conf.AppDescription
	ic.DeveloperName = conf.DeveloperName
	ic.DeveloperURL = conf.DeveloperURL
	ic.Background = conf.Background
	ic.ThemeColor = conf.ThemeColor
	gen, err := icons.NewGenerator(src, ic)
	if err != nil {
		return pipeline.Inputs{}, err
	}

	arc, err := archive.New(conf.Archiver, conf.ArchiverPath)
	if err != nil {
		return pipeline.Inputs{}, err
	}

	return pipeline.Inputs{
		ModuleDir:             conf.ModuleDir,
		ModuleName:            conf.ModuleName,
		EphemeralDir:          conf.EphemeralDir,
		ArchiveName:           conf.ArchiveName,
		ServiceWorkerTemplate: sw,
		HTMLTemplate:          page,
		CachePrefix:           conf.CachePrefix,
		StoragePrefix:         conf.StoragePrefix,
		Icons:                 gen,
		Minifier:              minify.New(),
		Archiver:              arc,
		Metrics:               m,
		Version:               vi,
		OfflineCheck:          conf.OfflineCheck,
		WriteManifest:         conf.WriteManifest,
	}, nil
}

func publishRelease(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.BuildMetrics, res *pipeline.Result) error {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return xerrors.Wrap(err, "load AWS config")
	}

	p, err := publish.NewFromConfig(awsCfg, publish.Options{
		Logger:        L.With("component", "publish"),
		Bucket:        conf.PublishS3Bucket,
		Prefix:        conf.PublishS3Prefix,
		SSMParam:      conf.PublishSSMParam,
		SigningKeyARN: conf.PublishSigningKeyARN,
		SiteFiles:     conf.PublishSiteFiles,
		RPS:           conf.PublishRPS,
		Cache:         cachepolicy.Default(),
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	rel, err := p.Publish(ctx, res.BuildDir, res.ArchivePath)
	if err != nil {
		return err
	}
	L.Info(ctx, "release published",
		"hash", rel.Hash,
		"archive_key", rel.ArchiveKey,
		"signature_key", rel.SignatureKey,
		"site_objects", rel.SiteObjects,
		"bytes", rel.Bytes,
	)
	return nil
}

func serve(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.BuildMetrics, res *pipeline.Result) error {
	SL := L.With("component", "preview")

	site, err := sitehandler.New(sitehandler.Options{
		Logger: SL,
		Site:   os.DirFS(res.BuildDir),
	})
	if err != nil {
		return err
	}

	addr, stopHTTP, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       SL,
		Port:         conf.ServePort,
		Routes:       sitehttp.New(site, m.Handler()).RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Build:        res,
	})
	if err != nil {
		return xerrors.Wrap(err, "start preview server")
	}
	SL.Info(ctx, "serving build, interrupt to stop", "url", "http://"+addr+"/")

	// wait for ctrl+c / sigterm
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.DefaultShutdownTimeout)
	defer cancel()
	SL.Info(shutdownCtx, "shutdown signal received")
	if err := stopHTTP(shutdownCtx); err != nil {
		SL.Error(shutdownCtx, err, "preview server shutdown")
	}
	return nil
}
