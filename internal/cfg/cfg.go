package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	// inputs
	ModuleDir    string
	ModuleName   string
	IconSource   string
	HTMLTemplate string
	SWTemplate   string

	// outputs
	EphemeralDir  string
	ArchiveName   string
	Archiver      string
	ArchiverPath  string
	MetricsFile   string
	WriteManifest bool
	OfflineCheck  bool

	// naming constants injected into the templates and manifests
	AppName        string
	AppShortName   string
	AppDescription string
	DeveloperName  string
	DeveloperURL   string
	Background     string
	ThemeColor     string
	CachePrefix    string
	StoragePrefix  string

	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	Publish              bool
	PublishS3Bucket      string
	PublishS3Prefix      string
	PublishSSMParam      string
	PublishSigningKeyARN string
	PublishSiteFiles     bool
	PublishRPS           float64

	Serve     bool
	ServeOnly bool
	ServePort int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", false, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.StringVar(&c.ModuleDir, "module-dir", "../../wasm_module/ephemeral/production/build", "directory holding the compiled module and its companion files")
	fs.StringVar(&c.ModuleName, "module-name", "module.wasm", "file name of the compiled module inside -module-dir")
	fs.StringVar(&c.IconSource, "icon-source", "source/logo.gif", "source image for icon generation (gif or png)")
	fs.StringVar(&c.HTMLTemplate, "html-template", "", "HTML shell template (empty uses the embedded one)")
	fs.StringVar(&c.SWTemplate, "sw-template", "", "service worker template (empty uses the embedded one)")

	fs.StringVar(&c.EphemeralDir, "ephemeral-dir", "ephemeral", "scratch directory, cleared on every run; the build is written to <dir>/build")
	fs.StringVar(&c.ArchiveName, "archive-name", "build.zip", "archive file name inside -ephemeral-dir")
	fs.StringVar(&c.Archiver, "archiver", "builtin", "builtin|7za")
	fs.StringVar(&c.ArchiverPath, "archiver-path", "7za", "path to the 7za binary when -archiver=7za")
	fs.StringVar(&c.MetricsFile, "metrics-file", "", "write build metrics in prometheus text format to this file")
	fs.BoolVar(&c.WriteManifest, "write-manifest", false, "write build-manifest.json next to the archive")
	fs.BoolVar(&c.OfflineCheck, "offline-check", true, "verify the service worker precache list resolves against the output")

	fs.StringVar(&c.AppName, "app-name", "Indifference Engine", "application name for manifests")
	fs.StringVar(&c.AppShortName, "app-short-name", "Indifference Engine", "short application name for manifests")
	fs.StringVar(&c.AppDescription, "app-description", "Small-scale, long-lived retro game engine.", "application description for manifests")
	fs.StringVar(&c.DeveloperName, "developer-name", "siliconspecter", "developer name for manifests")
	fs.StringVar(&c.DeveloperURL, "developer-url", "https://siliconspecter.github.io/indifference-engine/", "developer url for manifests")
	fs.StringVar(&c.Background, "background", "#000", "background colour (#rgb or #rrggbb)")
	fs.StringVar(&c.ThemeColor, "theme-color", "#000", "theme colour (#rgb or #rrggbb)")
	fs.StringVar(&c.CachePrefix, "cache-prefix", "indifference-engine", "service worker cache namespace prefix")
	fs.StringVar(&c.StoragePrefix, "storage-prefix", "indifference-engine", "local storage key prefix")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 1.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")

	fs.BoolVar(&c.Publish, "publish", false, "upload the archive to S3 and record its hash in SSM")
	fs.StringVar(&c.PublishS3Bucket, "publish-s3-bucket", "", "s3 bucket to upload the archive to")
	fs.StringVar(&c.PublishS3Prefix, "publish-s3-prefix", "apps/webbuild/bundles", "s3 prefix (key) for uploaded archives")
	fs.StringVar(&c.PublishSSMParam, "publish-ssm-param", "", "ssm parameter that receives the published archive hash")
	fs.StringVar(&c.PublishSigningKeyARN, "publish-signing-key-arn", "", "KMS key ARN used to sign the archive digest")
	fs.BoolVar(&c.PublishSiteFiles, "publish-site-files", false, "also upload every output file with its cache-control policy")
	fs.Float64Var(&c.PublishRPS, "publish-rps", 20, "max S3 PutObject calls per second for site files")

	fs.BoolVar(&c.Serve, "serve", false, "serve the output directory after a successful build until interrupted")
	fs.BoolVar(&c.ServeOnly, "serve-only", false, "skip the build and serve the last one in -ephemeral-dir (needs a previous -write-manifest run)")
	fs.IntVar(&c.ServePort, "serve-port", 8080, "listen TCP port for -serve (1..65535)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

var (
	colorRe  = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	prefixRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	// Paths
	if c.ModuleDir == "" {
		errs = append(errs, fmt.Errorf("MODULE_DIR is required"))
	}
	if c.ModuleName == "" || strings.ContainsAny(c.ModuleName, `/\`) {
		errs = append(errs, fmt.Errorf("MODULE_NAME must be a bare file name (got %q)", c.ModuleName))
	}
	if c.IconSource == "" {
		errs = append(errs, fmt.Errorf("ICON_SOURCE is required"))
	}
	if c.EphemeralDir == "" || c.EphemeralDir == "/" || c.EphemeralDir == "." {
		errs = append(errs, fmt.Errorf("EPHEMERAL_DIR must name a dedicated scratch directory (got %q)", c.EphemeralDir))
	}
	if c.ArchiveName == "" || strings.ContainsAny(c.ArchiveName, `/\`) || c.ArchiveName == "build" {
		errs = append(errs, fmt.Errorf("ARCHIVE_NAME must be a bare file name other than the build dir (got %q)", c.ArchiveName))
	}

	switch c.Archiver {
	case "builtin":
	case "7za":
		if c.ArchiverPath == "" {
			errs = append(errs, fmt.Errorf("ARCHIVER_PATH required when ARCHIVER=7za"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid ARCHIVER %q (must be builtin|7za)", c.Archiver))
	}

	// Naming constants
	if !colorRe.MatchString(c.Background) {
		errs = append(errs, fmt.Errorf("BACKGROUND must be #rgb or #rrggbb (got %q)", c.Background))
	}
	if !colorRe.MatchString(c.ThemeColor) {
		errs = append(errs, fmt.Errorf("THEME_COLOR must be #rgb or #rrggbb (got %q)", c.ThemeColor))
	}
	if !prefixRe.MatchString(c.CachePrefix) {
		errs = append(errs, fmt.Errorf("CACHE_PREFIX must match %s (got %q)", prefixRe, c.CachePrefix))
	}
	if !prefixRe.MatchString(c.StoragePrefix) {
		errs = append(errs, fmt.Errorf("STORAGE_PREFIX must match %s (got %q)", prefixRe, c.StoragePrefix))
	}
	if c.AppName == "" {
		errs = append(errs, fmt.Errorf("APP_NAME is required"))
	}

	// Tracing
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Pyroscope
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	if c.Publish {
		if c.PublishS3Bucket == "" {
			errs = append(errs, fmt.Errorf("PUBLISH_S3_BUCKET required when PUBLISH=true"))
		}
		if c.PublishSSMParam == "" {
			errs = append(errs, fmt.Errorf("PUBLISH_SSM_PARAM required when PUBLISH=true"))
		}
		if c.PublishSiteFiles && c.PublishRPS <= 0 {
			errs = append(errs, fmt.Errorf("PUBLISH_RPS must be > 0 (got %v)", c.PublishRPS))
		}
	}

	if c.ServeOnly && c.Publish {
		errs = append(errs, fmt.Errorf("SERVE_ONLY and PUBLISH are mutually exclusive"))
	}

	if (c.Serve || c.ServeOnly) && (c.ServePort < 1 || c.ServePort > 65535) {
		errs = append(errs, fmt.Errorf("invalid SERVE_PORT %d (must be 1..65535)", c.ServePort))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
