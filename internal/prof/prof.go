package prof

import (
	"context"
	"maps"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

type Options struct {
	Enabled              bool
	AppName              string
	ServerAddress        string
	TenantID             string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int
}

// profileTypes returns what to collect. A build is CPU and allocation bound;
// lock profiles are only worth their overhead when their rates are set.
func profileTypes(o Options) []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if o.ProfileMutexFraction > 0 {
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if o.BlockProfileRate > 0 {
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}
	return types
}

// Start begins continuous profiling. The returned stop func is always
// non-nil, safe to call more than once, and uploads what is buffered before
// returning; call it before the process exits.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)

	if !opts.Enabled {
		L.Debug(ctx, "pyroscope disabled")
		return func() {}, nil
	}

	if opts.ServerAddress == "" {
		err := xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope options")
		return func() {}, err
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	tags := map[string]string{"component": "cli"}
	maps.Copy(tags, opts.Tags)

	cfg := pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		Tags:            tags,
		TenantID:        opts.TenantID,
		ProfileTypes:    profileTypes(opts),
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed",
			"server_address", opts.ServerAddress,
			"app_name", opts.AppName,
		)
		return func() {}, xerrors.Wrap(err, "start pyroscope")
	}

	L.Info(ctx, "pyroscope started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := profiler.Stop(); err != nil {
				L.Warn(context.Background(), "pyroscope stop failed", "err", err)
				return
			}
			L.Info(context.Background(), "pyroscope stopped",
				"server_address", opts.ServerAddress,
				"app_name", opts.AppName,
			)
		})
	}, nil
}
