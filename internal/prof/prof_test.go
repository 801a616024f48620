package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())
	stop, err := Start(ctx, Options{
		Enabled:              false,
		Tags:                 map[string]string{"k": "v"},
		ProfileMutexFraction: 999,
	})
	if err != nil {
		t.Fatalf("disabled should never error, got: %v", err)
	}
	if stop == nil {
		t.Fatal("stop func is nil")
	}
	stop()
	stop()
}

func TestStart_Enabled_EmptyServerAddress_Errors(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: true, AppName: "webbuild"})
	if err == nil || !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("err = %v, want invalid server address", err)
	}
	if stop == nil {
		t.Fatal("stop must be non-nil even on error")
	}
	stop()
	stop()
}

func TestStart_Enabled_UnreachableServer(t *testing.T) {
	// pyroscope connects lazily in some versions; only the stop contract is
	// asserted
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		ServerAddress: "http://localhost:0/nonexistent",
		AppName:       "webbuild",
	})
	if stop == nil {
		t.Fatal("stop func should always be non-nil")
	}
	stop()
	stop()
}

func TestProfileTypes(t *testing.T) {
	has := func(types []pyroscope.ProfileType, want pyroscope.ProfileType) bool {
		for _, pt := range types {
			if pt == want {
				return true
			}
		}
		return false
	}

	base := profileTypes(Options{})
	if !has(base, pyroscope.ProfileCPU) || !has(base, pyroscope.ProfileAllocSpace) {
		t.Fatalf("base profile types missing cpu/alloc: %v", base)
	}
	if has(base, pyroscope.ProfileMutexCount) || has(base, pyroscope.ProfileBlockCount) {
		t.Fatalf("lock profiles enabled without rates: %v", base)
	}

	all := profileTypes(Options{ProfileMutexFraction: 5, BlockProfileRate: 1000})
	if !has(all, pyroscope.ProfileMutexDuration) || !has(all, pyroscope.ProfileBlockDuration) {
		t.Fatalf("lock profiles missing with rates set: %v", all)
	}
}
