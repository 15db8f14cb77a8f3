package state

import (
	"context"
	"log"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/encoding/charmap"

	"bpm/config"
)

func TestEnvFromContext(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	if env == nil || env.start.IsZero() {
		t.Fatalf("EnvFromContext() = %+v", env)
	}
	// the same environment is shared by everyone holding the context
	env.Origin = "ponies"
	env.CodePage = charmap.Windows1251
	if got := EnvFromContext(ctx); got.Origin != "ponies" || got.CodePage != charmap.Windows1251 {
		t.Errorf("environment is not shared: %+v", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("EnvFromContext() did not panic without environment")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	time.Sleep(10 * time.Millisecond)
	if up := env.Uptime(); up < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, want at least 10ms", up)
	}
}

func TestLocalEnv_StdLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	env := &LocalEnv{Cfg: &config.Config{Version: 1}, Log: zap.New(core)}

	env.RedirectStdLog()
	log.Print("from standard logger")
	env.RestoreStdLog()
	log.Print("after restore")

	if n := logs.FilterMessage("from standard logger").Len(); n != 1 {
		t.Errorf("redirected messages = %d, want 1", n)
	}
	if n := logs.FilterMessage("after restore").Len(); n != 0 {
		t.Errorf("messages after restore = %d, want 0", n)
	}
}

func TestLocalEnv_NoLogger(t *testing.T) {
	env := &LocalEnv{}
	env.RedirectStdLog()
	if env.restoreStdLog != nil {
		t.Error("RedirectStdLog() without logger set restore function")
	}
	env.RestoreStdLog()
}
