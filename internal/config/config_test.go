package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := range kv {
			if kv[i] == '=' {
				os.Unsetenv(kv[:i])
				break
			}
		}
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Port != ProdPort {
		t.Errorf("Port = %d, want %d", c.Port, ProdPort)
	}
	if c.BaseDir != ProdBaseDir {
		t.Errorf("BaseDir = %q, want %q", c.BaseDir, ProdBaseDir)
	}
	if c.TickInterval != ProdTickInterval {
		t.Errorf("TickInterval = %v, want %v", c.TickInterval, ProdTickInterval)
	}
	if c.MaxPredownloadBytes != 500*1024*1024 {
		t.Errorf("MaxPredownloadBytes = %d, want 500MiB", c.MaxPredownloadBytes)
	}
	if c.CacheMaxAge != 30*24*time.Hour {
		t.Errorf("CacheMaxAge = %v, want 30 days", c.CacheMaxAge)
	}
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)
	c := Load()
	if c.Dev {
		t.Error("Dev should default false")
	}
	if c.Host != "127.0.0.1" {
		t.Errorf("Host = %q", c.Host)
	}
	if c.Port != ProdPort {
		t.Errorf("Port = %d", c.Port)
	}
}

func TestLoad_overrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("URPMD_HOST", "0.0.0.0")
	os.Setenv("URPMD_PORT", "9000")
	os.Setenv("URPMD_BASE_DIR", "/tmp/urpmd-test")
	os.Setenv("URPMD_TICK_INTERVAL", "5s")
	os.Setenv("URPMD_MAX_PREDOWNLOAD_BYTES", "1024")
	os.Setenv("URPMD_VERBOSE", "true")

	c := Load()
	if c.Host != "0.0.0.0" {
		t.Errorf("Host = %q", c.Host)
	}
	if c.Port != 9000 {
		t.Errorf("Port = %d", c.Port)
	}
	if c.BaseDir != "/tmp/urpmd-test" {
		t.Errorf("BaseDir = %q", c.BaseDir)
	}
	if c.TickInterval != 5*time.Second {
		t.Errorf("TickInterval = %v", c.TickInterval)
	}
	if c.MaxPredownloadBytes != 1024 {
		t.Errorf("MaxPredownloadBytes = %d", c.MaxPredownloadBytes)
	}
	if !c.Verbose {
		t.Error("Verbose should be true")
	}
}

func TestLoad_devMode(t *testing.T) {
	clearEnv(t)
	os.Setenv("URPMD_DEV", "1")
	c := Load()
	if !c.Dev || !c.Foreground || !c.Verbose {
		t.Errorf("dev mode should set Dev/Foreground/Verbose, got %+v", c)
	}
	if c.Port != DevPort {
		t.Errorf("Port = %d, want %d", c.Port, DevPort)
	}
	if c.TickInterval != DevTickInterval {
		t.Errorf("TickInterval = %v, want %v", c.TickInterval, DevTickInterval)
	}
	if c.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", c.Host)
	}
}

func TestApplyDevMode_preservesExplicitPort(t *testing.T) {
	c := Default()
	c.Port = 12345
	c.ApplyDevMode()
	if c.Port != 12345 {
		t.Errorf("explicit port should survive ApplyDevMode, got %d", c.Port)
	}
}

func TestGetEnvBool(t *testing.T) {
	clearEnv(t)
	cases := map[string]bool{"1": true, "true": true, "True": true, "yes": true, "0": false, "false": false, "no": false, "": false}
	for v, want := range cases {
		if v == "" {
			os.Unsetenv("URPMD_VERBOSE")
		} else {
			os.Setenv("URPMD_VERBOSE", v)
		}
		if got := getEnvBool("URPMD_VERBOSE", false); got != want {
			t.Errorf("getEnvBool(%q) = %v, want %v", v, got, want)
		}
	}
}
