package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("server.address = %q", cfg.Server.Address)
	}
	if cfg.Database.Driver != "mongo" || cfg.Lock.Driver != "mongo" {
		t.Errorf("unexpected drivers: %q / %q", cfg.Database.Driver, cfg.Lock.Driver)
	}
	if cfg.Booking.LockWait != 3*time.Second || cfg.Payment.ActivationGrace != 2*time.Minute {
		t.Errorf("duration defaults not parsed: %+v %+v", cfg.Booking, cfg.Payment)
	}
	if cfg.Jobs.ExpirySchedule != "5 0 * * *" {
		t.Errorf("jobs.expiry_schedule = %q", cfg.Jobs.ExpirySchedule)
	}
	if cfg.App.IsProduction() {
		t.Error("default env must not be production")
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
app:
  env: production
  timezone: Asia/Ho_Chi_Minh
database:
  driver: memory
lock:
  driver: memory
payment:
  partner_code: FROMFILE
  access_key: ak
  secret_key: sk
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAYMENT_PARTNER_CODE", "FROMENV")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.App.IsProduction() {
		t.Error("expected production env from file")
	}
	if cfg.Payment.PartnerCode != "FROMENV" {
		t.Errorf("env must override file, got %q", cfg.Payment.PartnerCode)
	}
	loc, err := cfg.App.Location()
	if err != nil || loc.String() != "Asia/Ho_Chi_Minh" {
		t.Errorf("timezone: %v %v", loc, err)
	}
}

func TestLoadConfigRejectsBadDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("LOCK_DRIVER", "mongo")
	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("mongo lock without mongo database must be rejected")
	}
}

func TestLoadConfigProductionNeedsGatewayCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("LOCK_DRIVER", "memory")
	t.Setenv("PAYMENT_PARTNER_CODE", "GYM")
	t.Setenv("PAYMENT_ACCESS_KEY", "ak")

	_, err := LoadConfig(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "payment.secret_key") {
		t.Fatalf("want missing secret_key error, got %v", err)
	}

	t.Setenv("PAYMENT_SECRET_KEY", "sk")
	if _, err := LoadConfig(t.TempDir()); err != nil {
		t.Fatalf("complete production config rejected: %v", err)
	}
}
