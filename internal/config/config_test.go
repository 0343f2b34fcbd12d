package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MPDNetwork != "tcp" || cfg.MPDAddress != "127.0.0.1:6600" {
		t.Fatalf("unexpected MPD defaults: %+v", cfg)
	}
	if cfg.JukeboxTarget != 1 || cfg.SmartplsEnabled != true {
		t.Fatalf("unexpected feature defaults: %+v", cfg)
	}
}

func TestLoadHonorsEnvironmentOverride(t *testing.T) {
	t.Setenv("MYMPDD_MPD_ADDRESS", "mpd.local:6600")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MPDAddress != "mpd.local:6600" {
		t.Fatalf("got %q, want env override", cfg.MPDAddress)
	}
}
