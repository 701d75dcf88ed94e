package config

import "testing"

func TestPresetApplyOverwritesBundledFields(t *testing.T) {
	cfg := RateLimitConfig{
		MaxRequestsPerMinute: 1,
		IsFreeTierAccount:    true,
	}
	cfg = PresetStrict.Apply(cfg)

	if cfg.Preset != "Strict" {
		t.Fatalf("expected Strict label, got %q", cfg.Preset)
	}
	if cfg.MaxRequestsPerMinute != PresetStrict.MaxRequestsPerMinute {
		t.Fatalf("bundled field not overwritten: %d", cfg.MaxRequestsPerMinute)
	}
	if !cfg.IsFreeTierAccount {
		t.Fatal("non-bundled field should be preserved")
	}
}

func TestActivePresetDirtyDetection(t *testing.T) {
	cfg := PresetBalanced.Apply(RateLimitConfig{})
	if got := ActivePreset(cfg); got != "Balanced" {
		t.Fatalf("expected Balanced, got %q", got)
	}

	// Editing any bundled field reverts the effective label to Custom even
	// though the stored label still says Balanced.
	cfg.DailyLimitUSD = 12.5
	if got := ActivePreset(cfg); got != PresetCustom {
		t.Fatalf("expected Custom after edit, got %q", got)
	}
}

func TestActivePresetRecognizesFieldsOverLabel(t *testing.T) {
	// A config carrying a stale label but matching Generous field-for-field
	// reports Generous.
	cfg := PresetGenerous.Apply(RateLimitConfig{})
	cfg.Preset = "Balanced"
	if got := ActivePreset(cfg); got != "Generous" {
		t.Fatalf("expected Generous, got %q", got)
	}
}

func TestPresetByName(t *testing.T) {
	if _, ok := PresetByName("Strict"); !ok {
		t.Fatal("Strict should be a known preset")
	}
	if _, ok := PresetByName("Custom"); ok {
		t.Fatal("Custom is not a selectable preset")
	}
}

func TestDefaultConfigThresholdsAreIndependent(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AI.ConfidenceThreshold != 0.70 || cfg.AI.AutoApplyThreshold != 0.70 {
		t.Fatalf("unexpected threshold defaults: %+v", cfg.AI)
	}
	// Both default to the same value but must remain separately settable.
	cfg.AI.AutoApplyThreshold = 0.9
	if cfg.AI.ConfidenceThreshold == cfg.AI.AutoApplyThreshold {
		t.Fatal("thresholds must be independent fields")
	}
}
