package config

// Preset is a named bundle of rate-limit window ceilings and cost ceilings.
// Applying a preset overwrites all bundled fields atomically; any later edit
// to a bundled field makes ActivePreset report "Custom".
type Preset struct {
	Name                 string
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	MaxRequestsPerDay    int
	MaxTokensPerRequest  int
	DailyLimitUSD        float64
	MonthlyLimitUSD      float64
}

// PresetCustom is the label reported when no preset matches the active fields.
const PresetCustom = "Custom"

var (
	PresetStrict = Preset{
		Name:                 "Strict",
		MaxRequestsPerMinute: 5,
		MaxRequestsPerHour:   60,
		MaxRequestsPerDay:    500,
		MaxTokensPerRequest:  4096,
		DailyLimitUSD:        5,
		MonthlyLimitUSD:      50,
	}
	PresetBalanced = Preset{
		Name:                 "Balanced",
		MaxRequestsPerMinute: 20,
		MaxRequestsPerHour:   0, // hourly cap disabled
		MaxRequestsPerDay:    2000,
		MaxTokensPerRequest:  8192,
		DailyLimitUSD:        25,
		MonthlyLimitUSD:      300,
	}
	PresetGenerous = Preset{
		Name:                 "Generous",
		MaxRequestsPerMinute: 60,
		MaxRequestsPerHour:   0,
		MaxRequestsPerDay:    10000,
		MaxTokensPerRequest:  16384,
		DailyLimitUSD:        100,
		MonthlyLimitUSD:      1500,
	}
)

// Presets lists the built-in presets in display order.
var Presets = []Preset{PresetStrict, PresetBalanced, PresetGenerous}

// PresetByName looks up a built-in preset. The second return is false for
// unknown names (including "Custom").
func PresetByName(name string) (Preset, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Apply overwrites the bundled fields of cfg and sets the preset label.
// Non-bundled fields (IsFreeTierAccount) are preserved.
func (p Preset) Apply(cfg RateLimitConfig) RateLimitConfig {
	cfg.Preset = p.Name
	cfg.MaxRequestsPerMinute = p.MaxRequestsPerMinute
	cfg.MaxRequestsPerHour = p.MaxRequestsPerHour
	cfg.MaxRequestsPerDay = p.MaxRequestsPerDay
	cfg.MaxTokensPerRequest = p.MaxTokensPerRequest
	cfg.DailyLimitUSD = p.DailyLimitUSD
	cfg.MonthlyLimitUSD = p.MonthlyLimitUSD
	return cfg
}

// matches reports whether all bundled fields of cfg equal the preset's.
func (p Preset) matches(cfg RateLimitConfig) bool {
	return cfg.MaxRequestsPerMinute == p.MaxRequestsPerMinute &&
		cfg.MaxRequestsPerHour == p.MaxRequestsPerHour &&
		cfg.MaxRequestsPerDay == p.MaxRequestsPerDay &&
		cfg.MaxTokensPerRequest == p.MaxTokensPerRequest &&
		cfg.DailyLimitUSD == p.DailyLimitUSD &&
		cfg.MonthlyLimitUSD == p.MonthlyLimitUSD
}

// ActivePreset derives the effective preset label by comparing the bundled
// field set against the last-applied preset. A cfg whose fields diverge from
// its recorded preset reports "Custom"; the label itself is never trusted
// over the field values.
func ActivePreset(cfg RateLimitConfig) string {
	if p, ok := PresetByName(cfg.Preset); ok && p.matches(cfg) {
		return p.Name
	}
	for _, p := range Presets {
		if p.matches(cfg) {
			return p.Name
		}
	}
	return PresetCustom
}
