package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deskwise/deskwise/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ deskwise Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and usage status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 deskwise Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, serr := os.Stat(path); serr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found, using defaults")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config error: %v\n", err)
			os.Exit(1)
		}
		if cfg.AI.APIKey != "" {
			fmt.Println("API Key: ✓ Found")
		} else {
			fmt.Println("API Key: ✗ Not found")
		}
		fmt.Printf("Model:   %s\n", cfg.AI.Model)
		fmt.Printf("Preset:  %s\n", config.ActivePreset(cfg.RateLimit))

		a, err := buildApp()
		if err != nil {
			fmt.Printf("Store unavailable: %v\n", err)
			return
		}
		defer a.Close()

		snap, err := a.gov.Usage()
		if err != nil {
			fmt.Printf("Usage unavailable: %v\n", err)
			return
		}
		fmt.Println("\nInference usage")
		fmt.Printf("  Minute: %d", snap.MinuteUsed)
		if snap.Config.MaxRequestsPerMinute > 0 {
			fmt.Printf("/%d", snap.Config.MaxRequestsPerMinute)
		}
		fmt.Println()
		fmt.Printf("  Day:    %d", snap.DayUsed)
		if snap.Config.MaxRequestsPerDay > 0 {
			fmt.Printf("/%d", snap.Config.MaxRequestsPerDay)
		}
		fmt.Println()
		fmt.Printf("  Spend:  $%.4f today, $%.4f this month\n", snap.DaySpend, snap.MonthSpend)

		if counts, err := a.store.LearningCounts(); err == nil {
			fmt.Println("\nLearning queue")
			for _, status := range []string{"pending", "processing", "completed", "failed"} {
				fmt.Printf("  %-11s %d\n", status+":", counts[status])
			}
		}
		if n, err := a.store.FAQCount(); err == nil {
			fmt.Printf("\nFAQ cache entries: %d\n", n)
		}
	},
}
