package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run one knowledge-learning pass and exit",
	Run:   runLearn,
}

func runLearn(cmd *cobra.Command, args []string) {
	printHeader("📚 deskwise learn")

	a, err := buildApp()
	if err != nil {
		fmt.Printf("Startup error: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	result, err := a.pipeline.RunLearningPass(context.Background())
	if err != nil {
		fmt.Printf("Learning pass error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Patterns found:     %d\n", result.PatternsFound)
	fmt.Printf("Articles created:   %d\n", result.ArticlesCreated)
	fmt.Printf("Articles published: %d\n", result.ArticlesPublished)

	pending, err := a.store.ListPendingApproval()
	if err == nil && len(pending) > 0 {
		fmt.Printf("\nAwaiting approval (%d):\n", len(pending))
		for _, art := range pending {
			fmt.Printf("  #%d %s (from ticket %d)\n", art.ID, art.Title, art.SourceTicketID)
		}
	}
}
