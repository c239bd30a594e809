package main

import (
	"fmt"

	"github.com/sistedes/dspace-migrator/internal/journal"
	"github.com/spf13/cobra"
)

var (
	journalRun     int64
	journalOutcome string
)

func init() {
	journalCmd.PersistentFlags().Int64Var(&journalRun, "run", 0, "Run to inspect (default: the last one)")
	journalEntitiesCmd.Flags().StringVar(&journalOutcome, "outcome", "", "Only entities with this outcome (found, created, planned, skipped)")
	journalCmd.AddCommand(journalReviewCmd)
	journalCmd.AddCommand(journalEntitiesCmd)
	rootCmd.AddCommand(journalCmd)
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the run journal",
}

var journalReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List author decisions that need review",
	Long: `List the author decisions of a run that assigned nobody or came from a
weak match, in the order they were taken.

Examples:
  sdmigrate journal review
  sdmigrate journal review --run 12 --human`,
	Args: cobra.NoArgs,
	RunE: runJournalReview,
}

var journalEntitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List the entities a run found, created or skipped",
	Args:  cobra.NoArgs,
	RunE:  runJournalEntities,
}

// openJournal opens the configured journal and resolves the run to show.
func openJournal(cmd *cobra.Command) (*journal.Journal, int64, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, 0, err
	}
	j, err := journal.Open(cfg.Journal())
	if err != nil {
		return nil, 0, err
	}
	if journalRun != 0 {
		return j, journalRun, nil
	}
	run, err := j.LastRun()
	if err != nil {
		j.Close()
		return nil, 0, err
	}
	return j, run.ID, nil
}

func runJournalReview(cmd *cobra.Command, args []string) error {
	j, runID, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	decisions, err := j.Review(runID)
	if err != nil {
		return err
	}
	if !humanOutput {
		return outputJSON(decisions)
	}
	for _, d := range decisions {
		outputHuman("%-28s %-10s %.3f  %s", d.ItemIdentifier, d.Tier, d.Distance, d.Mention)
		if d.Email != "" {
			outputHuman(" <%s>", d.Email)
		}
		if d.PersonID != "" {
			outputHuman(" -> %s", d.PersonID)
		}
		fmt.Println()
	}
	outputHuman("%d decisions to review in run %d\n", len(decisions), runID)
	return nil
}

func runJournalEntities(cmd *cobra.Command, args []string) error {
	j, runID, err := openJournal(cmd)
	if err != nil {
		return err
	}
	defer j.Close()

	entities, err := j.Entities(runID, journalOutcome)
	if err != nil {
		return err
	}
	if !humanOutput {
		return outputJSON(entities)
	}
	for _, e := range entities {
		outputHuman("%-8s %-10s %-36s %s\n", e.Outcome, e.Kind, e.Identifier, e.Title)
	}
	outputHuman("%d entities in run %d\n", len(entities), runID)
	return nil
}
