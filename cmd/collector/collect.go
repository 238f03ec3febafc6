package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCollectCmd(root *rootFlags) *cobra.Command {
	var useMemory bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle now and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return fail(nil, "load configuration", err)
			}

			a, err := newApp(cmd.Context(), cfg, logger, appOptions{useMemory: useMemory})
			if err != nil {
				return fail(logger, "initialize collector", err)
			}
			defer a.cleanup()

			collectedAt := time.Now().UTC().Truncate(time.Second)
			result, err := a.orchestrator.Run(cmd.Context(), collectedAt)
			if err != nil {
				return err
			}

			logger.WithFields(log.Fields{
				"cycle_id": result.CycleID,
				"inserted": result.Batch.Inserted,
				"ignored":  result.Batch.Ignored,
				"derived":  len(result.Derived.Records),
			}).Info("collection finished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL (dry run)")
	return cmd
}
