package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mint-desk/pkg/reconcile"
	"mint-desk/pkg/report"
	"mint-desk/pkg/rules"
	"mint-desk/pkg/store"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the reconciled participant table once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		roster, err := rules.Load(cfg.RulesFile)
		if err != nil {
			return err
		}
		collection, err := openCollection(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer collection.Close()

		entries, err := collection.ReadAll(ctx, cfg.CollectionPath)
		if err != nil {
			return fmt.Errorf("read submissions: %w", err)
		}
		view := reconcile.Reconcile(roster, store.Records(entries), time.Now())
		logger.Debug("Report built", zap.Int("people", len(view.Rows)), zap.Int("submissions", view.Submissions))

		if reportJSON {
			return report.JSON(cmd.OutOrStdout(), view)
		}
		return report.Table(cmd.OutOrStdout(), view)
	},
}
