package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/importer"
	"github.com/fleetops/fleetops/internal/model"
)

var (
	importCompany string
	importDisk    string
	importFiles   []string
)

var importCmd = &cobra.Command{
	Use:   "import <places|vehicles>",
	Short: "Import uploaded spreadsheets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := kindArg(args)
		if err != nil {
			return err
		}
		scope, err := model.NewScope(importCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Fleet.Import(ctx, scope, importer.Request{
			Files: importFiles,
			Disk:  importDisk,
			Kind:  kind,
		})
		if err != nil {
			return eris.Wrap(err, "import")
		}

		zap.L().Info("import complete",
			zap.String("kind", string(kind)),
			zap.Int("count", summary.Count),
		)
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	addCompanyFlag(importCmd, &importCompany)
	importCmd.Flags().StringVar(&importDisk, "disk", "", "disk the files are stored on (default from config)")
	importCmd.Flags().StringSliceVar(&importFiles, "file", nil, "file uuid or public id to import (repeatable, required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
