package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/model"
)

var (
	exportCompany string
	exportFormat  string
	exportIDs     []string
	exportDir     string
)

var exportCmd = &cobra.Command{
	Use:   "export <places|vehicles>",
	Short: "Export records to xlsx, csv or tsv",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := kindArg(args)
		if err != nil {
			return err
		}
		scope, err := model.NewScope(exportCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		file, err := env.Fleet.Export(ctx, scope, kind, exportFormat, exportIDs)
		if err != nil {
			return eris.Wrap(err, "export")
		}

		path := filepath.Join(exportDir, file.Name)
		if err := os.WriteFile(path, file.Data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}

		zap.L().Info("export written",
			zap.String("path", path),
			zap.Int("bytes", len(file.Data)),
		)
		return nil
	},
}

func init() {
	addCompanyFlag(exportCmd, &exportCompany)
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx, csv or tsv")
	exportCmd.Flags().StringSliceVar(&exportIDs, "select", nil, "uuid or public id to export (repeatable, default all)")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "directory the file is written to")
	rootCmd.AddCommand(exportCmd)
}
