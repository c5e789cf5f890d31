package main

import (
	"mime"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/model"
)

var (
	filesCompany  string
	filesPath     string
	filesDisk     string
	filesName     string
	filesPublicID string
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage uploaded file records",
}

var filesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a stored file so it can be imported",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scope, err := model.NewScope(filesCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "import")
		if err != nil {
			return err
		}
		defer env.Close()

		name := filesName
		if name == "" {
			name = filepath.Base(filesPath)
		}
		saved, err := env.Fleet.RegisterFile(ctx, model.FileMeta{
			PublicID:         filesPublicID,
			CompanyUUID:      scope.CompanyUUID,
			Path:             filesPath,
			Disk:             filesDisk,
			OriginalFilename: name,
			ContentType:      mime.TypeByExtension(filepath.Ext(filesPath)),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), saved)
	},
}

func init() {
	addCompanyFlag(filesAddCmd, &filesCompany)
	filesAddCmd.Flags().StringVar(&filesPath, "path", "", "path of the file on its disk (required)")
	filesAddCmd.Flags().StringVar(&filesDisk, "disk", "", "disk the file is stored on")
	filesAddCmd.Flags().StringVar(&filesName, "name", "", "original file name (default base of --path)")
	filesAddCmd.Flags().StringVar(&filesPublicID, "public-id", "", "public id to reference the file by")
	_ = filesAddCmd.MarkFlagRequired("path")
	filesCmd.AddCommand(filesAddCmd)
	rootCmd.AddCommand(filesCmd)
}
