package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/model"
)

var (
	deleteCompany string
	deleteIDs     []string
)

var deleteCmd = &cobra.Command{
	Use:   "delete <places|vehicles>",
	Short: "Bulk delete records by uuid or public id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := kindArg(args)
		if err != nil {
			return err
		}
		scope, err := model.NewScope(deleteCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "delete")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Fleet.BulkDelete(ctx, scope, kind, deleteIDs)
		if err != nil {
			return eris.Wrap(err, "bulk delete")
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	addCompanyFlag(deleteCmd, &deleteCompany)
	deleteCmd.Flags().StringSliceVar(&deleteIDs, "id", nil, "uuid or public id to delete (repeatable)")
	rootCmd.AddCommand(deleteCmd)
}
