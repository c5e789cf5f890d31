package main

import (
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/model"
)

var vehiclesCompany string

var vehiclesCmd = &cobra.Command{
	Use:   "vehicles",
	Short: "Vehicle lookups",
}

var vehicleStatusesCmd = &cobra.Command{
	Use:   "statuses",
	Short: "List the distinct vehicle statuses in use",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		scope, err := model.NewScope(vehiclesCompany)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, "statuses")
		if err != nil {
			return err
		}
		defer env.Close()

		statuses, err := env.Fleet.VehicleStatuses(ctx, scope)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), statuses)
	},
}

func init() {
	addCompanyFlag(vehicleStatusesCmd, &vehiclesCompany)
	vehiclesCmd.AddCommand(vehicleStatusesCmd)
	rootCmd.AddCommand(vehiclesCmd)
}
