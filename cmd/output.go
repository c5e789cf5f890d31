package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fleetops/fleetops/internal/model"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

// addCompanyFlag registers the --company flag every scoped command needs.
func addCompanyFlag(cmd *cobra.Command, dst *string) {
	cmd.Flags().StringVar(dst, "company", "", "company UUID the command is scoped to (required)")
	_ = cmd.MarkFlagRequired("company")
}

func kindArg(args []string) (model.EntityKind, error) {
	if len(args) != 1 {
		return "", eris.New("expected one of: places, vehicles")
	}
	return model.ParseEntityKind(args[0])
}
