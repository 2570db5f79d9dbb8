package client

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <paper_id>",
		Short: "Delete a paper and its chunks",
		Long:  "Deletes a paper by arXiv ID along with its chunks and any queued embedding jobs.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDelete(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runDelete(cmd *cobra.Command, paperID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if _, err := api.Delete(fmt.Sprintf("/papers/%s", paperID)); err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	if outputJSON {
		fmt.Printf("{\"id\":%q,\"status\":\"deleted\"}\n", paperID)
	} else {
		fmt.Printf("Deleted paper: %s\n", paperID)
	}

	return nil
}
