package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maastricht-university/talktime/orchestrator"
	"github.com/maastricht-university/talktime/server"
)

func newProcessCmd(app *appState) *cobra.Command {
	var keep bool

	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Process one local recording and print the report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.ready(); err != nil {
				return err
			}
			in := args[0]
			if _, err := os.Stat(in); err != nil {
				return fmt.Errorf("audio file: %w", err)
			}
			if keep {
				app.cfg.Paths.KeepArtifacts = true
			}

			ws, err := orchestrator.NewWorkspace(app.cfg.Paths.Uploads, "")
			if err != nil {
				return err
			}
			if !app.cfg.Paths.KeepArtifacts {
				defer ws.Remove()
			} else {
				app.log.WithField("dir", ws.Dir).Info("artifacts kept")
			}

			rep, err := app.newProcessor(app.cfg, app.log).Process(cmd.Context(), ws, in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(app.out)
			enc.SetIndent("", "  ")
			return enc.Encode(server.NewResponse(rep))
		},
	}

	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the workspace (transcript, chunks, report.json)")
	return cmd
}
