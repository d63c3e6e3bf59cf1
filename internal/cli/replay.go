package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/spf13/cobra"

	"github.com/ObiAU/airwatch/internal/logging"
	"github.com/ObiAU/airwatch/internal/monitor"
	"github.com/ObiAU/airwatch/internal/notify"
	"github.com/ObiAU/airwatch/internal/sources"
	"github.com/ObiAU/airwatch/internal/storage"
)

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var (
		stateFile   string
		journalPath string
	)

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Feed recorded messages through the pipeline",
		Long: `Replays a JSONL file of messages (text, source_id, message_id,
received_at, permalink) through admission, classification and the alert
state machine. Notifications are logged instead of sent. Unless --state
is given the alert state starts empty in a temporary file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, nil)
			if err != nil {
				return err
			}
			ctx := logging.With(cmd.Context(), logger)

			if err := cfg.Validate(false); err != nil {
				return err
			}

			if stateFile == "" {
				dir, err := os.MkdirTemp("", "airwatch-replay-")
				if err != nil {
					return goerr.Wrap(err, "failed to create temp dir")
				}
				defer os.RemoveAll(dir)
				stateFile = filepath.Join(dir, "state.json")
			}

			clock := monitor.NewMessageClock(time.Now())
			notifier := notify.NewLogNotifier()
			p, err := buildPipeline(ctx, cfg, storage.NewStateFile(stateFile), notifier, clock.Now)
			if err != nil {
				return err
			}

			deps := monitor.Deps{
				Source:     sources.NewJSONLSource(args[0]),
				Tables:     p.tables,
				Gate:       p.gate,
				Classifier: p.classifier,
				Machine:    p.machine,
				Dedupe:     p.dedupe,
				Clock:      clock,
			}
			if journalPath != "" {
				journal, err := storage.OpenJournal(journalPath)
				if err != nil {
					return err
				}
				defer journal.Close()
				deps.Journal = journal
			}

			mon := monitor.New(deps, monitor.Options{})
			if err := mon.Run(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"status":        mon.Snapshot(),
				"notifications": notifier.Sent(),
			})
		},
	}
	cmd.Flags().StringVar(&stateFile, "state", "", "state file to use instead of a temporary one")
	cmd.Flags().StringVar(&journalPath, "journal", "", "record decisions to this SQLite journal")
	return cmd
}
