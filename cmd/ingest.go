package cmd

import (
	"captains-log/config"
	"captains-log/pkg/capture"
	"captains-log/repository"
	server2 "captains-log/server"
	"captains-log/service"
	"encoding/json"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errNothingSaved = errors.New("recording produced no star log")

// ingest replays an audio file through a recording session and saves the
// annotated entry.
func ingest(config *config.Config) *cobra.Command {
	var pace = capture.ChunkInterval

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "record a star log from an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, closer := server2.SetupLogger(config)
			defer closer.Close()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = base
			} else {
				ctx = zerolog.Ctx(base).WithContext(ctx)
			}

			repo, err := repository.NewRepo(config.DB, false)
			if err != nil {
				return err
			}
			pipeline, _ := server2.NewPipeline(config, repo)

			device := capture.NewFileDevice(args[0], capture.WithPace(pace))
			session := service.NewSession(ctx, uuid.NewString(), device, pipeline, service.SessionOptions{})
			defer session.Close()

			if err := session.Start(ctx); err != nil {
				return err
			}
			select {
			case <-device.Done():
			case <-ctx.Done():
				return ctx.Err()
			}

			log, err := session.Stop(ctx)
			if err != nil {
				return err
			}
			if log == nil {
				return errNothingSaved
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(log)
		},
	}
	cmd.Flags().DurationVar(&pace, "pace", pace, "delay between replayed chunks, 0 replays as fast as possible")
	return cmd
}
