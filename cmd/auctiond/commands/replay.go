package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wallymathieu/auctions-site/config"
	"github.com/wallymathieu/auctions-site/internal/state"
)

// ReplayCommand constructs a command that replays the recorded command
// history and prints the resulting projections as JSON, one per line.
func ReplayCommand(conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay the command log and print the resulting auction projections",
		RunE: func(cmd *cobra.Command, args []string) error {
			commandLog, err := openEventLog(conf)
			if err != nil {
				return err
			}
			defer commandLog.Close()

			entries, err := commandLog.ReadAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading command history: %w", err)
			}

			repo := state.NewMemRepository()
			for _, entry := range entries {
				if _, err := state.Execute(repo, entry.Command); err != nil {
					return fmt.Errorf("replaying entry %d: %w", entry.Seq, err)
				}
			}

			now := time.Now()
			out := cmd.OutOrStdout()
			for _, st := range repo.Auctions() {
				projection := map[string]interface{}{
					"auction":  st.Auction,
					"bids":     st.ActiveBids(),
					"expiry":   st.Expiry,
					"hasEnded": st.HasEnded(now),
				}
				if price, winner, ok := st.Winner(now); ok {
					projection["winner"] = winner
					projection["winnerPrice"] = price
				}
				line, err := json.Marshal(projection)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(line))
			}
			return nil
		},
	}
}
