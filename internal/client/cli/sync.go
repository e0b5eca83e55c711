package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/certsync/certsync/internal/client/gateway"
	"github.com/certsync/certsync/internal/client/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending local changes to the server once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.coord.SyncOnce(ctx); err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				return fmt.Errorf("server unreachable, changes remain queued locally")
			}
			return err
		}

		st := a.coord.CurrentStatus()
		if st.Pending > 0 {
			fmt.Printf("Sync finished, %d record(s) still pending", st.Pending)
			if st.LastError != "" {
				fmt.Printf(" (last rejection: %s)", st.LastError)
			}
			fmt.Println()
			return nil
		}
		fmt.Println("All changes synced.")
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run background sync until interrupted, printing status transitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		unsubscribe := a.coord.Subscribe(func(s syncer.Status) {
			line := fmt.Sprintf("[%s] pending=%d", s.State, s.Pending)
			if s.LastError != "" {
				line += " error=" + s.LastError
			}
			if !s.LastSyncedAt.IsZero() {
				line += " last_synced=" + s.LastSyncedAt.Format("15:04:05")
			}
			fmt.Println(line)
		})
		defer unsubscribe()

		a.coord.Start(ctx)
		go a.coord.WatchOnline(ctx, a.cfg.OnlineCheckInterval)

		<-ctx.Done()
		a.coord.Stop()
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local sync state and server reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		dirty, err := a.repos.Certificates.ListDirty(ctx)
		if err != nil {
			return err
		}
		pendingAtts, err := a.repos.Attachments.CertificatesWithPending(ctx)
		if err != nil {
			return err
		}

		reach := "reachable"
		if err := a.auth.Ping(ctx); err != nil {
			reach = "unreachable"
		}

		fmt.Printf("Server:              %s (%s)\n", a.cfg.ServerURL, reach)
		fmt.Printf("Pending records:     %d\n", len(dirty))
		fmt.Printf("Pending attachments: %d certificate(s)\n", len(pendingAtts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, watchCmd, statusCmd)
}
