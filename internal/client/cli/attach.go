package cli

import (
	"fmt"
	"mime"
	"path/filepath"

	"github.com/spf13/cobra"
)

var attachContentType string

var attachCmd = &cobra.Command{
	Use:   "attach <certificate-id> <file>",
	Short: "Queue a file (photo, scan) for upload alongside a certificate",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		contentType := attachContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(args[1]))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		att, err := a.certs.Attach(ctx, args[0], args[1], contentType)
		if err != nil {
			return err
		}

		fmt.Printf("Queued attachment %s (pending upload)\n", att.ID)
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachContentType, "type", "", "content type (default: derived from extension)")

	rootCmd.AddCommand(attachCmd)
}
