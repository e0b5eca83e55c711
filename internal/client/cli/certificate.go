package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/common"
)

var certFile string

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a certificate from a JSON payload (file or stdin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readCertificateData()
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.certs.Create(ctx, *data)
		if err != nil {
			return err
		}

		fmt.Printf("Created %s (pending sync)\n", rec.ID)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Replace a certificate's payload from JSON (file or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readCertificateData()
		if err != nil {
			return err
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.certs.Persist(ctx, args[0], *data); err != nil {
			return err
		}

		fmt.Printf("Updated %s (pending sync)\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a certificate as JSON, refreshing from the server when reachable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.certs.Load(ctx, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec.Data)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored certificates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		recs, err := a.certs.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREFERENCE\tSTATUS\tSYNC\tUPDATED")
		for _, rec := range recs {
			sync := "synced"
			if rec.Dirty {
				sync = "pending"
			}
			if common.IsTempID(rec.ID) {
				sync = "local-only"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.Data.Reference, rec.Data.Status, sync,
				rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func readCertificateData() (*models.CertificateData, error) {
	var raw []byte
	var err error
	if certFile != "" {
		raw, err = os.ReadFile(certFile)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read certificate payload: %w", err)
	}
	data, err := models.DecodeData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse certificate payload: %w", err)
	}
	return data, nil
}

func init() {
	newCmd.Flags().StringVarP(&certFile, "file", "f", "", "JSON file with the certificate payload (default stdin)")
	editCmd.Flags().StringVarP(&certFile, "file", "f", "", "JSON file with the certificate payload (default stdin)")

	rootCmd.AddCommand(newCmd, editCmd, showCmd, listCmd)
}
