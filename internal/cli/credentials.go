package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onboardly/onboardly/internal/store"
)

// credentialsCmd shows the stored OAuth credentials
var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Show stored OAuth credentials",
	Long: `Show every OAuth credential currently stored, one row per owning
agency, with tokens masked. Useful for checking whether the refresh
scheduler is keeping tokens fresh.`,
	RunE: runCredentials,
}

func init() {
	RootCmd.AddCommand(credentialsCmd)
}

func runCredentials(cmd *cobra.Command, args []string) error {
	sqliteStore, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer sqliteStore.Close()

	creds := sqliteStore.ListCredentials()
	if len(creds) == 0 {
		fmt.Println("No credentials stored. Run the OAuth authorization flow first.")
		return nil
	}

	if globalFlags.JSON {
		type row struct {
			OwnerID   string    `json:"owner_id"`
			Token     string    `json:"access_token"`
			ExpiresAt time.Time `json:"expires_at"`
			UpdatedAt time.Time `json:"updated_at"`
		}
		rows := make([]row, 0, len(creds))
		for _, c := range creds {
			rows = append(rows, row{
				OwnerID:   c.OwnerID,
				Token:     maskToken(c.AccessToken),
				ExpiresAt: c.ExpiresAt().UTC(),
				UpdatedAt: c.UpdatedAt.UTC(),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tACCESS TOKEN\tEXPIRES\tUPDATED")
	for _, c := range creds {
		expires := time.Until(c.ExpiresAt()).Round(time.Second)
		state := expires.String()
		if expires <= 0 {
			state = "expired"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.OwnerID, maskToken(c.AccessToken), state, c.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
