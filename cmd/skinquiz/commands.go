package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baseplus/skinquiz/internal/api"
	"github.com/baseplus/skinquiz/internal/checkout"
	"github.com/baseplus/skinquiz/internal/config"
	"github.com/baseplus/skinquiz/internal/saga"
	"github.com/baseplus/skinquiz/internal/session"
	"github.com/baseplus/skinquiz/internal/storage"
)

func loadSnapshot(path string) (session.Snapshot, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("reading session: %w", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("parsing session %s: %w", path, err)
	}
	return snap, nil
}

// --- summary ---

var summaryCmd = &cobra.Command{
	Use:   "summary <session.json>",
	Short: "Show the cart label, total and variation of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot(args[0])
		if err != nil {
			return err
		}
		return runSummary(cmd.OutOrStdout(), snap)
	},
}

func runSummary(w io.Writer, snap session.Snapshot) error {
	sum, err := api.Summarize(snap)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, strings.ToUpper(sum.Label)), sum.Total)
	fmt.Fprintf(w, "  type:      %s\n", sum.Type)
	if sum.Variation != "" {
		fmt.Fprintf(w, "  variation: %s\n", sum.Variation)
	}
	return nil
}

// --- checkout ---

var checkoutCmd = &cobra.Command{
	Use:   "checkout <session.json>",
	Short: "Create the product, write the quiz records and open the checkout page",
	Long: `Run the add-to-cart checkout for a saved quiz session.

By default the saga runs in this process and opens the storefront checkout in
the system browser. With --remote the session is sent to a running
skinquiz serve instead.

Examples:
  skinquiz checkout ./session.json
  skinquiz checkout --no-open ./session.json
  skinquiz checkout --remote ./session.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noOpen, _ := cmd.Flags().GetBool("no-open")
		remote, _ := cmd.Flags().GetBool("remote")

		snap, err := loadSnapshot(args[0])
		if err != nil {
			return err
		}

		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			return runRemoteCheckout(cmd.Context(), client, snap, cmd.OutOrStdout())
		}
		return runLocalCheckout(cmd.Context(), snap, noOpen, cmd.OutOrStdout())
	},
}

func init() {
	checkoutCmd.Flags().Bool("no-open", false, "print the checkout URL instead of opening a browser")
	checkoutCmd.Flags().Bool("remote", false, "run the checkout on the configured server")
}

func runLocalCheckout(ctx context.Context, snap session.Snapshot, noOpen bool, w io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	var nav checkout.Navigator = checkout.BrowserNavigator{}
	if noOpen {
		nav = &checkout.Capture{}
	}

	printStep("Checking out %s cart", snap.Cart.Type())
	resp, _, err := api.Checkout(ctx, newCoordinator(cfg, nav, store), snap)
	if err != nil {
		return err
	}
	return reportCheckout(w, resp)
}

func runRemoteCheckout(ctx context.Context, client *apiClient, snap session.Snapshot, w io.Writer) error {
	resp, err := client.post(ctx, "/checkout", snap)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	// Saga outcomes carry a CheckoutResponse whatever the status; anything
	// else is an API error envelope.
	var result api.CheckoutResponse
	if json.Unmarshal(body, &result) != nil || result.Outcome == "" {
		return responseError(resp.StatusCode, body)
	}
	return reportCheckout(w, result)
}

func reportCheckout(w io.Writer, resp api.CheckoutResponse) error {
	switch resp.Outcome {
	case saga.OutcomeRedirecting:
		printSuccess("Checkout ready")
		fmt.Fprintln(w, resp.RedirectURL)
		return nil
	case saga.OutcomeBusy:
		return fmt.Errorf("a checkout for session %s is already in progress", resp.CorrelationID)
	}
	if resp.RedirectURL != "" {
		fmt.Fprintln(w, resp.RedirectURL)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s (code %d)", resp.Error.UIMessage, resp.Error.Code)
	}
	return fmt.Errorf("checkout failed")
}

// --- attempts ---

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Inspect the checkout attempt ledger",
}

var attemptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent checkout attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		corr, _ := cmd.Flags().GetString("session")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runAttemptsList(cmd.Context(), client, corr, limit, cmd.OutOrStdout())
	},
}

var attemptsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one checkout attempt with its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runAttemptsShow(cmd.Context(), client, args[0], cmd.OutOrStdout())
	},
}

func init() {
	attemptsListCmd.Flags().Int("limit", 20, "maximum number of attempts")
	attemptsListCmd.Flags().String("session", "", "only attempts for this correlation id")
	attemptsCmd.AddCommand(attemptsListCmd)
	attemptsCmd.AddCommand(attemptsShowCmd)
}

func runAttemptsList(ctx context.Context, client *apiClient, correlationID string, limit int, w io.Writer) error {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if correlationID != "" {
		q.Set("correlation_id", correlationID)
	}

	resp, err := client.get(ctx, "/attempts?"+q.Encode())
	if err != nil {
		return err
	}
	var attempts []storage.Attempt
	if err := decodeJSON(resp, &attempts); err != nil {
		return err
	}

	if len(attempts) == 0 {
		fmt.Fprintln(w, "No attempts.")
		return nil
	}
	for _, a := range attempts {
		outcome := colorize(outcomeColor(a.Outcome), a.Outcome)
		fmt.Fprintf(w, "%s  %s  %-11s  %s  %dms\n",
			a.ID, a.CreatedAt.Format("2006-01-02 15:04:05"), a.ProductType, outcome, a.DurationMs)
	}
	return nil
}

func runAttemptsShow(ctx context.Context, client *apiClient, id string, w io.Writer) error {
	resp, err := client.get(ctx, "/attempts/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	var a storage.Attempt
	if err := decodeJSON(resp, &a); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Attempt"), a.ID)
	fmt.Fprintf(w, "  session:  %s\n", a.CorrelationID)
	fmt.Fprintf(w, "  type:     %s\n", a.ProductType)
	fmt.Fprintf(w, "  outcome:  %s\n", a.Outcome)
	if a.CheckoutURL != "" {
		fmt.Fprintf(w, "  checkout: %s\n", a.CheckoutURL)
	}
	if a.ErrorCode != 0 || a.ErrorMessage != "" {
		fmt.Fprintf(w, "  error:    %d %s\n", a.ErrorCode, a.ErrorMessage)
	}
	for _, st := range a.Steps {
		mark := colorize(colorGreen, "ok")
		if !st.OK {
			mark = colorize(colorRed, "failed: "+st.Error)
		}
		fmt.Fprintf(w, "    %-14s %s\n", st.Name, mark)
	}
	return nil
}

// --- retries ---

var retriesCmd = &cobra.Command{
	Use:   "retries",
	Short: "List queued side-record retries",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		return runRetriesList(cmd.Context(), client, status, limit, cmd.OutOrStdout())
	},
}

func init() {
	retriesCmd.Flags().String("status", "", "pending, running, completed or failed")
	retriesCmd.Flags().Int("limit", 20, "maximum number of jobs")
}

func runRetriesList(ctx context.Context, client *apiClient, status string, limit int, w io.Writer) error {
	q := url.Values{}
	q.Set("limit", fmt.Sprint(limit))
	if status != "" {
		q.Set("status", status)
	}

	resp, err := client.get(ctx, "/retries?"+q.Encode())
	if err != nil {
		return err
	}
	var jobs []storage.RetryJob
	if err := decodeJSON(resp, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No retries queued.")
		return nil
	}
	for _, j := range jobs {
		st := j.Status
		switch st {
		case storage.RetryCompleted:
			st = colorize(colorGreen, st)
		case storage.RetryFailed:
			st = colorize(colorRed, st)
		default:
			st = colorize(colorYellow, st)
		}
		fmt.Fprintf(w, "%s  %-10s  %s  %s  %d/%d", j.ID, j.Type, j.CorrelationID, st, j.Attempts, j.MaxAttempts)
		if j.LastError != "" {
			fmt.Fprintf(w, "  %s", j.LastError)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			val := k.Value
			if k.Secret {
				val = colorize(colorYellow, val)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-20s %s  (%s)\n", k.Key, val, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
