package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/samvad-hq/turnstile-verifier/internal/app"
	"github.com/samvad-hq/turnstile-verifier/internal/config"
	"github.com/samvad-hq/turnstile-verifier/internal/logger"
	"github.com/samvad-hq/turnstile-verifier/pkg/turnstile"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "turnstile-verify: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "turnstile-verify",
		Short: "Verify Cloudflare Turnstile tokens",
		Long: `turnstile-verify checks Turnstile widget tokens against the siteverify API.

The default secret is read from TURNSTILE_SECRET_KEY; several sites can be
declared in a YAML or JSON file referenced by SITES_FILE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	root.AddCommand(newVerifyCmd(&cfgFile))
	root.AddCommand(newCodesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// ── verify ───────────────────────────────────────────────────────────────────

type verifyFlags struct {
	site           string
	remoteIP       string
	idempotencyKey bool
}

func newVerifyCmd(cfgFile *string) *cobra.Command {
	var flags verifyFlags
	cmd := &cobra.Command{
		Use:   "verify <token|->",
		Short: "Verify a token; pass - to read it from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			return runVerify(cmd.Context(), *cfgFile, app.Request{
				Site:           flags.site,
				Token:          token,
				RemoteIP:       flags.remoteIP,
				IdempotencyKey: flags.idempotencyKey,
			}, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flags.site, "site", "", "site id from the sites file")
	cmd.Flags().StringVar(&flags.remoteIP, "remote-ip", "", "visitor IP address")
	cmd.Flags().BoolVar(&flags.idempotencyKey, "idempotency-key", false, "attach a random idempotency key")
	return cmd
}

func readToken(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token from stdin: %w", err)
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", errors.New("empty token on stdin")
	}
	return token, nil
}

// verifyOutput is printed to stdout for every verify call.
type verifyOutput struct {
	Site       string                        `json:"site,omitempty"`
	Success    bool                          `json:"success"`
	Response   *turnstile.SiteVerifyResponse `json:"response,omitempty"`
	ErrorCodes []turnstile.ErrorCode         `json:"error_codes,omitempty"`
	Error      string                        `json:"error,omitempty"`
}

func runVerify(ctx context.Context, cfgFile string, req app.Request, stdout io.Writer) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("turnstile-verify starting", "config", cfg)

	verifier, err := app.NewVerifier(cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize verifier", "error", err)
		return err
	}

	outcome, verr := verifier.Verify(ctx, req)
	out := verifyOutput{Site: outcome.Site, Success: verr == nil && outcome.Response.Success}
	if outcome.Site != "" {
		resp := outcome.Response
		out.Response = &resp
	}
	if verr != nil {
		out.Error = verr.Error()
		var codes *turnstile.VerificationError
		if errors.As(verr, &codes) {
			out.ErrorCodes = codes.Codes
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if verr != nil {
		return verr
	}
	if !outcome.Response.Success {
		return errors.New("siteverify reported success=false")
	}
	return nil
}

// ── codes ────────────────────────────────────────────────────────────────────

func newCodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List siteverify error codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCodes(cmd.OutOrStdout())
		},
	}
}

func printCodes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tRETRYABLE\tDESCRIPTION")
	for _, c := range turnstile.ErrorCodes() {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", c, c.Retryable(), c.Description())
	}
	return tw.Flush()
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version and User-Agent",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), turnstile.Version)
			fmt.Fprintln(cmd.OutOrStdout(), turnstile.UserAgent)
		},
	}
}
