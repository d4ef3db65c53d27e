package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/petasbytes/converse-router/conversation"
	"github.com/petasbytes/converse-router/internal/config"
	"github.com/petasbytes/converse-router/internal/gateway"
	"github.com/petasbytes/converse-router/internal/prompt"
	"github.com/petasbytes/converse-router/internal/runner"
)

type options struct {
	configPath string
	queryFile  string
	transcript bool
	verbose    bool
	query      string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("router", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.configPath, "config", os.Getenv("ROUTER_CONFIG"), "path to router.yaml (optional)")
	fs.StringVar(&o.queryFile, "query-file", "", "read the query from a file under the prompt root")
	fs.BoolVar(&o.transcript, "transcript", false, "print the exchange as JSON after the answer")
	fs.BoolVar(&o.verbose, "v", false, "log routing decisions to stderr")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: router [flags] [query...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if o.query != "" && o.queryFile != "" {
		return nil, errors.New("give either a query or --query-file, not both")
	}
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	logger := log.New(io.Discard, "", 0)
	if opts.verbose {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	loader, err := prompt.NewLoader(cfg.PromptRoot)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	query, err := readQuery(opts, loader, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	// Ctrl-C / SIGTERM cancel the in-flight call.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	r, err := buildRouter(ctx, cfg, loader, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	res, err := r.Run(ctx, query)
	if err != nil {
		fmt.Fprintln(stderr, diagnose(err))
		return 1
	}
	fmt.Fprintln(stdout, res.Text)
	logger.Printf("[router] calls=%d tool=%q tokens=%d", res.Calls, res.ToolUsed, res.Usage.TotalTokens)

	if opts.transcript {
		if err := conversation.WriteTranscript(stdout, conversation.Transcript(res.Conversation)); err != nil {
			fmt.Fprintf(stderr, "warning: transcript: %v\n", err)
		}
	}
	return 0
}

// readQuery takes the query from args, --query-file, or the first stdin line.
func readQuery(o *options, loader *prompt.Loader, stdin io.Reader) (string, error) {
	if o.query != "" {
		return o.query, nil
	}
	if o.queryFile != "" {
		return loader.Load(o.queryFile)
	}
	sc := bufio.NewScanner(stdin)
	if sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			return q, nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("stdin read error: %w", err)
	}
	return "", errors.New("no query given")
}

// diagnose renders a run failure as one line for stderr.
func diagnose(err error) string {
	var (
		blocked   *gateway.GuardrailBlockedError
		unhandled *runner.UnhandledStopReasonError
		transport *gateway.TransportError
	)
	switch {
	case errors.As(err, &blocked):
		return fmt.Sprintf("Guardrails blocked this action: %s", blocked.Assessments)
	case errors.As(err, &unhandled):
		return fmt.Sprintf("error: model stopped with %q after %d call(s)", unhandled.Response.StopReason, unhandled.Round)
	case errors.Is(err, runner.ErrUnsupportedToolUse):
		return fmt.Sprintf("error: %v", err)
	case errors.As(err, &transport):
		return fmt.Sprintf("error: remote call failed: %v", err)
	default:
		return fmt.Sprintf("error: %v", err)
	}
}
