// typingproofctl is the control CLI for the typing-proof core: it lets a
// host script drive a chain (init, record, export) and inspect or verify
// an exported proof file without embedding the core in another process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"

	"typingproof/internal/config"
	"typingproof/internal/core"
	"typingproof/internal/event"
	"typingproof/internal/signer"
	"typingproof/internal/store"
	"typingproof/internal/verify"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var (
	configPath  = flag.String("config", "", "path to config file")
	noColor     = flag.Bool("no-color", false, "disable colored output")
	showVersion = flag.Bool("version", false, "show version information")
	quiet       = flag.Bool("q", false, "suppress banner")
)

type colors struct {
	Reset, Bold, Dim, Red, Green, Yellow, Cyan string
}

var c colors

func initColors() {
	if *noColor || os.Getenv("NO_COLOR") != "" || !isTerminal() {
		c = colors{}
		return
	}
	c = colors{
		Reset: "\033[0m", Bold: "\033[1m", Dim: "\033[2m",
		Red: "\033[31m", Green: "\033[32m", Yellow: "\033[33m", Cyan: "\033[36m",
	}
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

const banner = `
%s  ┌┬┐┬ ┬┌─┐┬┌┐┌┌─┐┌─┐┬─┐┌─┐┌─┐┌─┐%s
%s   │ └┬┘├─┘│││││ ┬├─┘├┬┘│ ││ │├┤ %s
%s   ┴  ┴ ┴  ┴┘└┘└─┘┴  ┴└─└─┘└─┘└  %s
%s   sequential-work event chains%s

`

func printBanner() {
	fmt.Fprintf(os.Stderr, banner,
		c.Cyan+c.Bold, c.Reset,
		c.Cyan+c.Bold, c.Reset,
		c.Cyan+c.Bold, c.Reset,
		c.Dim, c.Reset,
	)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "%s%sERROR%s %s\n", c.Bold, c.Red, c.Reset, msg)
}

func usage() {
	fmt.Fprintf(os.Stderr, `%sUSAGE%s
    typingproofctl [options] <command> [arguments]

%sCOMMANDS%s
    init      <db> <fingerprint-hex>     Create a chain and persist chain metadata
    record    <db> <events.json>         Append a batch of events from a JSON file
    export    <db> <content-file> <out>  Close the chain and write an exported proof
    verify    <proof.json>               Verify an exported proof file (full chain check)
    stats     <db>                       Print recorded-event statistics
    version                              Show version information

%sOPTIONS%s
    -config <path>   Path to config file
    -no-color        Disable colored output
    -q               Suppress banner

`, c.Bold, c.Reset, c.Cyan, c.Reset, c.Cyan, c.Reset)
}

func main() {
	flag.Parse()
	initColors()

	if *showVersion {
		fmt.Printf("typingproofctl %s (%s) %s/%s\n", Version, Commit, runtime.GOOS, runtime.GOARCH)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		if !*quiet {
			printBanner()
		}
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	if !*quiet && cmd != "version" {
		printBanner()
	}

	var err error
	switch cmd {
	case "init":
		err = cmdInit(flag.Args()[1:])
	case "record":
		err = cmdRecord(flag.Args()[1:])
	case "export":
		err = cmdExport(flag.Args()[1:])
	case "verify":
		err = cmdVerify(flag.Args()[1:])
	case "stats":
		err = cmdStats(flag.Args()[1:])
	case "version":
		fmt.Printf("typingproofctl %s (%s)\n", Version, Commit)
	default:
		printError(fmt.Sprintf("unknown command: %s", cmd))
		usage()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}

func openStore(path string) (*store.Store, error) {
	return store.Open(path)
}

func cmdInit(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: typingproofctl init <db> <fingerprint-hex>")
	}
	st, err := openStore(args[0])
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ch := core.New(loadConfig(), core.WithStore(st))
	if err := ch.Initialize(args[1], nil); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("%sOK%s chain initialized, fingerprint=%s\n", c.Green, c.Reset, args[1])
	return nil
}

// eventBatch is the on-disk shape `record` expects: a JSON array of
// {"type": "...", "inputType": "...", "data": ...} objects, one per
// recordEvent call (§6 "Inbound API").
type eventBatch struct {
	Type      string `json:"type"`
	InputType string `json:"inputType"`
	Data      any    `json:"data"`
}

func cmdRecord(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: typingproofctl record <db> <events.json>")
	}
	raw, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read events file: %w", err)
	}
	var batch []eventBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return fmt.Errorf("parse events file: %w", err)
	}

	st, err := openStore(args[0])
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	meta, err := st.GetChainMeta()
	if err != nil {
		return fmt.Errorf("load chain metadata: %w", err)
	}
	if meta == nil {
		return fmt.Errorf("chain not initialized; run 'init' first")
	}

	cfg := loadConfig()
	opts := []core.Option{core.WithStore(st)}
	if cfg.SigningKeyPath != "" {
		if key, err := signer.LoadPrivateKey(cfg.SigningKeyPath); err == nil {
			opts = append(opts, core.WithSigningKey(key))
		}
	}
	ch := core.New(cfg, opts...)
	if err := ch.Resume(); err != nil {
		return fmt.Errorf("resume chain: %w", err)
	}

	for i, in := range batch {
		result, err := ch.RecordEvent(event.Input{
			Type:      event.Kind(in.Type),
			InputType: event.InputType(in.InputType),
			Data:      in.Data,
		})
		if err != nil {
			return fmt.Errorf("record event %d: %w", i, err)
		}
		fmt.Printf("  [%d] hash=%s\n", result.Index, result.Hash)
	}
	fmt.Printf("%sOK%s recorded %d events\n", c.Green, c.Reset, len(batch))
	return nil
}

func cmdExport(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: typingproofctl export <db> <content-file> <out.json>")
	}
	content, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read content file: %w", err)
	}

	st, err := openStore(args[0])
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	meta, err := st.GetChainMeta()
	if err != nil {
		return fmt.Errorf("load chain metadata: %w", err)
	}
	if meta == nil {
		return fmt.Errorf("chain not initialized; run 'init' first")
	}

	cfg := loadConfig()
	opts := []core.Option{core.WithStore(st)}
	if cfg.SigningKeyPath != "" {
		if key, err := signer.LoadPrivateKey(cfg.SigningKeyPath); err == nil {
			opts = append(opts, core.WithSigningKey(key))
		}
	}
	ch := core.New(cfg, opts...)
	if err := ch.Resume(); err != nil {
		return fmt.Errorf("resume chain: %w", err)
	}

	proof, err := ch.ExportProof(string(content))
	if err != nil {
		return fmt.Errorf("export proof: %w", err)
	}

	out, err := json.MarshalIndent(proof, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal proof: %w", err)
	}
	if err := os.WriteFile(args[2], out, 0o600); err != nil {
		return fmt.Errorf("write proof file: %w", err)
	}
	fmt.Printf("%sOK%s exported proof to %s (typingProofHash=%s)\n", c.Green, c.Reset, args[2], proof.TypingProofHash)
	return nil
}

func cmdVerify(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: typingproofctl verify <proof.json>")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read proof file: %w", err)
	}
	var proof core.ExportedProof
	if err := json.Unmarshal(raw, &proof); err != nil {
		return fmt.Errorf("parse proof file: %w", err)
	}

	records := make([]*event.Record, len(proof.Proof.Events))
	for i, e := range proof.Proof.Events {
		records[i] = e.ToRecord()
	}

	var initialHash string
	if len(records) > 0 {
		initialHash = records[0].PreviousHash
	} else {
		initialHash = proof.TypingProofData.FinalEventChainHash
	}

	result := verify.VerifyFull(context.Background(), initialHash, records)
	if !result.Valid {
		printError(fmt.Sprintf("chain invalid at event %d: %s", result.Diagnostic.ErrorAt, result.Diagnostic.Kind))
		os.Exit(1)
	}
	fmt.Printf("%sOK%s %d events verified, chain head %s\n", c.Green, c.Reset, len(records), proof.Proof.FinalHash)
	return nil
}

func cmdStats(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: typingproofctl stats <db>")
	}
	st, err := openStore(args[0])
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	n, err := st.EventCount()
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	cps, err := st.GetCheckpoints()
	if err != nil {
		return fmt.Errorf("load checkpoints: %w", err)
	}
	fmt.Printf("events:      %d\n", n)
	fmt.Printf("checkpoints: %d\n", len(cps))
	return nil
}
