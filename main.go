package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"

	"ledgerchat/config"
)

type options struct {
	Config   string `short:"c" long:"config" description:"Path to config file" default:"config.json"`
	Dataset  string `short:"d" long:"dataset" description:"Path to the sqlite dataset (overrides config)"`
	Question string `short:"q" long:"question" description:"Ask a single question and exit"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if opts.Dataset != "" {
		cfg.DatasetPath = opts.Dataset
	}

	app, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start session: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	if opts.Question != "" {
		fmt.Println(app.Ask(ctx, opts.Question))
		return
	}

	fmt.Printf("ledgerchat session %s (type 'exit' to quit)\n", app.SessionID()[:8])
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		fmt.Println(app.Ask(ctx, line))
	}
}
