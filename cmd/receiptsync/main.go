package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"receiptsync/internal/config"
	"receiptsync/internal/connectors"
	gmailconnector "receiptsync/internal/connectors/gmail"
	imapconnector "receiptsync/internal/connectors/imap"
	"receiptsync/internal/listener"
	"receiptsync/internal/logger"
	"receiptsync/internal/pipeline"
	"receiptsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	log := logger.New(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d known=%d\n", *provider, result.Fetched, result.Stored, result.Known)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap, empty for all")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, log)
		defer processor.Close()
		if strings.TrimSpace(*messageID) != "" {
			if strings.TrimSpace(*provider) == "" {
				must(fmt.Errorf("--provider is required with --messageId"))
			}
			summary, err := processor.ProcessByProviderMessageID(context.Background(), *provider, *messageID)
			must(err)
			printSummary(summary)
			return
		}
		summary, err := processor.ProcessPending(context.Background(), *batch, *provider)
		must(err)
		printSummary(summary)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		rows, err := db.GetExportRows()
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no receipts to export"))
		}
		must(pipeline.ExportReceiptsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	case "mail:listen":
		s := listener.NewService(db, cfg, log)
		must(s.Run(context.Background()))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "receipt file: pdf, html, image, eml or text")
		vendor := fs.String("vendor", "", "vendor profile id, empty to detect")
		kind := fs.String("type", "", "pdf|html|text|image, empty to infer from extension")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		processor := pipeline.NewProcessingService(db, cfg, log)
		defer processor.Close()
		receipt, err := processor.ParseFile(*input, *vendor, *kind)
		must(err)
		blob, _ := json.MarshalIndent(receipt, "", "  ")
		fmt.Println(string(blob))
	default:
		usage()
		os.Exit(1)
	}
}

func printSummary(s pipeline.ProcessSummary) {
	fmt.Printf("processed emails=%d receipts=%d matched=%d synced=%d skipped=%d retried=%d errors=%d\n",
		s.Emails, s.Receipts, s.Matched, s.Synced, s.Skipped, s.Retried, s.Errors)
}

func makeConnector(cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: receiptsync <command>")
	fmt.Println("commands:")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --out=./out/reconciliation.xlsx")
	fmt.Println("  run --input=receipt.pdf [--type=pdf|html|text|image] [--vendor=homedepot]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
