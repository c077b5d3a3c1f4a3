package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"canmlio/internal/dictionary"
	"canmlio/internal/services"
)

func main() {
	dicts := flag.String("dict", "", "comma-separated signal dictionary files (.dbc, .yml)")
	namespaced := flag.Bool("namespaced", false, "prefix every signal with its message name")
	jsonOut := flag.Bool("json", false, "emit the summary as JSON")
	flag.Parse()

	sources := flag.Args()
	if *dicts != "" {
		sources = append(splitCommas(*dicts), sources...)
	}
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "dictinfo: at least one dictionary file is required")
		flag.Usage()
		os.Exit(2)
	}

	svc := services.NewDictionaryService(nil, dictionary.NewCache(4), slog.Default())
	summary, err := svc.Inspect(context.Background(), sources, *namespaced)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dictinfo: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "dictinfo: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%d messages, %d signals\n\n", len(summary.Messages), summary.SignalCount)
	for _, msg := range summary.Messages {
		fmt.Printf("0x%X %s (%d bytes)\n", msg.ID, msg.Name, msg.Length)
		for _, sig := range msg.Signals {
			line := fmt.Sprintf("  %-32s %3d bit", sig.Name, sig.Length)
			if sig.Signed {
				line += " signed"
			}
			if sig.Scale != 1 || sig.Offset != 0 {
				line += fmt.Sprintf("  x%g%+g", sig.Scale, sig.Offset)
			}
			if sig.Unit != "" {
				line += " " + sig.Unit
			}
			if len(sig.Choices) > 0 {
				line += fmt.Sprintf("  (%d choices)", len(sig.Choices))
			}
			fmt.Println(line)
		}
		fmt.Println()
	}
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
