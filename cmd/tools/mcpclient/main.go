package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/mcp-weather/backend/pkg/logger"
)

func main() {
	envErr := godotenv.Load()

	log := logger.New(os.Getenv("LOG_LEVEL"), "text")
	if envErr != nil {
		log.Debugf("no .env loaded, using system environment: %v", envErr)
	}

	defaultURL := os.Getenv("MCP_SERVER_URL")
	if defaultURL == "" {
		defaultURL = "localhost:8000"
	}

	serverURL := flag.String("url", defaultURL, "MCP server address, host[:port] or base URL")
	stream := flag.Bool("stream", false, "use the two-phase SSE flow")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-url addr] [-stream] <city or \"forecast for <city>\">\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input := strings.Join(flag.Args(), " ")
	query := buildQuery(input)
	client := newClient(*serverURL, log)
	log.WithField("url", client.url).Infof("asking %q", query)

	if !*stream {
		answer, err := client.Ask(ctx, query)
		if err != nil {
			log.Fatalf("request failed: %v", err)
		}
		fmt.Println(answer)
		return
	}

	fmt.Println("Streaming Weather Information:")
	full, err := client.Stream(ctx, query, os.Stdout)
	if err != nil {
		log.Fatalf("stream failed: %v", err)
	}
	fmt.Printf("\nFull response:\n%s\n", full)
}
