// Command dataset downloads the NYC 311 service requests CSV from the NYC
// Open Data portal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"analytics-backend/internal/dataset"
)

func main() {
	var url, out string
	flag.StringVar(&url, "url", dataset.DefaultExportURL, "CSV export URL to download from")
	flag.StringVar(&out, "out", "data/nyc_311.csv", "path to write the CSV to")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Printf("downloading dataset from %s", url)
	if err := dataset.Download(ctx, url, out); err != nil {
		log.Fatalf("download failed: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		log.Fatalf("could not stat downloaded file: %v", err)
	}
	log.Printf("downloaded %d bytes to %s", info.Size(), out)
}
