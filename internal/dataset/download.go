package dataset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"
)

// DefaultExportURL is the Socrata CSV export of the NYC 311 dataset.
const DefaultExportURL = "https://data.cityofnewyork.us/api/views/erm2-nwe9/rows.csv?accessType=DOWNLOAD"

// Download streams the CSV export to dest, writing to a temp file first so a
// partial download never shows up as a loadable dataset.
func Download(ctx context.Context, url, dest string) error {
	if url == "" {
		url = DefaultExportURL
	}

	client := resty.New()
	resp, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("could not fetch dataset from %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != 200 {
		return fmt.Errorf("dataset download failed with status %d", resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("could not create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "dataset-*.csv")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	bar := progressbar.DefaultBytes(resp.RawResponse.ContentLength, "downloading dataset")
	if _, err := io.Copy(io.MultiWriter(tmp, bar), body); err != nil {
		tmp.Close()
		return fmt.Errorf("error downloading dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error writing dataset: %w", err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("could not move dataset into place: %w", err)
	}

	slog.Info("dataset downloaded", "url", url, "dest", dest)
	return nil
}
