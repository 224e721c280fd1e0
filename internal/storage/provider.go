// Package storage materializes the dataset CSV on the local filesystem,
// whether it already lives there or has to be pulled from object storage.
package storage

import "context"

type DatasetProvider interface {
	// Fetch returns a local path to the dataset CSV, downloading it first if
	// necessary.
	Fetch(ctx context.Context) (string, error)
}
