// source supplies rule definition content to the runtime. Providers hand
// over already translated GRL text; translating tabular decision tables
// into GRL is an external step behind the Translator boundary.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a provider has no source with the given id.
var ErrNotFound = errors.New("source: not found")

// Descriptor identifies one rule definition unit and its current content
// fingerprint.
type Descriptor struct {
	ID          string
	Fingerprint string
	ModTime     time.Time
}

// Provider supplies rule source content on demand. Providers do not cache;
// caching compiled artifacts is the runtime's job.
type Provider interface {
	// Fetch returns the current content and descriptor for the given id.
	Fetch(ctx context.Context, id string) ([]byte, Descriptor, error)
	// Fingerprint returns the live content fingerprint without reading the
	// whole unit where the backend allows it.
	Fingerprint(ctx context.Context, id string) (string, error)
	// List enumerates the known rule definition units.
	List(ctx context.Context) ([]Descriptor, error)
}

// Translator converts a tabular rule definition into GRL text. The
// implementation lives outside this module; providers apply it before
// handing content over.
type Translator func(table []byte) (string, error)
