package runtime

import "io"

// Options configures a Runtime at construction time, mirroring the
// embeddable engine's functional-options constructor (New(WithTypeCheck(false))
// in the reference engine this package's shape is grounded on) rather than a
// struct literal with exported fields the caller must zero-value correctly.
type Options struct {
	gcHighWaterMark int
	stdout          io.Writer
	features        map[string]bool
}

// Option mutates an in-progress Options record.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		gcHighWaterMark: 0, // 0 means "use gc package's own default"
		features:        map[string]bool{},
	}
}

// WithGCHighWaterMark overrides the allocation count that triggers an
// automatic collection (see gc.Heap.SetHighWaterMark). A value <= 0 leaves
// the collector's built-in default in place.
func WithGCHighWaterMark(n int) Option {
	return func(o *Options) { o.gcHighWaterMark = n }
}

// WithStdout sets the writer console/print built-ins write to. Defaults to
// os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *Options) { o.stdout = w }
}

// WithFeature toggles an optional runtime feature by name (consulted by
// realm bootstrap to decide which intrinsics to install — e.g. disabling
// BigInt support entirely for an embedder that wants a smaller surface).
func WithFeature(name string, enabled bool) Option {
	return func(o *Options) { o.features[name] = enabled }
}

// Feature reports whether a named feature is enabled (unset names default
// to enabled, matching an additive allowlist-by-exception model).
func (o *Options) Feature(name string) bool {
	v, ok := o.features[name]
	return !ok || v
}
