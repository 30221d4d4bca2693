package models

import "context"

type downloadOptionsKey struct{}

// WithDownloadOptions attaches a source's download-behavior overrides to
// ctx so that per-task code several calls deep (asset fetch, remux) can
// read them without every intermediate signature growing an options
// parameter purely to thread it through.
func WithDownloadOptions(ctx context.Context, opts DownloadOptions) context.Context {
	return context.WithValue(ctx, downloadOptionsKey{}, opts)
}

// DownloadOptionsFromContext returns the options attached by
// WithDownloadOptions, or the zero value if none were attached.
func DownloadOptionsFromContext(ctx context.Context) DownloadOptions {
	opts, _ := ctx.Value(downloadOptionsKey{}).(DownloadOptions)
	return opts
}
