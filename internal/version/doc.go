// Package version resolves user supplied version specifiers to concrete,
// installable build identifiers.
//
// A ReleaseCatalog (Catalog) maps release sources to the builds they offer.
// Self-hosted (IPI) platforms read raw release-controller feeds where the
// stream is a token embedded in the build identifier; managed platforms read
// one catalog source per channel where the stream is the source key itself.
// Both are served by the same resolver.
package version
