// Package models defines the domain records that flow through the spotlake pipeline.
//
// The package contains three kinds of types:
//
// 1. Identifiers for what is fetched
//   - [Category] : the kind of top item ("tracks" or "artists")
//   - [TimeWindow] : the upstream aggregation window ("short_term", "medium_term", "long_term")
//
// 2. Snapshot data derived from upstream payloads
//   - [Snapshot] : dense rank to [Entry] mapping written by the landing normalizer
//   - [RankDelta] : transient movement of one entry between two snapshots
//   - [RadarAlbum] : one album selected for the release radar email
//
// 3. Lookup records loaded out of band
//   - [FormatRule] : destination key template per endpoint
//   - [DataContract] : allow-list entry gating promotion from raw to staging
package models
