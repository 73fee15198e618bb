// Package tasks implements the pipeline steps, one type per trigger.
//
// # Steps
//
//  1. [TopDataFetcher] : schedule → landing
//     - Pulls the top items for every time window of one category
//     - Writes each payload verbatim under <namespace>/<category>/<window>/top_<category>_<YYYYMMDD>.json
//     - Windows are isolated; failures are joined and returned after all windows ran
//
//  2. [LandingNormalizer] : landing notification → raw
//     - Resolves the format rule for the object's endpoint
//     - Reduces the payload to a rank-keyed [models.Snapshot] and writes it under the rule's key template
//
//  3. [RecapComposer] : schedule → message
//     - Compares the two newest snapshots of a category and time window
//     - Sends the top ten with their rank movement
//
//  4. [ReleaseRadarComposer] : schedule → message
//     - Reads the release radar playlist and keeps full-length, distinct albums
//     - Sends one block per album with its cover as an inline image
//
//  5. [RotationUpdater] : schedule → playlist
//     - Adds yesterday's short-term top tracks to the "<year> high rotation" playlist
//
//  6. [StagingMover] : raw notification → staging
//     - Promotes objects whose first key segment has a data contract, copy then delete
//
// # Dependencies
//
// Each step takes its collaborators in an Opts struct. The interfaces declared here are the
// narrow slices of [services.SpotifyClient], the repositories and [storage.Bucket] each step needs,
// so tests substitute in-memory fakes.
//
// Every step is sequential; nothing is retried and nothing is locked.
package tasks
