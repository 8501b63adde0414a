// Package reconcile compares the local catalog with the channel index.
//
// It answers two questions, both without side effects:
//
//  1. Which local items still have to be published? DetectGaps computes
//     {local keys} - {published keys}, preserving scan order, optionally
//     starting at an offset given as a position or an identity key.
//
//  2. How do the two sides relate overall? Reconcile builds the union of
//     keys from both sides and reports, per key, where it is present, plus
//     the maintenance actions (upload, prune, fix category) that would
//     bring the index in line.
//
// # Usage Example
//
//	listing, _ := catalog.Scan(root, catalog.ScanOptions{}, logger)
//	tasks, err := reconcile.DetectGaps(listing.Items(), store.Keys(), reconcile.ParseOffset("42"))
//
//	plan := reconcile.Reconcile(listing.Items(), store.Records())
//	fmt.Println(plan.Summary.Missing, plan.Summary.Stale)
package reconcile
