package reconcile

import (
	"fmt"
	"iter"

	"channel-publisher/core/caption"
	"channel-publisher/core/catalog"
	"channel-publisher/core/index"
)

// Reconcile builds the union of local and indexed keys and plans the
// actions that would align the index with the catalog.
func Reconcile(items iter.Seq[catalog.BookItem], records []index.Record) *ReconcilePlan {
	byKey := make(map[string]index.Record, len(records))
	for _, rec := range records {
		byKey[rec.Key] = rec
	}

	plan := &ReconcilePlan{Results: []ReconcileResult{}, Actions: []Action{}}
	seen := make(map[string]struct{})

	for item := range items {
		if _, dup := seen[item.Key]; dup {
			continue
		}
		seen[item.Key] = struct{}{}

		rec, published := byKey[item.Key]
		plan.Results = append(plan.Results, buildResult(item.Key, &item, rec, published))
	}

	for _, rec := range records {
		if _, local := seen[rec.Key]; local {
			continue
		}
		plan.Results = append(plan.Results, buildResult(rec.Key, nil, rec, true))
	}

	plan.Summary, plan.Actions = buildPlanFromResults(plan.Results, byKey)
	return plan
}

// buildResult creates a ReconcileResult for a single key. item is nil for
// remote-only keys.
func buildResult(key string, item *catalog.BookItem, rec index.Record, published bool) ReconcileResult {
	result := ReconcileResult{
		Key:            key,
		LocalPresent:   item != nil,
		ChannelPresent: published,
		Position:       -1,
		Mismatch:       []string{},
	}

	if item != nil {
		result.Title = item.Title
		result.Position = item.Position
	} else {
		result.Title = rec.Title
	}

	if published {
		result.MessageID = rec.MessageID
		result.Stale = rec.Stale
	}

	if item != nil && published {
		local := caption.NormalizeCategory(item.Category)
		remote := caption.NormalizeCategory(rec.CategoryString())
		if local != "" && local != remote {
			result.Mismatch = append(result.Mismatch, fmt.Sprintf("category: local=%s channel=%s", local, remote))
		}
	}

	return result
}

// buildPlanFromResults generates a summary and action plan from results.
func buildPlanFromResults(results []ReconcileResult, byKey map[string]index.Record) (PlanSummary, []Action) {
	var summary PlanSummary
	actions := []Action{}

	summary.TotalKeys = len(results)

	for _, result := range results {
		if result.LocalPresent {
			summary.Local++
			if result.ChannelPresent {
				summary.Published++
			} else {
				summary.Missing++
				actions = append(actions, Action{
					Type:   ActionUpload,
					Key:    result.Key,
					Reason: "not on channel",
				})
				summary.UploadActions++
			}
		} else if result.ChannelPresent {
			summary.RemoteOnly++
		}

		if len(result.Mismatch) > 0 {
			summary.Mismatches++
		}

		if !result.ChannelPresent {
			continue
		}

		if result.Stale {
			summary.Stale++
			actions = append(actions, Action{
				Type:   ActionPrune,
				Key:    result.Key,
				Reason: fmt.Sprintf("message %d not found on channel", result.MessageID),
			})
			summary.PruneActions++
			// Pruning takes precedence over category fixes.
			continue
		}

		if rec := byKey[result.Key]; rec.Category != nil {
			if fixed := caption.NormalizeCategory(*rec.Category); fixed != *rec.Category {
				actions = append(actions, Action{
					Type:   ActionFixCategory,
					Key:    result.Key,
					Reason: fmt.Sprintf("category %q -> %q", *rec.Category, fixed),
				})
				summary.FixActions++
			}
		}
	}

	return summary, actions
}
