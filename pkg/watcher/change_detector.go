package watcher

import "context"

// ChangeAnalysis describes what changed and what must be redone
type ChangeAnalysis struct {
	ReloadConfig bool // the config file changed and must be read again
	Rerun        bool
	ChangedFiles []string
}

// AnalyzeChanges determines the follow-up work for a change event
func AnalyzeChanges(event ChangeEvent) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
		Rerun:        len(event.Paths) > 0,
	}
	if event.Type == ChangeTypeConfig {
		// Search settings or the snapshot path itself may have moved
		analysis.ReloadConfig = true
	}
	return analysis
}

// Handle calls fn for each event until events closes or ctx is canceled
func Handle(ctx context.Context, events <-chan ChangeEvent, fn func(context.Context, *ChangeAnalysis)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if change := AnalyzeChanges(event); change.Rerun {
				fn(ctx, change)
			}
		}
	}
}
