package mapper

import (
	"log/slog"

	"github.com/jdziat/bulk-mapper/pkg/security"
)

// Prepare normalizes raw items for a run. Blank inputs are dropped, inputs
// longer than the service limit are truncated with a warning, and items
// without a hint get defaultHint.
func Prepare(items []WorkItem, defaultHint string, logger *slog.Logger) []WorkItem {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]WorkItem, 0, len(items))
	dropped := 0
	for _, raw := range items {
		item, err := prepareItem(raw, defaultHint, logger)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, item)
	}
	if dropped > 0 {
		logger.Info("dropped empty inputs", "count", dropped)
	}
	return out
}

func prepareItem(raw WorkItem, defaultHint string, logger *slog.Logger) (WorkItem, error) {
	input, truncated, err := security.PrepareInput(raw.Input)
	if err != nil {
		return raw, err
	}
	if truncated {
		logger.Warn("input too long, truncating",
			"input", raw.Input, "max_length", security.MaxInputLength, "truncated", input)
	}

	hint := security.PrepareHint(raw.Hint)
	if hint == "" {
		hint = security.PrepareHint(defaultHint)
	}
	return WorkItem{Input: input, Hint: hint}, nil
}
