package llm

// BudgetPlan is the per-ask decision of what survives into the request.
// Computed purely by PlanBudget; applying the eviction to the session
// history is a separate, explicit step.
type BudgetPlan struct {
	RequiredTokens int // prompt + system prompt + selection, never dropped
	Reserved       int // first-file reservation taken out of the history budget
	HistoryLimit   int // token ceiling for kept history
	HistoryTokens  int // tokens of the kept history suffix
	EvictCount     int // turns to drop from the front of the history
	KeptHistory    []Turn
	KeptFiles      []string // contiguous prefix of the rendered file blocks
}

// PlanBudget decides what fits under the model's input-token ceiling.
//
// The required content (prompt, system prompt, selection) is never dropped;
// if it alone exceeds the ceiling the budgets go negative, everything
// optional is dropped, and the send is allowed to fail at the transport.
//
// If the first file block alone costs less than half the ceiling, its tokens
// (plus the shared file header) are reserved before history is considered,
// so a long conversation cannot crowd out the file the user is looking at.
//
// History is evicted oldest-first until the suffix fits. Files are then
// taken greedily in caller order; the first block that would overflow
// truncates the list there, with no reordering or backfill.
func PlanBudget(count func(string) int, history []Turn, prompt, systemPrompt, selectionBlock string, fileBlocks []string, capability Capability) BudgetPlan {
	plan := BudgetPlan{}
	plan.RequiredTokens = count(prompt) + count(systemPrompt) + count(selectionBlock)

	headerTokens := 0
	if len(fileBlocks) > 0 {
		headerTokens = count(fileHeader)
		first := count(fileBlocks[0])
		if first < capability.MaxInputTokens/2 {
			plan.Reserved = headerTokens + first
		}
	}

	plan.HistoryLimit = capability.MaxInputTokens - plan.RequiredTokens - plan.Reserved

	total := 0
	turnTokens := make([]int, len(history))
	for i, turn := range history {
		turnTokens[i] = count(turn.Content)
		total += turnTokens[i]
	}
	for plan.EvictCount < len(history) && total > plan.HistoryLimit {
		total -= turnTokens[plan.EvictCount]
		plan.EvictCount++
	}
	plan.HistoryTokens = total
	plan.KeptHistory = history[plan.EvictCount:]

	if len(fileBlocks) > 0 {
		remaining := capability.MaxInputTokens - plan.RequiredTokens - plan.HistoryTokens
		remaining -= headerTokens
		for _, block := range fileBlocks {
			cost := count(block)
			if remaining-cost < 0 {
				break
			}
			remaining -= cost
			plan.KeptFiles = append(plan.KeptFiles, block)
		}
	}

	return plan
}
