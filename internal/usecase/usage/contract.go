package usage

import "github.com/kailas-cloud/courseadvisor/internal/usecase/embedding"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	Usage() embedding.BudgetUsage
}
