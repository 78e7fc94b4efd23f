package controllers

import "lms/services/progress"

var (
	ledger     *progress.Ledger
	aggregator *progress.Aggregator
)

// Setup injects the progress services. Called once from main after the
// database connection is established.
func Setup(l *progress.Ledger, a *progress.Aggregator) {
	ledger = l
	aggregator = a
}
