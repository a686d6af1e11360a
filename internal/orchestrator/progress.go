package orchestrator

// ProgressFunc reports (current, total) for a long-running orchestrator
// operation. The setup (mark-in-progress) phase signals itself with a
// negative current whose magnitude is the count processed so far during
// that phase; the manual status-check sweep's apply phase signals itself
// with current below -1,000,000. Both conventions must be preserved by
// every caller of this type.
type ProgressFunc func(current, total int)

// The apply-phase done count is subtracted from manualApplyPhaseOffset to
// produce the < -1,000,000 signal RunManualStatusCheck's callers rely on
// to distinguish it from the ordinary mark-in-progress setup phase.
const manualApplyPhaseOffset = -1_000_000 - 1

func reportSetupPhase(progress ProgressFunc, total int) func(done int) {
	if progress == nil {
		return nil
	}
	return func(done int) {
		progress(-done, total)
	}
}

func reportApplyPhase(progress ProgressFunc, total int) func(done int) {
	if progress == nil {
		return nil
	}
	return func(done int) {
		progress(done, total)
	}
}

func reportManualApplyPhase(progress ProgressFunc, total int) func(done int) {
	if progress == nil {
		return nil
	}
	return func(done int) {
		progress(manualApplyPhaseOffset-done, total)
	}
}
