package pipeline

// DefaultStage picks the stage that should be active when nothing else has
// been chosen: the first running stage among visible, started stages, or the
// last of those when none is running.
func DefaultStage(stages []Stage) (Stage, bool) {
	var last Stage
	found := false
	for _, st := range stages {
		if !st.Visible || st.Status == StageNotStarted {
			continue
		}
		if st.Status.Running() {
			return st, true
		}
		last = st
		found = true
	}
	return last, found
}
