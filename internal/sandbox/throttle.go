package sandbox

import "time"

// throttleWindow is the duty-cycle period for CPU throttling.
const throttleWindow = 100 * time.Millisecond

// throttler enforces a best-effort CPU quota by letting the process group run
// for quota% of each window and suspending it for the rest. It throttles,
// never kills; if the group stops accepting signals it silently disarms.
type throttler struct {
	h     Handle
	quota int // percent, (0,100)
}

func (t *throttler) run(stop <-chan struct{}) {
	runFor := throttleWindow * time.Duration(t.quota) / 100
	stopFor := throttleWindow - runFor
	for {
		select {
		case <-stop:
			_ = t.h.ResumeGroup()
			return
		case <-time.After(runFor):
		}
		if err := t.h.SuspendGroup(); err != nil {
			return
		}
		select {
		case <-stop:
			_ = t.h.ResumeGroup()
			return
		case <-time.After(stopFor):
		}
		if err := t.h.ResumeGroup(); err != nil {
			return
		}
	}
}
