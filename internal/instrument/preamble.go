package instrument

import (
	"fmt"

	"overdub/internal/timing"
)

// ReferencePrefix tags the diagnostic log line reporting the run's reference
// instant. Downstream stages never consume it; it exists so harness output can
// be correlated with external clocks.
const ReferencePrefix = "OVERDUB_REF"

const (
	preambleBegin = "// --- overdub instrumentation (begin) ---"
	preambleEnd   = "// --- overdub instrumentation (end) ---"
)

// preambleFor renders the JavaScript runtime inserted once per instrumented
// script. It defines a per-run sync context plus the two operations the
// rewritten markers call:
//
//   - __overdubSync waits out the previous step's narration, then emits
//     a timestamped step-start event on stdout. The first call also waits the
//     stabilization delay and pins the reference instant.
//   - __overdubWaitFinal blocks on teardown until the last step's narration
//     would have finished, so the final clip is never truncated.
func preambleFor(stabilizationMs int) string {
	return fmt.Sprintf(`%s
const __overdubCtx = { referenceMs: null, lastStartMs: 0, lastAudioMs: 0 };
const __overdubSleep = (ms) => new Promise((resolve) => setTimeout(resolve, ms));
async function __overdubSync(ctx, stepId, audioMs) {
  if (ctx.referenceMs === null) {
    await __overdubSleep(%d);
    ctx.referenceMs = Date.now();
    console.log('%s ' + ctx.referenceMs);
  }
  if (ctx.lastAudioMs > 0) {
    const elapsed = Date.now() - ctx.lastStartMs;
    if (elapsed < ctx.lastAudioMs) {
      await __overdubSleep(ctx.lastAudioMs - elapsed);
    }
  }
  const payload = { stepId: stepId, timestamp: Date.now() - ctx.referenceMs, type: '%s' };
  console.log('%s' + JSON.stringify(payload));
  ctx.lastStartMs = Date.now();
  ctx.lastAudioMs = audioMs;
}
async function __overdubWaitFinal(ctx) {
  if (ctx.lastAudioMs > 0) {
    const elapsed = Date.now() - ctx.lastStartMs;
    if (elapsed < ctx.lastAudioMs) {
      await __overdubSleep(ctx.lastAudioMs - elapsed);
    }
    ctx.lastAudioMs = 0;
  }
}
if (typeof test !== 'undefined' && typeof test.afterEach === 'function') {
  test.afterEach(async () => { await __overdubWaitFinal(__overdubCtx); });
}
%s`,
		preambleBegin,
		stabilizationMs,
		ReferencePrefix,
		timing.EventTypeStart,
		timing.EventPrefix,
		preambleEnd,
	)
}
