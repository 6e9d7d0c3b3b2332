// Package runner drives the browser load test.
//
// A [Runner] launches one browser through a [browser.Engine] and starts Parallel
// sessions at once. Session k (0-based) waits k*OpenDelay, then performs Repeat
// sequential trials against its own isolated browser context:
//
//	navigate -> [wait for WaitText] -> record duration -> navigate to about:blank
//
// Completed trials go to the [Recorder] and [Observer]. The first failure ends its
// session, is recorded against the worker and is returned by [Runner.Run] once
// every session has finished (or, with FailFast, once the others are cancelled).
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//	r := runner.New(runner.Options{
//		TargetURL: "https://example.com",
//		Parallel:  5,
//		Repeat:    10,
//		OpenDelay: 500 * time.Millisecond,
//		WaitText:  "Welcome",
//		Engine:    browser.NewChromeEngine(),
//		Recorder:  collector,
//	})
//	result, err := r.Run(ctx)
//
// # Timeouts
//
// Every page operation is bounded by PageTimeout (120s unless set). Exceeding it
// fails the session, never the whole process directly.
package runner
