// Package daemon runs the monitoring loops of fim.
//
// A Daemon owns two independent periodic tasks:
//
//   - Detector: polls the watched trees, compares them with the baseline and
//     reports new, modified, renamed and deleted files
//   - Scheduler: copies the watched trees into timestamped archives and
//     prunes old archives
//
// Each task runs on its own goroutine with its own ticker; neither blocks
// the other. Stopping the daemon cancels both, waits for the cycle in
// flight to finish and saves the baseline.
//
// Typical use:
//
//	d, err := daemon.FromConfig(cfg, sink, logger)
//	if err != nil {
//	    return err
//	}
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	return d.Start(ctx)
package daemon
