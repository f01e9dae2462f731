// Command tamperwatch watches camera upload folders and reports frames that
// no longer match the camera's reference view.
//
// `tamperwatch run` starts the polling daemon; `tamperwatch once` performs a
// single pass for cron or systemd timers. The remaining subcommands inspect
// the evaluation history, query a running daemon, replay recorded frames to
// tune thresholds, and manage the configuration file.
package main
