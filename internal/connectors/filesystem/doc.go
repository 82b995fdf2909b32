// Package filesystem reads annotation export files from local directories.
//
// The Scanner walks a directory tree once and returns every export file as
// a raw input. The Watcher layers fsnotify on top of a scanner so newly
// dropped or rewritten files stream in continuously. Hidden files and
// directories are skipped in both modes.
package filesystem
