// Package logging provides file-based structured logging with rotation
// for loreseek. Logs are written to ~/.loreseek/logs/ as JSON lines.
//
// When serving over stdio the log file is the only output: the stdio
// stream carries JSON-RPC exclusively, so nothing may be written to
// stdout or stderr in that mode.
package logging
