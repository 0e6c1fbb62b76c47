// Package audit writes an append-only JSONL trail of every per-unit radio
// command. The file is rotated by size.
package audit
