// Package rawdata holds the raw parsers and per-counter transforms:
// one file per counter family, each pairing a Sample step (read a
// snapshot from /proc or /sys and package it as a typed raw record)
// with a Transform step (turn a sequence of raw records for one
// collector into an aperfdata.AperfData).
package rawdata
