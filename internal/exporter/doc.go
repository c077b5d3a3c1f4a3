// Package exporter writes assembled signal tables to disk.
//
// CSV is the streaming format: chunks append to one file with the
// header written once, so arbitrarily large captures export in bounded
// memory. Parquet and Excel write a fully assembled table. Every sink
// failure surfaces as a write error carrying the output path.
package exporter
