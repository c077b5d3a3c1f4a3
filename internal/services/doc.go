// Package services holds the application layer: conversion runs and
// dictionary inspection, composed from the dictionary, decode, table,
// and exporter packages. Handlers and CLIs call in here; nothing here
// knows about HTTP or flags.
package services
