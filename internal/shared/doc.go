// Package shared holds cross-cutting helpers that belong to no single
// pipeline layer. Currently that is the testutil subpackage: the
// buffered slog handler and log assertions used by tests across the
// codebase. Domain logic never lives here.
package shared
