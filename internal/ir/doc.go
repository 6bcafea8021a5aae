// Package ir provides the shared value and record types for waypost.
//
// This package contains type definitions and their encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is a closed set of payload kinds, no interface{} bags
//   - Object keys serialize in UTF-16 order for deterministic bytes
//   - All JSON tags use snake_case
//   - Enqueue order is carried by a logical seq, not by timestamps
package ir
