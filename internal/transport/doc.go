// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport delivers finished offline packs to requesters.
//
// Each type here implements export.Deliverer:
//
//   - Outbox: keeps a copy of the pack in a directory, for the CLI and for
//     chat bots that pick files up from disk
//   - Response: streams the pack as the body of an HTTP response
//
// The pipeline removes its archive as soon as Deliver returns, so both
// deliverers finish with the file before returning.
package transport
