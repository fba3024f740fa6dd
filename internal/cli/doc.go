// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the fieldref command line.
//
// Commands are built with cobra and share one app value per invocation,
// which loads configuration, builds the logger and opens the repository on
// first use.
//
// # Commands
//
//   - init [--seed]: config file, directories, schema and starter sections
//   - section add|list|show|update|move|delete
//   - content add|list|show|update|delete
//   - favorite toggle|list
//   - tree [--content], search <query>, stats [--admin] [--user ID]
//   - export <user-id> [--outbox DIR]: build a pack into the outbox
//   - serve [--addr]: run the HTTP API
//   - config init|show|get|set
//
// Every command accepts --config, --log-level and --json. With --json the
// output is a JSONResponse envelope.
//
// # Output
//
// Text output is styled with lipgloss. Colors are off when stdout is not a
// terminal or NO_COLOR is set. Table columns are measured in display cells,
// so emoji icons and wide scripts stay aligned.
//
// # Exit Codes
//
// Execute maps errors to exit codes: 2 for bad input (including repository
// validation failures), 3 for configuration problems, 7 for missing sections
// or items, 9 when an export is already running or rate limited.
package cli
