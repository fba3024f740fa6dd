// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export builds offline bundles of the active content tree.
//
// An export takes a snapshot of the repository and copies the referenced
// media. It then writes a JSON mirror, a static HTML view and a Markdown
// outline, zips the result and hands the archive to a Deliverer.
//
// # Key Types
//
//   - Pipeline: runs exports, one per requester at a time
//   - Source: the repository operations an export needs
//   - Deliverer: hands the finished archive to the requester
//   - MediaResolver: maps media references to local files
//   - JobStatus: observable progress of an export
//
// # Bundle Layout
//
//	README.md       Markdown outline
//	content.json    every active content item, denormalized
//	index.html      self-contained static view
//	media/          copied assets, named <content id>_<file name>
//	sections.json   every active section
//
// Identical repository state produces byte-identical mirror files and views.
//
// # Usage
//
//	p := export.New(repo, &export.Options{
//	    WorkDir: "/var/lib/fieldref/work",
//	    Media:   export.DirResolver{Root: "/var/lib/fieldref/media"},
//	}, logger)
//	res, err := p.Export(ctx, userID, outbox)
//	if err != nil {
//	    reply(export.FailureMessage)
//	    return
//	}
//	reply(res.Summary())
package export
