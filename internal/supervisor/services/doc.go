// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

/*
Package services provides suture.Service wrappers for Slackiveroo components
whose own lifecycle is not context-driven.

HTTP Server (HTTPServerService):
  - Wraps *http.Server, translating ListenAndServe into Serve
  - Shuts down gracefully within a timeout when the context ends

Token store GC (TokenStoreGCService):
  - Runs BadgerDB value log GC on the token store periodically

Order trackers and the keepalive implement suture.Service themselves and are
added to the tree directly.
*/
package services
