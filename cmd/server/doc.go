// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

// Command server runs Slackiveroo: a Slack app that watches for shared
// Deliveroo order links and posts the order's progress to every channel the
// link was shared in, until the order completes or fails.
//
// # Startup
//
//  1. Configuration: defaults, optional YAML file, environment (koanf v2),
//     then command-line overrides
//  2. Token store: BadgerDB holding one bot token per installed workspace
//  3. Slack client and OAuth installer
//  4. Deliveroo client, or the replay source in mock mode
//  5. Event publisher (Watermill, in-process or NATS) and, in process, the
//     event journal that logs each order event
//  6. Supervisor tree, tracker registry and dispatcher
//  7. Keepalive, token store GC and the HTTP server as supervised services
//
// # Configuration
//
// Every setting can come from the environment, for example:
//
//	SLACK_SIGNING_SECRET=...      required
//	SLACK_CLIENT_ID / SLACK_CLIENT_SECRET   enable "Add to Slack"
//	SLACK_APP_TOKEN=xoxb-...      token used for teams without an installation
//	SELF_QUERY_URL=https://example.herokuapp.com/ping
//	USE_MOCK=true                 replay examples/*.json
//	PORT=8000
//
// # Usage
//
//	slackiveroo --config /etc/slackiveroo.yaml
//	slackiveroo --mock --port 8080 --log-level debug
//
// SIGINT and SIGTERM stop the supervisor tree: the HTTP server drains, every
// tracker is cancelled and the token store is closed.
package main
