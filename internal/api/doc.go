// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

/*
Package api is the HTTP surface of Slackiveroo, routed with chi.

Routes:

	GET  /                 landing page with the "Add to Slack" button
	GET  /ping             "pong", hit by the keepalive
	POST /slack/event      Slack Events API (signature checked)
	GET  /slack/oauth      OAuth redirect target; exchanges the code in the background
	GET  /api/v1/health    JSON health summary
	GET  /api/v1/trackers  JSON list of active order trackers
	GET  /metrics          Prometheus exposition

JSON endpoints answer with the envelope

	{"status":"success","data":...,"metadata":{"timestamp":...}}

or, on failure, "status":"error" with an error object carrying a code and
message.
*/
package api
