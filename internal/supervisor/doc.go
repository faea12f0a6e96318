// Slackiveroo - Order Status Relay for Slack
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slackiveroo

/*
Package supervisor provides process supervision for Slackiveroo using suture v4.

	RootSupervisor ("slackiveroo")
	├── TrackersSupervisor ("trackers")
	│   └── one tracker.Tracker per order, added by the registry
	├── BackgroundSupervisor ("background")
	│   ├── keepalive.Service
	│   └── TokenStoreGCService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Trackers end by returning suture.ErrDoNotRestart, which removes them from the
trackers supervisor. A tracker that panics is logged through sutureslog and
restarted with its in-memory state intact.

Usage in main.go:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	registry, err := tracker.NewRegistry(tree.Trackers(), trackerCfg)
	tree.AddBackgroundService(keepalive.New(cfg.Keepalive, registry))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)
*/
package supervisor
