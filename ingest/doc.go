// Package ingest moves events in and out of the rules engine.
//
// StreamReader and HTTPListener decode events onto a channel, Pipeline
// feeds that channel to the engine on a worker pool, ChannelSender publishes
// the derived threats and ThreatWriter writes them out as JSON lines.
package ingest
