// Package core defines the domain model shared by the rules engine.
//
// It provides:
//   - Event, Header and Threat, the records flowing through the pipeline
//   - UserRule and Condition, the rule definitions read from disk
//   - RuleEngineData and Value, the payload of threats raised by a rule match
//   - WorkerPool, the goroutine pool used to dispatch events concurrently
package core
