// Package detect loads user rules from disk and dispatches events to them.
//
// Building an engine is a one-shot pipeline:
//
//	rules dir -> ScanRuleFiles -> ParseRuleFile -> Compiler -> PulsarEngine
//
// Every stage fails with a typed error (RuleListingError, RuleLoadingError,
// RuleParsingError, RuleCompileError) and no partial rule set is ever used.
//
// Once built, PulsarEngine.Process is called once per event. Threat events
// are skipped; for every other event each matching rule produces one derived
// threat event carrying core.RuleEngineData.
package detect
