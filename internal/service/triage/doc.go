// Package triage orchestrates a scoring pass: fetch lead state, extract the
// feature vector, apply the organization's active weights, detect blockers,
// and write the result back to the lead record.
//
// The pass is synchronous and self-contained: no LLM or other network
// enrichment sits on this path. Natural-language elaboration of the reason
// strings is an optional capability behind scoring.Explainer with a
// deterministic fallback.
//
// Repository implementations live in repository/postgres/.
package triage
