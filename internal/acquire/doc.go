// Package acquire resolves search queries into source candidates and pulls a chosen reference into local storage.
//
// The [Resolver] makes exactly one catalog call per query and normalises what comes back into
// [SearchCandidate] values. The [Orchestrator] drives a bounded, strictly sequential list of
// download attempts, one [ClientProfile] per attempt:
//
//	Idle → Attempting(profile_i) → Succeeded
//	                             → Backoff → Attempting(profile_i+1)
//	                             → Aborted (credentials rejected)
//	                             → Exhausted
//
// Every failed attempt goes through [Classify]. Only credential rejection stops the loop early;
// everything else moves on to the next profile after a jittered pause.
//
// All attempts of one call share a freshly generated file stem, so at most one file ever
// survives a call and nothing survives a failed or cancelled one.
//
// Failures are reported as [*Error], whose Kind separates invalid input, search failures,
// rejected credentials and exhaustion. Each kind unwraps to a sentinel in the shared package
// and carries its own remediation text via [Error.Hint].
package acquire
